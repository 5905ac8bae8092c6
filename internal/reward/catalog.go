package reward

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/greengig/greengig/internal/database"
)

// ErrInvalidRule is returned for rules with an empty or duplicate title or a
// negative threshold.
var ErrInvalidRule = errors.New("invalid reward rule")

// Rule grants a badge once a user's points reach PointsRequired.
type Rule struct {
	Title          string `json:"title" mapstructure:"title"`
	Description    string `json:"description,omitempty" mapstructure:"description"`
	PointsRequired int    `json:"pointsRequired" mapstructure:"points_required"`
	BadgeIcon      string `json:"badgeIcon,omitempty" mapstructure:"badge_icon"`
}

// Catalog lists reward rules in a stable order.
type Catalog interface {
	ListRules(ctx context.Context) ([]Rule, error)
}

// DefaultRules is the seed catalog.
func DefaultRules() []Rule {
	return []Rule{
		{Title: "Eco Starter", Description: "Earned your first green travel points", PointsRequired: 10, BadgeIcon: "seedling"},
		{Title: "Green Commuter", Description: "Reached 50 points from green travel", PointsRequired: 50, BadgeIcon: "leaf"},
		{Title: "Rail Enthusiast", Description: "Reached 150 points from green travel", PointsRequired: 150, BadgeIcon: "train"},
		{Title: "Carbon Crusher", Description: "Reached 400 points from green travel", PointsRequired: 400, BadgeIcon: "globe"},
		{Title: "Planet Hero", Description: "Reached 1000 points from green travel", PointsRequired: 1000, BadgeIcon: "trophy"},
	}
}

// ValidateRules checks titles are present and unique and thresholds non-negative.
func ValidateRules(rules []Rule) error {
	seen := make(map[string]struct{}, len(rules))
	for i, r := range rules {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			return fmt.Errorf("%w: rule %d has no title", ErrInvalidRule, i)
		}
		if _, dup := seen[title]; dup {
			return fmt.Errorf("%w: duplicate title %q", ErrInvalidRule, title)
		}
		if r.PointsRequired < 0 {
			return fmt.Errorf("%w: %q requires negative points", ErrInvalidRule, title)
		}
		seen[title] = struct{}{}
	}
	return nil
}

// StaticCatalog serves a fixed rule list loaded at startup.
type StaticCatalog struct {
	rules []Rule
}

var _ Catalog = (*StaticCatalog)(nil)

// NewStaticCatalog validates and copies rules.
func NewStaticCatalog(rules []Rule) (*StaticCatalog, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	return &StaticCatalog{rules: append([]Rule(nil), rules...)}, nil
}

// ListRules returns a copy of the catalog.
func (c *StaticCatalog) ListRules(_ context.Context) ([]Rule, error) {
	return append([]Rule(nil), c.rules...), nil
}

// PostgresCatalog reads rules from the reward_rules table in insertion order.
type PostgresCatalog struct {
	db database.Querier
}

var _ Catalog = (*PostgresCatalog)(nil)

// NewPostgresCatalog creates a catalog backed by PostgreSQL.
func NewPostgresCatalog(db database.Querier) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// ListRules returns all rules ordered by position.
func (c *PostgresCatalog) ListRules(ctx context.Context) ([]Rule, error) {
	rows, err := c.db.Query(ctx, `
		SELECT title, description, points_required, badge_icon
		FROM reward_rules
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list reward rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.Title, &r.Description, &r.PointsRequired, &r.BadgeIcon); err != nil {
			return nil, fmt.Errorf("scan reward rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reward rules: %w", err)
	}
	return rules, nil
}

// Seed inserts rules that are not present yet, keeping existing ones.
func (c *PostgresCatalog) Seed(ctx context.Context, rules []Rule) error {
	if err := ValidateRules(rules); err != nil {
		return err
	}
	for _, r := range rules {
		_, err := c.db.Exec(ctx, `
			INSERT INTO reward_rules (title, description, points_required, badge_icon)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (title) DO NOTHING`,
			r.Title, r.Description, r.PointsRequired, r.BadgeIcon)
		if err != nil {
			return fmt.Errorf("seed reward rule %q: %w", r.Title, err)
		}
	}
	return nil
}
