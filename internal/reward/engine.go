package reward

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/greengig/greengig/internal/storage"
	"github.com/greengig/greengig/internal/telemetry"
	"github.com/greengig/greengig/internal/user"
)

// EngineConfig configures an Engine.
type EngineConfig struct {
	Catalog Catalog
	Store   storage.Store
	Logger  zerolog.Logger
	Metrics *telemetry.PipelineMetrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine grants points and reconciles badges against the catalog.
type Engine struct {
	catalog Catalog
	store   storage.Store
	logger  zerolog.Logger
	metrics *telemetry.PipelineMetrics
	now     func() time.Time
}

// NewEngine creates a reward engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		catalog: cfg.Catalog,
		store:   cfg.Store,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		now:     cfg.Now,
	}
}

// Award adds every badge whose threshold u has reached and that u does not
// hold yet, in catalog order. It returns the titles added.
func Award(u *user.User, rules []Rule) []string {
	var awarded []string
	for _, r := range rules {
		if u.RewardPoints < r.PointsRequired {
			continue
		}
		if u.AddBadge(r.Title) {
			awarded = append(awarded, r.Title)
		}
	}
	return awarded
}

// AwardBadges reconciles a user's badges with their current points. Calling
// it again without a point change returns an empty list.
func (e *Engine) AwardBadges(ctx context.Context, userID string) ([]string, error) {
	rules, err := e.catalog.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reward rules: %w", err)
	}

	var awarded []string
	err = e.store.Atomically(ctx, func(ctx context.Context, tx storage.Tx) error {
		u, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		awarded = Award(u, rules)
		if len(awarded) == 0 {
			return nil
		}
		u.UpdatedAt = e.now()
		return tx.SaveUser(ctx, u)
	})
	if err != nil {
		return nil, err
	}

	e.record(userID, 0, awarded)
	return awarded, nil
}

// Grant adds points to a user and awards any badges they unlock, inside the
// caller's transaction. The user row stays locked until tx ends. Nothing is
// recorded in metrics since tx may still roll back.
func (e *Engine) Grant(ctx context.Context, tx storage.Tx, userID string, points int) ([]string, error) {
	rules, err := e.catalog.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reward rules: %w", err)
	}

	u, err := tx.LockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := u.AddPoints(points); err != nil {
		return nil, err
	}
	awarded := Award(u, rules)
	if points == 0 && len(awarded) == 0 {
		return nil, nil
	}

	u.UpdatedAt = e.now()
	if err := tx.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	return awarded, nil
}

func (e *Engine) record(userID string, points int, awarded []string) {
	if points == 0 && len(awarded) == 0 {
		return
	}
	e.metrics.RecordRewards(points, len(awarded))
	e.logger.Info().
		Str("user_id", userID).
		Int("points", points).
		Strs("badges", awarded).
		Msg("rewards granted")
}
