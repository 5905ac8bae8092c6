package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/greengig/greengig/internal/database"
	"github.com/greengig/greengig/internal/travel"
)

const selectUser = `
	SELECT user_id, name, email, COALESCE(preferred_mode, ''), reward_points, badges, created_at, updated_at
	FROM users
	WHERE user_id = $1`

// PostgresRepository is a PostgreSQL implementation of Repository.
// Bound to a pgx.Tx it also provides row locking for the reward engine.
type PostgresRepository struct {
	db database.Querier
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a repository over a pool or a transaction.
func NewPostgresRepository(db database.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get retrieves a user by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*User, error) {
	return r.get(ctx, selectUser, id)
}

// GetForUpdate retrieves a user and locks the row until the surrounding
// transaction ends. Only meaningful when the repository wraps a pgx.Tx.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*User, error) {
	return r.get(ctx, selectUser+" FOR UPDATE", id)
}

func (r *PostgresRepository) get(ctx context.Context, query, id string) (*User, error) {
	var (
		u    User
		mode string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&mode,
		&u.RewardPoints,
		&u.Badges,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	u.PreferredMode = travel.ModeUnknown
	if mode != "" {
		u.PreferredMode = travel.Mode(mode)
	}
	if u.Badges == nil {
		u.Badges = []string{}
	}
	return &u, nil
}

// Create stores a new user.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	var mode any
	if u.PreferredMode.Valid() {
		mode = string(u.PreferredMode)
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO users (user_id, name, email, preferred_mode, reward_points, badges, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Name, u.Email, mode, u.RewardPoints, badgesOrEmpty(u.Badges), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Save overwrites points and badges.
func (r *PostgresRepository) Save(ctx context.Context, u *User) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET reward_points = $2, badges = $3, updated_at = $4
		WHERE user_id = $1`,
		u.ID, u.RewardPoints, badgesOrEmpty(u.Badges), u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListIDs returns every user ID in ascending order.
func (r *PostgresRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return ids, nil
}

func badgesOrEmpty(b []string) []string {
	if b == nil {
		return []string{}
	}
	return b
}
