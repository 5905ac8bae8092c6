// Package concert provides the destinations travel proofs are measured against.
package concert

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/greengig/greengig/internal/database"
	"github.com/greengig/greengig/internal/travel"
)

// Lookup errors.
var (
	ErrConcertNotFound    = errors.New("concert not found")
	ErrMissingCoordinates = errors.New("concert has no coordinates")
)

// Concert is an event a user travels to.
type Concert struct {
	ID       string
	Name     string
	Venue    string
	Location string
	StartsAt *time.Time

	// Coordinates is nil for imported events that were never geocoded.
	Coordinates *travel.GeoPoint
}

// Repository looks up concerts.
type Repository interface {
	Get(ctx context.Context, id string) (*Concert, error)
	Upsert(ctx context.Context, c *Concert) error
}

// Destination resolves a concert to its coordinates, failing with
// ErrConcertNotFound or ErrMissingCoordinates.
func Destination(ctx context.Context, repo Repository, id string) (*Concert, travel.GeoPoint, error) {
	c, err := repo.Get(ctx, id)
	if err != nil {
		return nil, travel.GeoPoint{}, err
	}
	if c.Coordinates == nil {
		return c, travel.GeoPoint{}, fmt.Errorf("%w: %s", ErrMissingCoordinates, id)
	}
	return c, *c.Coordinates, nil
}

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	concerts map[string]*Concert
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{concerts: make(map[string]*Concert)}
}

// Get retrieves a concert by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Concert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.concerts[id]
	if !ok {
		return nil, ErrConcertNotFound
	}
	return clone(c), nil
}

// Upsert stores a concert.
func (r *InMemoryRepository) Upsert(_ context.Context, c *Concert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.concerts[c.ID] = clone(c)
	return nil
}

// List returns all concerts ordered by ID.
func (r *InMemoryRepository) List(_ context.Context) []*Concert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Concert, 0, len(r.concerts))
	for _, c := range r.concerts {
		out = append(out, clone(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func clone(c *Concert) *Concert {
	cp := *c
	if c.Coordinates != nil {
		p := *c.Coordinates
		cp.Coordinates = &p
	}
	if c.StartsAt != nil {
		t := *c.StartsAt
		cp.StartsAt = &t
	}
	return &cp
}

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db database.Querier
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new PostgreSQL concert repository.
func NewPostgresRepository(db database.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get retrieves a concert by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Concert, error) {
	var (
		c        Concert
		lat, lng *float64
	)
	err := r.db.QueryRow(ctx, `
		SELECT concert_id, name, venue, location, starts_at, lat, lng
		FROM concerts
		WHERE concert_id = $1`, id).Scan(
		&c.ID, &c.Name, &c.Venue, &c.Location, &c.StartsAt, &lat, &lng,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConcertNotFound
		}
		return nil, fmt.Errorf("query concert: %w", err)
	}

	if lat != nil && lng != nil {
		c.Coordinates = &travel.GeoPoint{Lat: *lat, Lng: *lng}
	}
	return &c, nil
}

// Upsert inserts or replaces a concert.
func (r *PostgresRepository) Upsert(ctx context.Context, c *Concert) error {
	var lat, lng *float64
	if c.Coordinates != nil {
		lat, lng = &c.Coordinates.Lat, &c.Coordinates.Lng
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO concerts (concert_id, name, venue, location, starts_at, lat, lng)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (concert_id) DO UPDATE
		SET name = EXCLUDED.name, venue = EXCLUDED.venue, location = EXCLUDED.location,
		    starts_at = EXCLUDED.starts_at, lat = EXCLUDED.lat, lng = EXCLUDED.lng`,
		c.ID, c.Name, c.Venue, c.Location, c.StartsAt, lat, lng,
	)
	if err != nil {
		return fmt.Errorf("upsert concert: %w", err)
	}
	return nil
}
