package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greengig/greengig/internal/travel"
)

// ErrInvalidUser is returned by Register for malformed input.
var ErrInvalidUser = errors.New("invalid user")

// Service provides user lookups and seeding.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new user service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.Get(ctx, id)
}

// ListIDs returns every user ID.
func (s *Service) ListIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListIDs(ctx)
}

// RegisterInput describes a user to create.
type RegisterInput struct {
	ID            string
	Name          string
	Email         string
	PreferredMode string
}

// Register creates a user with zero points. An empty ID gets a generated one.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, fmt.Errorf("%w: email: %w", ErrInvalidUser, err)
	}

	mode := travel.ModeUnknown
	if in.PreferredMode != "" {
		m, err := travel.ParseMode(in.PreferredMode)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidUser, err)
		}
		mode = m
	}

	id := in.ID
	if id == "" {
		id = "usr_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:20]
	}

	now := s.now().UTC()
	u := &User{
		ID:            id,
		Name:          name,
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
		PreferredMode: mode,
		Badges:        []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
