// Package user holds concertgoer accounts as seen by the reward engine:
// a point balance that only grows and a set of earned badge titles.
package user

import (
	"errors"
	"slices"
	"time"

	"github.com/greengig/greengig/internal/travel"
)

// ErrNegativePoints is returned when a point change would decrease the balance.
var ErrNegativePoints = errors.New("reward points cannot decrease")

// User represents a concertgoer.
type User struct {
	// ID is the unique user identifier (format: usr_XXXX).
	ID string

	Name  string
	Email string

	// PreferredMode is optional; ModeUnknown when unset.
	PreferredMode travel.Mode

	// RewardPoints never decreases.
	RewardPoints int

	// Badges holds earned badge titles in award order, without duplicates.
	Badges []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasBadge reports whether title was already awarded.
func (u *User) HasBadge(title string) bool {
	return slices.Contains(u.Badges, title)
}

// AddPoints increases the balance by n.
func (u *User) AddPoints(n int) error {
	if n < 0 {
		return ErrNegativePoints
	}
	u.RewardPoints += n
	return nil
}

// AddBadge appends title unless already present and reports whether it was added.
func (u *User) AddBadge(title string) bool {
	if u.HasBadge(title) {
		return false
	}
	u.Badges = append(u.Badges, title)
	return true
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Badges = slices.Clone(u.Badges)
	return &c
}
