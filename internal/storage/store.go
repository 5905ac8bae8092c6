// Package storage provides the all-or-nothing write scope used when a travel
// proof, a user's points, and their badges change together.
package storage

import (
	"context"

	"github.com/greengig/greengig/internal/proof"
	"github.com/greengig/greengig/internal/user"
)

// Tx is the set of writes allowed inside Atomically. Reads made through
// LockUser and LockProof hold exclusive access to the row until the
// transaction ends.
type Tx interface {
	// LockUser loads a user for modification. Fails with user.ErrUserNotFound.
	LockUser(ctx context.Context, id string) (*user.User, error)

	// SaveUser writes back a user loaded with LockUser.
	SaveUser(ctx context.Context, u *user.User) error

	// InsertProof stores a new proof.
	InsertProof(ctx context.Context, p *proof.TravelProof) error

	// LockProof loads a proof for a status transition. Fails with proof.ErrProofNotFound.
	LockProof(ctx context.Context, id string) (*proof.TravelProof, error)

	// UpdateProofReview persists a proof's status transition.
	UpdateProofReview(ctx context.Context, p *proof.TravelProof) error
}

// Store runs fn in a transaction. If fn returns an error nothing it wrote is
// kept and the error is returned unchanged.
type Store interface {
	Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
