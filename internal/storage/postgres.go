package storage

import (
	"context"
	"fmt"

	"github.com/greengig/greengig/internal/database"
	"github.com/greengig/greengig/internal/proof"
	"github.com/greengig/greengig/internal/user"
)

// PostgresStore implements Store with a database transaction per call.
// LockUser and LockProof use SELECT ... FOR UPDATE.
type PostgresStore struct {
	db database.Beginner
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store over a pool.
func NewPostgresStore(db database.Beginner) *PostgresStore {
	return &PostgresStore{db: db}
}

// Atomically runs fn inside a transaction.
func (s *PostgresStore) Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(ctx, &postgresTx{
		users:  user.NewPostgresRepository(tx),
		proofs: proof.NewPostgresRepository(tx),
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type postgresTx struct {
	users  *user.PostgresRepository
	proofs *proof.PostgresRepository
}

func (t *postgresTx) LockUser(ctx context.Context, id string) (*user.User, error) {
	return t.users.GetForUpdate(ctx, id)
}

func (t *postgresTx) SaveUser(ctx context.Context, u *user.User) error {
	return t.users.Save(ctx, u)
}

func (t *postgresTx) InsertProof(ctx context.Context, p *proof.TravelProof) error {
	return t.proofs.Insert(ctx, p)
}

func (t *postgresTx) LockProof(ctx context.Context, id string) (*proof.TravelProof, error) {
	return t.proofs.GetForUpdate(ctx, id)
}

func (t *postgresTx) UpdateProofReview(ctx context.Context, p *proof.TravelProof) error {
	return t.proofs.UpdateReview(ctx, p)
}
