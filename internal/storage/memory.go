package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/greengig/greengig/internal/proof"
	"github.com/greengig/greengig/internal/user"
)

// MemoryStore implements Store over the in-memory repositories. Transactions
// are serialized by one mutex and buffer their writes until fn succeeds.
type MemoryStore struct {
	mu     sync.Mutex
	users  *user.InMemoryRepository
	proofs *proof.InMemoryRepository
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store writing through to users and proofs.
func NewMemoryStore(users *user.InMemoryRepository, proofs *proof.InMemoryRepository) *MemoryStore {
	return &MemoryStore{users: users, proofs: proofs}
}

// Atomically runs fn with staged writes, applying them only if fn succeeds.
func (s *MemoryStore) Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{
		store:  s,
		users:  make(map[string]*user.User),
		proofs: make(map[string]*proof.TravelProof),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit(ctx)
}

type memoryTx struct {
	store *MemoryStore

	users     map[string]*user.User
	userOrder []string
	proofs    map[string]*proof.TravelProof
	inserted  []string
	reviewed  []string
}

func (t *memoryTx) LockUser(ctx context.Context, id string) (*user.User, error) {
	if u, ok := t.users[id]; ok {
		return u.Clone(), nil
	}
	u, err := t.store.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (t *memoryTx) SaveUser(ctx context.Context, u *user.User) error {
	if _, ok := t.users[u.ID]; !ok {
		if _, err := t.store.users.Get(ctx, u.ID); err != nil {
			return err
		}
		t.userOrder = append(t.userOrder, u.ID)
	}
	t.users[u.ID] = u.Clone()
	return nil
}

func (t *memoryTx) InsertProof(ctx context.Context, p *proof.TravelProof) error {
	if _, ok := t.proofs[p.ID]; ok {
		return proof.ErrProofExists
	}
	if _, err := t.store.proofs.Get(ctx, p.ID); err == nil {
		return proof.ErrProofExists
	} else if !errors.Is(err, proof.ErrProofNotFound) {
		return err
	}
	t.proofs[p.ID] = p.Clone()
	t.inserted = append(t.inserted, p.ID)
	return nil
}

func (t *memoryTx) LockProof(ctx context.Context, id string) (*proof.TravelProof, error) {
	if p, ok := t.proofs[id]; ok {
		return p.Clone(), nil
	}
	return t.store.proofs.Get(ctx, id)
}

func (t *memoryTx) UpdateProofReview(ctx context.Context, p *proof.TravelProof) error {
	if _, ok := t.proofs[p.ID]; !ok {
		if _, err := t.store.proofs.Get(ctx, p.ID); err != nil {
			return err
		}
		t.reviewed = append(t.reviewed, p.ID)
	}
	t.proofs[p.ID] = p.Clone()
	return nil
}

// commit cannot fail part-way: every write was checked while staging and the
// store mutex excludes other writers.
func (t *memoryTx) commit(ctx context.Context) error {
	for _, id := range t.inserted {
		if err := t.store.proofs.Insert(ctx, t.proofs[id]); err != nil {
			return err
		}
	}
	for _, id := range t.reviewed {
		if err := t.store.proofs.UpdateReview(ctx, t.proofs[id]); err != nil {
			return err
		}
	}
	for _, id := range t.userOrder {
		if err := t.store.users.Save(ctx, t.users[id]); err != nil {
			return err
		}
	}
	return nil
}
