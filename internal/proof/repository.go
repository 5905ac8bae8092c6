package proof

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Repository errors.
var (
	ErrProofNotFound = errors.New("travel proof not found")
	ErrProofExists   = errors.New("travel proof already exists")
)

// Repository defines the interface for travel proof persistence.
type Repository interface {
	// Get retrieves a proof by ID.
	Get(ctx context.Context, id string) (*TravelProof, error)

	// ListByUser returns a user's proofs, newest first. An empty status
	// returns all statuses.
	ListByUser(ctx context.Context, userID string, status Status) ([]*TravelProof, error)

	// Stats summarizes proofs that carry an AI analysis.
	Stats(ctx context.Context) (Stats, error)

	// Insert stores a new proof.
	Insert(ctx context.Context, p *TravelProof) error

	// UpdateReview persists a status transition and its review.
	UpdateReview(ctx context.Context, p *TravelProof) error
}

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu     sync.RWMutex
	proofs map[string]*TravelProof
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates a new in-memory proof repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{proofs: make(map[string]*TravelProof)}
}

// Get retrieves a proof by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*TravelProof, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.proofs[id]
	if !ok {
		return nil, ErrProofNotFound
	}
	return p.Clone(), nil
}

// ListByUser returns a user's proofs, newest first.
func (r *InMemoryRepository) ListByUser(_ context.Context, userID string, status Status) ([]*TravelProof, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*TravelProof
	for _, p := range r.proofs {
		if p.UserID != userID {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Stats summarizes proofs that carry an AI analysis.
func (r *InMemoryRepository) Stats(_ context.Context) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		total, approved, matches int
		confidence               float64
	)
	for _, p := range r.proofs {
		if p.AIAnalysis == nil {
			continue
		}
		total++
		confidence += p.AIAnalysis.OverallConfidence
		if p.Status == StatusAutoApproved {
			approved++
		}
		if p.AIAnalysis.DetectedTravelMode == p.TravelMode {
			matches++
		}
	}
	return NewStats(total, approved, matches, confidence), nil
}

// Insert stores a new proof.
func (r *InMemoryRepository) Insert(_ context.Context, p *TravelProof) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.proofs[p.ID]; ok {
		return ErrProofExists
	}
	r.proofs[p.ID] = p.Clone()
	return nil
}

// UpdateReview persists a status transition and its review.
func (r *InMemoryRepository) UpdateReview(_ context.Context, p *TravelProof) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.proofs[p.ID]
	if !ok {
		return ErrProofNotFound
	}
	updated := existing.Clone()
	updated.Status = p.Status
	if p.Review != nil {
		rv := *p.Review
		updated.Review = &rv
	}
	r.proofs[p.ID] = updated
	return nil
}
