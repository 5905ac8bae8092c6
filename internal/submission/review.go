package submission

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/greengig/greengig/internal/proof"
	"github.com/greengig/greengig/internal/storage"
)

// Review decisions accepted from reviewers.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// MinRejectionNotesLen is the shortest explanation accepted for a rejection.
const MinRejectionNotesLen = 10

// ReviewInput is a reviewer's decision on a pending proof.
type ReviewInput struct {
	ProofID    string
	ReviewerID string
	Decision   string
	Notes      string
}

// Review settles a pending proof. Points are fixed at submission and are
// not changed by the review. Approving a proof never awards points: a proof
// held for review keeps the zero points it was stored with.
func (s *Service) Review(ctx context.Context, in ReviewInput) (*proof.TravelProof, error) {
	next, err := validateReview(in)
	if err != nil {
		return nil, err
	}

	var reviewed *proof.TravelProof
	err = s.cfg.Store.Atomically(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.LockProof(ctx, in.ProofID)
		if err != nil {
			return err
		}
		review := proof.Review{
			ReviewerID: in.ReviewerID,
			Notes:      strings.TrimSpace(in.Notes),
			ReviewedAt: s.cfg.Now().UTC(),
		}
		if err := p.Transition(next, review); err != nil {
			return err
		}
		if err := tx.UpdateProofReview(ctx, p); err != nil {
			return err
		}
		reviewed = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Metrics.RecordSubmission(string(reviewed.Status), string(reviewed.TravelMode))
	s.cfg.Logger.Info().
		Str("proof_id", reviewed.ID).
		Str("reviewer_id", in.ReviewerID).
		Str("status", string(reviewed.Status)).
		Msg("travel proof reviewed")

	return reviewed, nil
}

func validateReview(in ReviewInput) (proof.Status, error) {
	if in.ProofID == "" || in.ReviewerID == "" {
		return "", fmt.Errorf("%w: proof and reviewer are required", ErrInvalidReview)
	}
	switch in.Decision {
	case DecisionApproved:
		return proof.StatusAutoApproved, nil
	case DecisionRejected:
		if utf8.RuneCountInString(strings.TrimSpace(in.Notes)) < MinRejectionNotesLen {
			return "", fmt.Errorf("%w: rejection notes must be at least %d characters", ErrInvalidReview, MinRejectionNotesLen)
		}
		return proof.StatusRejected, nil
	default:
		return "", fmt.Errorf("%w: status must be %q or %q", ErrInvalidReview, DecisionApproved, DecisionRejected)
	}
}
