package submission

import (
	"context"
	"fmt"

	"github.com/greengig/greengig/internal/concert"
	"github.com/greengig/greengig/internal/proof"
	"github.com/greengig/greengig/internal/travel"
)

// ListProofs returns a user's proofs, newest first, optionally filtered by status.
func (s *Service) ListProofs(ctx context.Context, userID string, status proof.Status) ([]*proof.TravelProof, error) {
	return s.cfg.Proofs.ListByUser(ctx, userID, status)
}

// GetProof returns one proof.
func (s *Service) GetProof(ctx context.Context, id string) (*proof.TravelProof, error) {
	return s.cfg.Proofs.Get(ctx, id)
}

// Stats summarizes classifier performance.
func (s *Service) Stats(ctx context.Context) (proof.Stats, error) {
	return s.cfg.Proofs.Stats(ctx)
}

// Suggestions is the per-mode footprint of a trip to a concert.
type Suggestions struct {
	Concert    *concert.Concert
	DistanceKm float64
	Options    []travel.Option
}

// Suggest compares every mode for a trip from origin to the concert.
func (s *Service) Suggest(ctx context.Context, concertID string, origin travel.GeoPoint) (*Suggestions, error) {
	if err := origin.Validate(); err != nil {
		return nil, reject(ReasonInvalidOrigin, err)
	}
	c, destination, err := concert.Destination(ctx, s.cfg.Concerts, concertID)
	if err != nil {
		return nil, fmt.Errorf("resolve concert: %w", err)
	}
	km := travel.Round2(travel.Distance(origin, destination))
	return &Suggestions{
		Concert:    c,
		DistanceKm: km,
		Options:    s.cfg.Emissions.Compare(km),
	}, nil
}

// EmissionFactors returns the active factor table.
func (s *Service) EmissionFactors() map[travel.Mode]float64 {
	return s.cfg.Emissions.AllFactors()
}
