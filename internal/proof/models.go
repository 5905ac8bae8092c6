// Package proof holds the TravelProof aggregate: one submitted trip with its
// computed emissions, classifier analysis, and verification status.
package proof

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/greengig/greengig/internal/travel"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid verification status transition")

// Status is the verification status of a proof.
type Status string

// Verification statuses.
const (
	StatusPending      Status = "pending"
	StatusAutoApproved Status = "auto_approved"
	StatusRejected     Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAutoApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusAutoApproved || s == StatusRejected
}

// CanTransitionTo reports whether s may move to next. Only pending moves,
// and only to a terminal status.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.Terminal()
}

// ParseStatus parses a status filter value.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown verification status %q", v)
	}
	return s, nil
}

// AIAnalysis is the persisted classifier outcome.
type AIAnalysis struct {
	DetectedTravelMode travel.Mode             `json:"detectedTravelMode"`
	ModeConfidence     float64                 `json:"modeConfidence"`
	IsGreenTravel      bool                    `json:"isGreenTravel"`
	OverallConfidence  float64                 `json:"overallConfidence"`
	Reason             string                  `json:"reason"`
	AutoApproved       bool                    `json:"autoApproved"`
	AutoApprovalReason string                  `json:"autoApprovalReason"`
	ThresholdUsed      float64                 `json:"thresholdUsed"`
	SourceModel        string                  `json:"sourceModel"`
	IsReliable         bool                    `json:"isReliable"`
	ModeScores         map[travel.Mode]float64 `json:"modeScores,omitempty"`
	AnalyzedAt         time.Time               `json:"analyzedAt"`
}

// Review records a human decision on a pending proof.
type Review struct {
	ReviewerID string
	Notes      string
	ReviewedAt time.Time
}

// TravelProof is one submitted trip. Everything except Status and Review is
// fixed at creation.
type TravelProof struct {
	// ID is the unique proof identifier (format: tpf_XXXX).
	ID        string
	UserID    string
	ConcertID string

	// TravelMode is the mode the user claimed.
	TravelMode travel.Mode
	Origin     travel.GeoPoint

	DistanceKm     float64
	EmissionsKgCO2 float64

	ProofImageRef    string
	ProofDescription string

	Status Status

	// AIAnalysis is nil when no classifier answered.
	AIAnalysis *AIAnalysis

	PointsEarned  int
	IsGreenTravel bool

	Review *Review

	CreatedAt time.Time
}

// Validate checks the creation invariants.
func (p *TravelProof) Validate() error {
	switch {
	case p.ID == "" || p.UserID == "" || p.ConcertID == "":
		return errors.New("proof, user, and concert ids are required")
	case !p.TravelMode.Valid():
		return travel.ErrUnknownMode
	case !p.Status.Valid():
		return fmt.Errorf("unknown verification status %q", p.Status)
	case p.DistanceKm < 0 || math.IsNaN(p.DistanceKm):
		return errors.New("distance must be non-negative")
	case p.EmissionsKgCO2 < 0 || math.IsNaN(p.EmissionsKgCO2):
		return errors.New("emissions must be non-negative")
	case p.PointsEarned < 0:
		return errors.New("points must be non-negative")
	}
	return nil
}

// Transition moves the proof to next, recording the review.
func (p *TravelProof) Transition(next Status, review Review) error {
	if !p.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, next)
	}
	p.Status = next
	p.Review = &review
	return nil
}

// Clone returns a deep copy.
func (p *TravelProof) Clone() *TravelProof {
	if p == nil {
		return nil
	}
	c := *p
	if p.AIAnalysis != nil {
		a := *p.AIAnalysis
		if p.AIAnalysis.ModeScores != nil {
			a.ModeScores = make(map[travel.Mode]float64, len(p.AIAnalysis.ModeScores))
			for k, v := range p.AIAnalysis.ModeScores {
				a.ModeScores[k] = v
			}
		}
		c.AIAnalysis = &a
	}
	if p.Review != nil {
		r := *p.Review
		c.Review = &r
	}
	return &c
}

// Stats summarizes classifier performance over analyzed proofs.
type Stats struct {
	TotalAnalyzed     int     `json:"totalAnalyzed"`
	AutoApproved      int     `json:"autoApproved"`
	AverageConfidence float64 `json:"averageConfidence"`
	AccuracyRate      float64 `json:"accuracyRate"`
	AutoApprovalRate  float64 `json:"autoApprovalRate"`
}

// NewStats derives rates from raw counts. Confidence is rounded to two
// decimals, percentages to one.
func NewStats(total, autoApproved, modeMatches int, confidenceSum float64) Stats {
	if total == 0 {
		return Stats{}
	}
	n := float64(total)
	return Stats{
		TotalAnalyzed:     total,
		AutoApproved:      autoApproved,
		AverageConfidence: math.Round(confidenceSum/n*100) / 100,
		AccuracyRate:      math.Round(float64(modeMatches)/n*1000) / 10,
		AutoApprovalRate:  math.Round(float64(autoApproved)/n*1000) / 10,
	}
}
