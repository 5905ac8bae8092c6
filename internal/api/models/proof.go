package models

import (
	"github.com/greengig/greengig/internal/classifier"
	"github.com/greengig/greengig/internal/proof"
	"github.com/greengig/greengig/internal/submission"
	"github.com/greengig/greengig/internal/travel"
)

// AIAnalysis is the classifier outcome stored with a proof.
type AIAnalysis struct {
	DetectedTravelMode string             `json:"detectedTravelMode"`
	ModeConfidence     float64            `json:"modeConfidence"`
	IsGreenTravel      bool               `json:"isGreenTravel"`
	OverallConfidence  float64            `json:"overallConfidence"`
	Reason             string             `json:"reason"`
	AutoApproved       bool               `json:"autoApproved"`
	AutoApprovalReason string             `json:"autoApprovalReason"`
	ThresholdUsed      float64            `json:"thresholdUsed"`
	SourceModel        string             `json:"sourceModel"`
	IsReliable         bool               `json:"isReliable"`
	ModeScores         map[string]float64 `json:"modeScores,omitempty"`
	AnalyzedAt         Timestamp          `json:"analyzedAt"`
}

// Review is a reviewer's decision.
type Review struct {
	ReviewerID string    `json:"reviewerId"`
	Notes      string    `json:"notes,omitempty"`
	ReviewedAt Timestamp `json:"reviewedAt"`
}

// TravelProof is the API representation of a proof.
type TravelProof struct {
	ID                 string      `json:"proofId"`
	UserID             string      `json:"userId"`
	ConcertID          string      `json:"concertId"`
	TravelMode         string      `json:"travelMode"`
	Origin             GeoPoint    `json:"origin"`
	DistanceKm         float64     `json:"distanceKm"`
	EmissionsKgCO2     float64     `json:"emissionsKgCO2"`
	ProofImageRef      string      `json:"proofImageRef"`
	ProofDescription   string      `json:"proofDescription"`
	VerificationStatus string      `json:"verificationStatus"`
	AIAnalysis         *AIAnalysis `json:"aiAnalysis"`
	PointsEarned       int         `json:"pointsEarned"`
	IsGreenTravel      bool        `json:"isGreenTravel"`
	Review             *Review     `json:"review,omitempty"`
	CreatedAt          Timestamp   `json:"createdAt"`
}

// FromProof converts a domain proof.
func FromProof(p *proof.TravelProof) TravelProof {
	out := TravelProof{
		ID:                 p.ID,
		UserID:             p.UserID,
		ConcertID:          p.ConcertID,
		TravelMode:         string(p.TravelMode),
		Origin:             FromGeoPoint(p.Origin),
		DistanceKm:         p.DistanceKm,
		EmissionsKgCO2:     p.EmissionsKgCO2,
		ProofImageRef:      p.ProofImageRef,
		ProofDescription:   p.ProofDescription,
		VerificationStatus: string(p.Status),
		PointsEarned:       p.PointsEarned,
		IsGreenTravel:      p.IsGreenTravel,
		CreatedAt:          Timestamp(p.CreatedAt),
	}
	if a := p.AIAnalysis; a != nil {
		out.AIAnalysis = &AIAnalysis{
			DetectedTravelMode: string(a.DetectedTravelMode),
			ModeConfidence:     a.ModeConfidence,
			IsGreenTravel:      a.IsGreenTravel,
			OverallConfidence:  a.OverallConfidence,
			Reason:             a.Reason,
			AutoApproved:       a.AutoApproved,
			AutoApprovalReason: a.AutoApprovalReason,
			ThresholdUsed:      a.ThresholdUsed,
			SourceModel:        a.SourceModel,
			IsReliable:         a.IsReliable,
			ModeScores:         modeMap(a.ModeScores),
			AnalyzedAt:         Timestamp(a.AnalyzedAt),
		}
	}
	if r := p.Review; r != nil {
		out.Review = &Review{ReviewerID: r.ReviewerID, Notes: r.Notes, ReviewedAt: Timestamp(r.ReviewedAt)}
	}
	return out
}

// Attempt is one classifier call made for a submission.
type Attempt struct {
	Source     string  `json:"source"`
	Outcome    string  `json:"outcome"`
	Mode       string  `json:"mode,omitempty"`
	Confidence float64 `json:"confidence"`
	DurationMs int64   `json:"durationMs"`
}

// SubmitProofResponse is returned by POST /v1/travel-proofs.
type SubmitProofResponse struct {
	Proof         TravelProof `json:"proof"`
	BadgesAwarded []string    `json:"badgesAwarded"`
	Attempts      []Attempt   `json:"classifierAttempts"`
}

// FromOutcome converts a committed submission.
func FromOutcome(o *submission.Outcome) SubmitProofResponse {
	out := SubmitProofResponse{
		Proof:         FromProof(o.Proof),
		BadgesAwarded: o.BadgesAwarded,
		Attempts:      fromAttempts(o.Classification.Attempts),
	}
	if out.BadgesAwarded == nil {
		out.BadgesAwarded = []string{}
	}
	return out
}

func fromAttempts(in []classifier.Attempt) []Attempt {
	out := make([]Attempt, 0, len(in))
	for _, a := range in {
		out = append(out, Attempt{
			Source:     a.Source,
			Outcome:    a.Outcome,
			Mode:       string(a.Mode),
			Confidence: a.Confidence,
			DurationMs: a.Duration.Milliseconds(),
		})
	}
	return out
}

// TravelProofList is a user's proofs, newest first.
type TravelProofList struct {
	Items []TravelProof `json:"items"`
}

// NewTravelProofList converts domain proofs.
func NewTravelProofList(ps []*proof.TravelProof) TravelProofList {
	items := make([]TravelProof, 0, len(ps))
	for _, p := range ps {
		items = append(items, FromProof(p))
	}
	return TravelProofList{Items: items}
}

// ReviewRequest is the body of POST /v1/admin/travel-proofs/{proofId}/review.
type ReviewRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// EmissionOption is the footprint of one mode for a trip.
type EmissionOption struct {
	Mode                 string  `json:"mode"`
	DistanceKm           float64 `json:"distanceKm"`
	EstimatedEmissionsKg float64 `json:"estimatedEmissionsKg"`
	Recommended          bool    `json:"recommended"`
}

// EmissionSuggestions is returned by the emission-suggestions endpoint.
type EmissionSuggestions struct {
	ConcertID   string           `json:"concertId"`
	ConcertName string           `json:"concertName"`
	Origin      GeoPoint         `json:"origin"`
	Destination GeoPoint         `json:"destination"`
	DistanceKm  float64          `json:"distanceKm"`
	Options     []EmissionOption `json:"options"`
}

// FromSuggestions converts a comparison.
func FromSuggestions(s *submission.Suggestions, origin travel.GeoPoint) EmissionSuggestions {
	out := EmissionSuggestions{
		ConcertID:   s.Concert.ID,
		ConcertName: s.Concert.Name,
		Origin:      FromGeoPoint(origin),
		DistanceKm:  s.DistanceKm,
		Options:     make([]EmissionOption, 0, len(s.Options)),
	}
	if s.Concert.Coordinates != nil {
		out.Destination = FromGeoPoint(*s.Concert.Coordinates)
	}
	for _, o := range s.Options {
		out.Options = append(out.Options, EmissionOption{
			Mode:                 string(o.Mode),
			DistanceKm:           o.DistanceKm,
			EstimatedEmissionsKg: o.EstimatedEmissionsKg,
			Recommended:          o.Recommended,
		})
	}
	return out
}

// EmissionFactor is kg CO2 per km for one mode.
type EmissionFactor struct {
	Mode          string  `json:"mode"`
	KgCO2PerKm    float64 `json:"kgCO2PerKm"`
	IsGreenTravel bool    `json:"isGreenTravel"`
}

// EmissionFactorList lists factors in mode enumeration order.
type EmissionFactorList struct {
	Items []EmissionFactor `json:"items"`
}

// NewEmissionFactorList converts the factor table.
func NewEmissionFactorList(factors map[travel.Mode]float64) EmissionFactorList {
	items := make([]EmissionFactor, 0, len(factors))
	for _, m := range travel.AllModes() {
		f, ok := factors[m]
		if !ok {
			continue
		}
		items = append(items, EmissionFactor{Mode: string(m), KgCO2PerKm: f, IsGreenTravel: m.IsGreen()})
	}
	return EmissionFactorList{Items: items}
}

func modeMap(in map[travel.Mode]float64) map[string]float64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]float64, len(in))
	for m, v := range in {
		out[string(m)] = v
	}
	return out
}
