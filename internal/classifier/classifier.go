// Package classifier maps image-label predictions from external models onto
// travel modes and reconciles several models into one classification.
package classifier

import (
	"context"
	"errors"
	"time"

	"github.com/greengig/greengig/internal/travel"
)

// Errors a Classifier may return. Both are absorbed by the Aggregator.
var (
	ErrUnavailable = errors.New("classifier unavailable")
	ErrTimeout     = errors.New("classifier timed out")
)

// SourceNone is the SourceModel reported when no classifier produced a result.
const SourceNone = "none"

// Prediction is one raw (label, score) pair from an image model.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classifier returns ranked label predictions for an image.
type Classifier interface {
	// Name identifies the source, e.g. the model id.
	Name() string

	// Classify returns predictions ordered by descending score.
	Classify(ctx context.Context, image []byte) ([]Prediction, error)
}

// Attempt records one classifier invocation made during Classify.
type Attempt struct {
	Source     string        `json:"source"`
	Outcome    string        `json:"outcome"`
	Mode       travel.Mode   `json:"mode,omitempty"`
	Confidence float64       `json:"confidence"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Result is the aggregated classification of one image. It is never mutated
// after Classify returns it.
type Result struct {
	DetectedMode  travel.Mode             `json:"detectedMode"`
	Confidence    float64                 `json:"confidence"`
	PerModeScores map[travel.Mode]float64 `json:"perModeScores"`
	SourceModel   string                  `json:"sourceModel"`
	IsReliable    bool                    `json:"isReliable"`

	// Predictions are the top raw predictions of the winning source.
	Predictions []Prediction `json:"predictions,omitempty"`
	Attempts    []Attempt    `json:"attempts,omitempty"`
}

// Unclassified is the result when every source failed.
func Unclassified() Result {
	return Result{
		DetectedMode:  travel.ModeUnknown,
		PerModeScores: map[travel.Mode]float64{},
		SourceModel:   SourceNone,
	}
}
