package classifier

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/greengig/greengig/internal/provider/resilience"
	"github.com/greengig/greengig/internal/telemetry"
)

const tracerName = "github.com/greengig/greengig/internal/classifier"

// Default thresholds.
const (
	DefaultAcceptThreshold        = 0.2
	DefaultLowConfidenceThreshold = 0.4
	DefaultReliableThreshold      = 0.5
	DefaultCallTimeout            = 30 * time.Second
	keptPredictions               = 5
)

// AggregatorConfig holds configuration for the Aggregator.
type AggregatorConfig struct {
	// Sources are tried in order. The first is the primary model.
	Sources []Classifier

	// Keywords maps labels to modes. Default: DefaultKeywords().
	Keywords KeywordTable

	// TopK predictions considered per source. Default: 10
	TopK int

	// AcceptThreshold: a source's best mode is kept only above this. Default: 0.2
	AcceptThreshold float64

	// LowConfidenceThreshold: the next source is consulted while the best
	// confidence so far is below this. Default: 0.4
	LowConfidenceThreshold float64

	// ReliableThreshold: results above this are reliable. Default: 0.5
	ReliableThreshold float64

	// CallTimeout bounds each source call. Default: 30s
	CallTimeout time.Duration

	Logger   zerolog.Logger
	Metrics  *telemetry.PipelineMetrics
	Registry *resilience.Registry
}

// Aggregator classifies an image against travel modes using an ordered list
// of sources with confidence-driven escalation.
type Aggregator struct {
	cfg AggregatorConfig
}

// NewAggregator creates an Aggregator, filling defaults.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.Keywords == nil {
		cfg.Keywords = DefaultKeywords()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.AcceptThreshold == 0 {
		cfg.AcceptThreshold = DefaultAcceptThreshold
	}
	if cfg.LowConfidenceThreshold == 0 {
		cfg.LowConfidenceThreshold = DefaultLowConfidenceThreshold
	}
	if cfg.ReliableThreshold == 0 {
		cfg.ReliableThreshold = DefaultReliableThreshold
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	cfg.Sources = append([]Classifier(nil), cfg.Sources...)

	return &Aggregator{cfg: cfg}
}

// SourceNames returns the configured sources in escalation order.
func (a *Aggregator) SourceNames() []string {
	names := make([]string, len(a.cfg.Sources))
	for i, s := range a.cfg.Sources {
		names[i] = s.Name()
	}
	return names
}

// Classify runs the escalation policy. It never fails: if no source answers,
// the result is Unclassified with the attempts recorded. If ctx is done,
// remaining sources are skipped.
func (a *Aggregator) Classify(ctx context.Context, image []byte) Result {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "classifier.Classify")
	defer span.End()

	var (
		best     Result
		have     bool
		attempts []Attempt
	)

	for _, src := range a.cfg.Sources {
		if have && best.Confidence >= a.cfg.LowConfidenceThreshold {
			break
		}
		if ctx.Err() != nil {
			a.cfg.Logger.Warn().Err(ctx.Err()).Str("source", src.Name()).Msg("classification abandoned")
			break
		}

		candidate, attempt, ok := a.invoke(ctx, src, image)
		attempts = append(attempts, attempt)
		if !ok {
			continue
		}

		// A later source only wins with strictly greater confidence.
		if !have || candidate.Confidence > best.Confidence {
			best = candidate
			have = true
		}
	}

	if !have {
		best = Unclassified()
	}
	best.IsReliable = best.Confidence > a.cfg.ReliableThreshold
	best.Attempts = attempts

	span.SetAttributes(
		attribute.String("classifier.source", best.SourceModel),
		attribute.String("classifier.mode", string(best.DetectedMode)),
		attribute.Float64("classifier.confidence", best.Confidence),
	)
	a.cfg.Metrics.RecordClassification(best.SourceModel, best.Confidence)

	a.cfg.Logger.Debug().
		Str("source", best.SourceModel).
		Str("mode", string(best.DetectedMode)).
		Float64("confidence", best.Confidence).
		Bool("reliable", best.IsReliable).
		Int("attempts", len(attempts)).
		Msg("image classified")

	return best
}

// Evaluate turns one source's predictions into a per-source result.
func (a *Aggregator) Evaluate(source string, preds []Prediction) Result {
	scores := Score(preds, a.cfg.Keywords, a.cfg.TopK)
	mode, confidence := Detect(scores, a.cfg.AcceptThreshold)

	return Result{
		DetectedMode:  mode,
		Confidence:    confidence,
		PerModeScores: scores,
		SourceModel:   source,
		Predictions:   TopPredictions(preds, keptPredictions),
	}
}

func (a *Aggregator) invoke(ctx context.Context, src Classifier, image []byte) (Result, Attempt, bool) {
	name := src.Name()
	attempt := Attempt{Source: name}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()

	callCtx, span := otel.Tracer(tracerName).Start(callCtx, "classifier.source "+name)
	defer span.End()

	start := time.Now()
	preds, err := src.Classify(callCtx, image)
	attempt.Duration = time.Since(start)

	if err != nil {
		attempt.Outcome = telemetry.OutcomeUnavailable
		if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			attempt.Outcome = telemetry.OutcomeTimeout
		}
		attempt.Error = err.Error()

		span.RecordError(err)
		span.SetStatus(codes.Error, attempt.Outcome)
		a.cfg.Metrics.RecordClassifierCall(name, attempt.Outcome, attempt.Duration)
		if a.cfg.Registry != nil {
			a.cfg.Registry.RecordFailure(name, err)
		}
		a.cfg.Logger.Warn().
			Err(err).
			Str("source", name).
			Str("outcome", attempt.Outcome).
			Dur("duration", attempt.Duration).
			Msg("classifier call failed, skipping source")
		return Result{}, attempt, false
	}

	res := a.Evaluate(name, preds)
	attempt.Outcome = telemetry.OutcomeOK
	attempt.Mode = res.DetectedMode
	attempt.Confidence = res.Confidence

	a.cfg.Metrics.RecordClassifierCall(name, attempt.Outcome, attempt.Duration)
	if a.cfg.Registry != nil {
		a.cfg.Registry.RecordSuccess(name)
	}
	span.SetAttributes(attribute.Float64("classifier.confidence", res.Confidence))

	return res, attempt, true
}
