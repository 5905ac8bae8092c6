package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const pipelineMeterName = "github.com/greengig/greengig/internal/telemetry/pipeline"

// Classifier call outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
	OutcomeTimeout     = "timeout"
)

// PipelineMetrics holds instruments for the travel proof pipeline.
type PipelineMetrics struct {
	classifierDuration metric.Float64Histogram
	classifierTotal    metric.Int64Counter
	classifierConf     metric.Float64Histogram
	submissionTotal    metric.Int64Counter
	pointsAwarded      metric.Int64Counter
	badgesAwarded      metric.Int64Counter
}

// NewPipelineMetrics creates pipeline instruments on the global meter provider.
func NewPipelineMetrics() (*PipelineMetrics, error) {
	return NewPipelineMetricsWithMeter(otel.Meter(pipelineMeterName))
}

// NewPipelineMetricsWithMeter creates pipeline instruments on meter.
func NewPipelineMetricsWithMeter(meter metric.Meter) (*PipelineMetrics, error) {
	classifierDuration, err := meter.Float64Histogram(
		"classifier.request.duration",
		metric.WithDescription("Duration of image classifier calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	classifierTotal, err := meter.Int64Counter(
		"classifier.request.total",
		metric.WithDescription("Total number of image classifier calls by source and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	classifierConf, err := meter.Float64Histogram(
		"classifier.confidence",
		metric.WithDescription("Final aggregated classification confidence"),
	)
	if err != nil {
		return nil, err
	}

	submissionTotal, err := meter.Int64Counter(
		"travel_proof.submission.total",
		metric.WithDescription("Travel proof submissions by resulting status"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, err
	}

	pointsAwarded, err := meter.Int64Counter(
		"reward.points.awarded",
		metric.WithDescription("Reward points granted to users"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		return nil, err
	}

	badgesAwarded, err := meter.Int64Counter(
		"reward.badges.awarded",
		metric.WithDescription("Badges newly granted to users"),
		metric.WithUnit("{badge}"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		classifierDuration: classifierDuration,
		classifierTotal:    classifierTotal,
		classifierConf:     classifierConf,
		submissionTotal:    submissionTotal,
		pointsAwarded:      pointsAwarded,
		badgesAwarded:      badgesAwarded,
	}, nil
}

// RecordClassifierCall records one call to a classifier source.
// A nil receiver is a no-op so components can run without metrics.
func (m *PipelineMetrics) RecordClassifierCall(source, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("classifier.source", source),
		attribute.String("classifier.outcome", outcome),
	)
	// Background context so a canceled request still gets counted.
	ctx := context.Background()
	m.classifierDuration.Record(ctx, duration.Seconds(), attrs)
	m.classifierTotal.Add(ctx, 1, attrs)
}

// RecordClassification records the final aggregated confidence.
func (m *PipelineMetrics) RecordClassification(source string, confidence float64) {
	if m == nil {
		return
	}
	m.classifierConf.Record(context.Background(), confidence,
		metric.WithAttributes(attribute.String("classifier.source", source)))
}

// RecordSubmission counts a persisted submission by status and claimed mode.
func (m *PipelineMetrics) RecordSubmission(status, mode string) {
	if m == nil {
		return
	}
	m.submissionTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("travel_proof.status", status),
		attribute.String("travel_proof.mode", mode),
	))
}

// RecordRewards counts granted points and badges.
func (m *PipelineMetrics) RecordRewards(points, badges int) {
	if m == nil {
		return
	}
	ctx := context.Background()
	if points > 0 {
		m.pointsAwarded.Add(ctx, int64(points))
	}
	if badges > 0 {
		m.badgesAwarded.Add(ctx, int64(badges))
	}
}
