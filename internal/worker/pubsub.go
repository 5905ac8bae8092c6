package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/greengig/greengig/internal/events"
	"github.com/greengig/greengig/internal/provider/resilience"
	"github.com/greengig/greengig/internal/user"
)

// Job errors for messages that can never succeed. They are acked so they
// are not redelivered, as are jobs for users that do not exist.
var (
	ErrMalformedJob = errors.New("malformed job message")
	ErrUnknownJob   = errors.New("unknown job type")
)

// IsPermanent reports whether a job error means redelivery cannot help.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrMalformedJob) ||
		errors.Is(err, ErrUnknownJob) ||
		errors.Is(err, user.ErrUserNotFound)
}

// JobRunner executes decoded job messages.
type JobRunner struct {
	sweep    *SweepJob
	registry *resilience.Registry
	logger   zerolog.Logger
}

// JobRunnerConfig holds configuration for a JobRunner.
type JobRunnerConfig struct {
	Sweep    *SweepJob
	Registry *resilience.Registry
	Logger   zerolog.Logger
}

// NewJobRunner creates a new JobRunner.
func NewJobRunner(cfg JobRunnerConfig) *JobRunner {
	return &JobRunner{sweep: cfg.Sweep, registry: cfg.Registry, logger: cfg.Logger}
}

// Process decodes and runs one job message.
func (j *JobRunner) Process(ctx context.Context, data []byte) error {
	var msg events.JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedJob, err)
	}

	switch msg.JobType {
	case events.JobAwardBadges:
		return j.handleAwardBadges(ctx, msg)
	case events.JobHealthCheck:
		return j.handleHealthCheck()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

func (j *JobRunner) handleAwardBadges(ctx context.Context, msg events.JobMessage) error {
	if userID := strings.TrimSpace(msg.UserID); userID != "" {
		awarded, err := j.sweep.awarder.AwardBadges(ctx, userID)
		if err != nil {
			return fmt.Errorf("award badges for %s: %w", userID, err)
		}
		j.logger.Info().Str("user_id", userID).Strs("badges", awarded).Msg("badges reconciled")
		return nil
	}

	result, err := j.sweep.RunAll(ctx)
	if err != nil {
		return err
	}
	return result.Err(j.sweep.config.MaxFailureRatio)
}

// handleHealthCheck fails while any provider circuit is open, so the
// message is redelivered and the outage stays visible in logs.
func (j *JobRunner) handleHealthCheck() error {
	if j.registry == nil {
		return nil
	}

	var open []string
	for _, h := range j.registry.GetAllHealth() {
		event := j.logger.Debug()
		if !h.IsHealthy() {
			event = j.logger.Warn()
		}
		event.
			Str("provider", h.Name).
			Str("circuit_state", h.CircuitState.String()).
			Uint32("consecutive_failures", h.Counts.ConsecutiveFailures).
			Str("last_error", h.LastError).
			Msg("provider health")
		if h.IsUnhealthy() {
			open = append(open, h.Name)
		}
	}

	if len(open) > 0 {
		return fmt.Errorf("health check failed: circuit open for %s", strings.Join(open, ", "))
	}
	return nil
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	runner           *JobRunner
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Runner           *JobRunner
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		runner:           cfg.Runner,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages and blocks until ctx ends.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if h.handleMessage(ctx, msg.ID, msg.PublishTime, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// handleMessage runs a job and reports whether the message should be acked.
func (h *PubSubHandler) handleMessage(ctx context.Context, id string, published time.Time, data []byte) bool {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", id).
		Str("publish_time", published.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.runner.Process(ctx, data)
	switch {
	case IsPermanent(err):
		logger.Warn().Err(err).Msg("dropping message")
		return true
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		return false
	}

	logger.Info().
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return true
}
