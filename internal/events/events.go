// Package events publishes domain events and background job requests to
// Google Cloud Pub/Sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Event and job type names carried in the type attribute.
const (
	TypeProofSubmitted = "proof_submitted"
	JobAwardBadges     = "award_badges"
	JobHealthCheck     = "health_check"
)

// ProofSubmitted is published after a proof commits.
type ProofSubmitted struct {
	ProofID       string    `json:"proof_id"`
	UserID        string    `json:"user_id"`
	ConcertID     string    `json:"concert_id"`
	TravelMode    string    `json:"travel_mode"`
	Status        string    `json:"status"`
	PointsEarned  int       `json:"points_earned"`
	BadgesAwarded []string  `json:"badges_awarded,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// JobMessage asks the worker to run a job.
type JobMessage struct {
	JobType string `json:"job_type"`
	UserID  string `json:"user_id,omitempty"`
}

// Publisher sends events.
type Publisher interface {
	PublishProofSubmitted(ctx context.Context, e ProofSubmitted) error
}

// PubSubConfig holds configuration for the Pub/Sub publisher.
type PubSubConfig struct {
	ProjectID string
	Topic     string
	Logger    zerolog.Logger
}

// PubSubPublisher publishes events to a topic.
type PubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
	logger    zerolog.Logger
}

var _ Publisher = (*PubSubPublisher)(nil)

// NewPubSubPublisher creates a publisher for cfg.Topic.
func NewPubSubPublisher(ctx context.Context, cfg PubSubConfig) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &PubSubPublisher{
		client:    client,
		publisher: client.Publisher(cfg.Topic),
		topic:     cfg.Topic,
		logger:    cfg.Logger,
	}, nil
}

// PublishProofSubmitted publishes e and waits for the server ack.
func (p *PubSubPublisher) PublishProofSubmitted(ctx context.Context, e ProofSubmitted) error {
	return p.publish(ctx, TypeProofSubmitted, e)
}

// PublishJob enqueues a worker job.
func (p *PubSubPublisher) PublishJob(ctx context.Context, job JobMessage) error {
	return p.publish(ctx, job.JobType, job)
}

func (p *PubSubPublisher) publish(ctx context.Context, typ string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", typ, err)
	}

	res := p.publisher.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"type": typ},
	})
	id, err := res.Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing %s to %s: %w", typ, p.topic, err)
	}

	p.logger.Debug().Str("type", typ).Str("message_id", id).Msg("event published")
	return nil
}

// Close flushes pending messages and closes the client.
func (p *PubSubPublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []ProofSubmitted
	err    error
}

var _ Publisher = (*Recorder)(nil)

// NewRecorder creates a Recorder. A non-nil err is returned by every publish.
func NewRecorder(err error) *Recorder {
	return &Recorder{err: err}
}

// PublishProofSubmitted records e.
func (r *Recorder) PublishProofSubmitted(_ context.Context, e ProofSubmitted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

// Events returns the recorded events.
func (r *Recorder) Events() []ProofSubmitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ProofSubmitted(nil), r.events...)
}
