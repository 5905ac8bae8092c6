// Package submission runs the "submit travel proof" pipeline: quality gate,
// distance and emissions, image upload, classification, verification,
// points, and a single atomic commit of the proof and the user's rewards.
package submission

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/greengig/greengig/internal/blobstore"
	"github.com/greengig/greengig/internal/classifier"
	"github.com/greengig/greengig/internal/concert"
	"github.com/greengig/greengig/internal/events"
	"github.com/greengig/greengig/internal/featureflags"
	"github.com/greengig/greengig/internal/imagequality"
	"github.com/greengig/greengig/internal/proof"
	"github.com/greengig/greengig/internal/reward"
	"github.com/greengig/greengig/internal/storage"
	"github.com/greengig/greengig/internal/telemetry"
	"github.com/greengig/greengig/internal/travel"
	"github.com/greengig/greengig/internal/user"
	"github.com/greengig/greengig/internal/verification"
)

const tracerName = "github.com/greengig/greengig/internal/submission"

// Description length limits.
const (
	MinDescriptionLen = 10
	MaxDescriptionLen = 500
)

// Rejection reasons.
const (
	ReasonImageRequired      = "Proof image is required"
	ReasonInvalidImage       = "Invalid image file"
	ReasonInvalidMode        = "Travel mode must be one of car, train, bus, flight, bike, walk"
	ReasonInvalidOrigin      = "Origin coordinates are invalid"
	ReasonInvalidDescription = "Proof description must be between 10 and 500 characters"
	ReasonMissingIDs         = "User and concert are required"
	reasonHeldForReview      = "Auto-approval disabled; awaiting manual review"
)

// ModeClassifier produces a classification that never fails.
// *classifier.Aggregator satisfies it.
type ModeClassifier interface {
	Classify(ctx context.Context, image []byte) classifier.Result
}

var _ ModeClassifier = (*classifier.Aggregator)(nil)

// UserLookup finds a submitter. *user.Service and user repositories satisfy it.
type UserLookup interface {
	Get(ctx context.Context, id string) (*user.User, error)
}

// Config holds the collaborators of Service.
type Config struct {
	Gate       *imagequality.Gate
	Concerts   concert.Repository
	Emissions  *travel.EmissionTable
	Blobs      blobstore.Store
	Classifier ModeClassifier
	Policy     *verification.ApprovalPolicy
	Rewards    *reward.Engine
	Store      storage.Store
	Proofs     proof.Repository

	// Users is checked before any upload or classifier call. When nil the
	// submitter is only resolved inside the final transaction.
	Users UserLookup

	// Flags and Events are optional.
	Flags  *featureflags.Service
	Events events.Publisher

	Metrics *telemetry.PipelineMetrics
	Logger  zerolog.Logger

	// Now and NewID default to time.Now and a tpf_ prefixed random id.
	Now   func() time.Time
	NewID func() string
}

// Service submits, reviews, and queries travel proofs.
type Service struct {
	cfg Config
}

// NewService creates a submission service.
func NewService(cfg Config) *Service {
	if cfg.Gate == nil {
		cfg.Gate = imagequality.NewGate(imagequality.GateConfig{})
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = NewProofID
	}
	return &Service{cfg: cfg}
}

// NewProofID returns a new proof identifier.
func NewProofID() string {
	return "tpf_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:20]
}

// Input is one proof submission.
type Input struct {
	UserID      string
	ConcertID   string
	TravelMode  string
	Origin      travel.GeoPoint
	Description string

	Image     []byte
	ImageName string
}

// Outcome is a committed submission.
type Outcome struct {
	Proof          *proof.TravelProof
	BadgesAwarded  []string
	Classification classifier.Result
}

// Submit runs the pipeline. Classifier failures never fail a submission;
// every other failure leaves no proof and no point change behind.
func (s *Service) Submit(ctx context.Context, in Input) (*Outcome, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "submission.Submit")
	defer span.End()

	if s.cfg.Flags.AreSubmissionsDisabled(ctx) {
		return nil, ErrSubmissionsDisabled
	}

	mode, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	quality, err := s.cfg.Gate.Validate(in.Image, in.ImageName)
	if err != nil {
		return nil, reject(ReasonInvalidImage, err)
	}
	if !quality.OK {
		return nil, reject(quality.Reason, nil)
	}

	_, destination, err := concert.Destination(ctx, s.cfg.Concerts, in.ConcertID)
	if err != nil {
		return nil, err
	}

	// The transaction locks the user again; this check keeps an unknown
	// submitter from leaving an image in storage or spending classifier quota.
	if s.cfg.Users != nil {
		if _, err := s.cfg.Users.Get(ctx, in.UserID); err != nil {
			return nil, err
		}
	}

	proofID := s.cfg.NewID()
	var (
		distanceKm float64
		emissions  float64
		imageRef   string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		distanceKm = travel.Distance(in.Origin, destination)
		var err error
		emissions, err = s.cfg.Emissions.Emissions(mode, distanceKm)
		return err
	})
	g.Go(func() error {
		key := blobstore.ProofImageKey(in.UserID, proofID, quality.Format)
		var err error
		imageRef, err = s.cfg.Blobs.Put(gctx, key, in.Image, blobstore.ContentType(quality.Format))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := s.cfg.Classifier.Classify(ctx, in.Image)
	now := s.cfg.Now().UTC()

	p := &proof.TravelProof{
		ID:               proofID,
		UserID:           in.UserID,
		ConcertID:        in.ConcertID,
		TravelMode:       mode,
		Origin:           in.Origin,
		DistanceKm:       distanceKm,
		EmissionsKgCO2:   emissions,
		ProofImageRef:    imageRef,
		ProofDescription: strings.TrimSpace(in.Description),
		Status:           proof.StatusPending,
		IsGreenTravel:    mode.IsGreen(),
		CreatedAt:        now,
	}

	if result.SourceModel != classifier.SourceNone {
		verdict := verification.Verify(result.DetectedMode, result.Confidence)
		decision := s.cfg.Policy.Decide(result, verdict)
		if decision.AutoApproved && s.cfg.Flags.IsAutoApprovalDisabled(ctx) {
			decision = s.cfg.Policy.Hold(reasonHeldForReview)
		}
		if decision.AutoApproved {
			p.Status = proof.StatusAutoApproved
		}
		p.IsGreenTravel = verdict.IsGreen
		p.AIAnalysis = newAnalysis(result, verdict, decision, now)
	}

	p.PointsEarned = reward.ComputePoints(p.IsGreenTravel, mode, emissions, p.Status == proof.StatusAutoApproved)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var badges []string
	err = s.cfg.Store.Atomically(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.InsertProof(ctx, p); err != nil {
			return err
		}
		var err error
		badges, err = s.cfg.Rewards.Grant(ctx, tx, p.UserID, p.PointsEarned)
		return err
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("proof.status", string(p.Status)),
		attribute.String("proof.mode", string(mode)),
		attribute.Int("proof.points", p.PointsEarned),
	)
	s.cfg.Metrics.RecordSubmission(string(p.Status), string(mode))
	s.cfg.Metrics.RecordRewards(p.PointsEarned, len(badges))

	s.cfg.Logger.Info().
		Str("proof_id", p.ID).
		Str("user_id", p.UserID).
		Str("claimed_mode", string(mode)).
		Str("detected_mode", string(result.DetectedMode)).
		Float64("confidence", result.Confidence).
		Str("source", result.SourceModel).
		Str("status", string(p.Status)).
		Int("points", p.PointsEarned).
		Strs("badges", badges).
		Msg("travel proof submitted")

	s.publish(ctx, p, badges)

	return &Outcome{Proof: p, BadgesAwarded: badges, Classification: result}, nil
}

func (s *Service) publish(ctx context.Context, p *proof.TravelProof, badges []string) {
	if s.cfg.Events == nil || s.cfg.Flags.AreProofEventsDisabled(ctx) {
		return
	}
	err := s.cfg.Events.PublishProofSubmitted(ctx, events.ProofSubmitted{
		ProofID:       p.ID,
		UserID:        p.UserID,
		ConcertID:     p.ConcertID,
		TravelMode:    string(p.TravelMode),
		Status:        string(p.Status),
		PointsEarned:  p.PointsEarned,
		BadgesAwarded: badges,
		OccurredAt:    p.CreatedAt,
	})
	if err != nil {
		s.cfg.Logger.Warn().Err(err).Str("proof_id", p.ID).Msg("failed to publish proof event")
	}
}

func validateInput(in Input) (travel.Mode, error) {
	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.ConcertID) == "" {
		return travel.ModeUnknown, reject(ReasonMissingIDs, nil)
	}
	if len(in.Image) == 0 {
		return travel.ModeUnknown, reject(ReasonImageRequired, nil)
	}
	mode, err := travel.ParseMode(in.TravelMode)
	if err != nil {
		return travel.ModeUnknown, reject(ReasonInvalidMode, err)
	}
	if err := in.Origin.Validate(); err != nil {
		return travel.ModeUnknown, reject(ReasonInvalidOrigin, err)
	}
	n := utf8.RuneCountInString(strings.TrimSpace(in.Description))
	if n < MinDescriptionLen || n > MaxDescriptionLen {
		return travel.ModeUnknown, reject(ReasonInvalidDescription, nil)
	}
	return mode, nil
}

func newAnalysis(r classifier.Result, v verification.Verdict, d verification.Decision, at time.Time) *proof.AIAnalysis {
	return &proof.AIAnalysis{
		DetectedTravelMode: r.DetectedMode,
		ModeConfidence:     r.Confidence,
		IsGreenTravel:      v.IsGreen,
		OverallConfidence:  r.Confidence,
		Reason:             v.Reason,
		AutoApproved:       d.AutoApproved,
		AutoApprovalReason: d.Reason,
		ThresholdUsed:      d.ThresholdUsed,
		SourceModel:        r.SourceModel,
		IsReliable:         r.IsReliable,
		ModeScores:         r.PerModeScores,
		AnalyzedAt:         at,
	}
}

// IsRejection reports whether err is a RejectionError and returns it.
func IsRejection(err error) (*RejectionError, bool) {
	var re *RejectionError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
