package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BadgeAwarder reconciles one user's badges. *reward.Engine satisfies it.
type BadgeAwarder interface {
	AwardBadges(ctx context.Context, userID string) ([]string, error)
}

// UserLister enumerates users. *user.Service satisfies it.
type UserLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// SweepJob reconciles badges for many users with a bounded worker pool.
type SweepJob struct {
	config  SweepConfig
	awarder BadgeAwarder
	users   UserLister
	logger  zerolog.Logger

	metrics *SweepMetrics
}

// SweepMetrics tracks sweep job statistics.
type SweepMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalSweeps     int64
	UsersReconciled int64
	UsersFailed     int64
	BadgesAwarded   int64

	// Timings
	LastSweepAt       time.Time
	LastSweepDuration time.Duration
	TotalDuration     time.Duration
}

// SweepJobConfig holds configuration for creating a SweepJob.
type SweepJobConfig struct {
	Config  SweepConfig
	Awarder BadgeAwarder
	Users   UserLister
	Logger  zerolog.Logger
}

// NewSweepJob creates a new sweep job.
func NewSweepJob(cfg SweepJobConfig) *SweepJob {
	return &SweepJob{
		config:  cfg.Config.withDefaults(),
		awarder: cfg.Awarder,
		users:   cfg.Users,
		logger:  cfg.Logger,
		metrics: &SweepMetrics{},
	}
}

// SweepResult contains the result of a sweep.
type SweepResult struct {
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	TotalUsers    int
	Successful    int
	Failed        int
	BadgesAwarded int
	Errors        []SweepError
}

// SweepError records a user whose reconciliation failed.
type SweepError struct {
	UserID string
	Error  string
}

// Err reports whether too many users failed for the sweep to count as done.
func (r *SweepResult) Err(maxFailureRatio float64) error {
	if r.TotalUsers == 0 || r.Failed == 0 {
		return nil
	}
	if float64(r.Failed)/float64(r.TotalUsers) > maxFailureRatio {
		return fmt.Errorf("too many badge sweep failures: %d/%d", r.Failed, r.TotalUsers)
	}
	return nil
}

// RunAll reconciles every user the lister returns.
func (j *SweepJob) RunAll(ctx context.Context) (*SweepResult, error) {
	ids, err := j.users.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return j.Run(ctx, ids), nil
}

// Run reconciles the given users.
func (j *SweepJob) Run(ctx context.Context, userIDs []string) *SweepResult {
	startTime := time.Now()
	result := &SweepResult{
		StartTime:  startTime,
		TotalUsers: len(userIDs),
	}

	j.logger.Info().
		Int("total_users", result.TotalUsers).
		Int("concurrency", j.config.Concurrency).
		Msg("starting badge sweep")

	idsChan := make(chan string, len(userIDs))
	resultsChan := make(chan userResult, len(userIDs))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.sweepWorker(ctx, idsChan, resultsChan)
		}()
	}

	for _, id := range userIDs {
		idsChan <- id
	}
	close(idsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for ur := range resultsChan {
		if ur.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, SweepError{UserID: ur.userID, Error: ur.err.Error()})
			continue
		}
		result.Successful++
		result.BadgesAwarded += ur.awarded
	}
	// Users never picked up because ctx ended count as failed.
	if skipped := result.TotalUsers - result.Successful - result.Failed; skipped > 0 {
		result.Failed += skipped
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("badges_awarded", result.BadgesAwarded).
		Msg("badge sweep completed")

	return result
}

type userResult struct {
	userID  string
	awarded int
	err     error
}

func (j *SweepJob) sweepWorker(ctx context.Context, ids <-chan string, results chan<- userResult) {
	for id := range ids {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.sweepUser(ctx, id)
		}
	}
}

func (j *SweepJob) sweepUser(ctx context.Context, userID string) userResult {
	userCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	awarded, err := j.awarder.AwardBadges(userCtx, userID)
	if err != nil {
		j.logger.Warn().Err(err).Str("user_id", userID).Msg("badge reconciliation failed")
		return userResult{userID: userID, err: err}
	}
	return userResult{userID: userID, awarded: len(awarded)}
}

func (j *SweepJob) updateMetrics(result *SweepResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalSweeps++
	j.metrics.UsersReconciled += int64(result.Successful)
	j.metrics.UsersFailed += int64(result.Failed)
	j.metrics.BadgesAwarded += int64(result.BadgesAwarded)
	j.metrics.LastSweepAt = result.EndTime
	j.metrics.LastSweepDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *SweepJob) GetMetrics() SweepMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return SweepMetrics{
		TotalSweeps:       j.metrics.TotalSweeps,
		UsersReconciled:   j.metrics.UsersReconciled,
		UsersFailed:       j.metrics.UsersFailed,
		BadgesAwarded:     j.metrics.BadgesAwarded,
		LastSweepAt:       j.metrics.LastSweepAt,
		LastSweepDuration: j.metrics.LastSweepDuration,
		TotalDuration:     j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *SweepJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_sweeps":        m.TotalSweeps,
		"users_reconciled":    m.UsersReconciled,
		"users_failed":        m.UsersFailed,
		"badges_awarded":      m.BadgesAwarded,
		"last_sweep_at":       m.LastSweepAt,
		"last_sweep_duration": m.LastSweepDuration.String(),
		"total_duration":      m.TotalDuration.String(),
	}
}
