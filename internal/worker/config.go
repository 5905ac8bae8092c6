// Package worker runs GreenGig background jobs delivered over Pub/Sub:
// badge reconciliation sweeps and provider health checks.
package worker

import (
	"time"
)

// SweepConfig holds configuration for the badge sweep job.
type SweepConfig struct {
	// Concurrency is the number of users reconciled at once.
	// Default: 3
	Concurrency int

	// Timeout bounds the reconciliation of a single user.
	// Default: 30 seconds
	Timeout time.Duration

	// MaxFailureRatio is the share of failed users above which the sweep
	// reports an error so the message is redelivered.
	// Default: 0.5
	MaxFailureRatio float64
}

// DefaultSweepConfig returns the default sweep configuration.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Concurrency:     3,
		Timeout:         30 * time.Second,
		MaxFailureRatio: 0.5,
	}
}

func (c SweepConfig) withDefaults() SweepConfig {
	def := DefaultSweepConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxFailureRatio <= 0 {
		c.MaxFailureRatio = def.MaxFailureRatio
	}
	return c
}
