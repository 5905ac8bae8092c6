package verification

import (
	"errors"
	"fmt"
	"math"

	"github.com/greengig/greengig/internal/classifier"
)

// DefaultApprovalThreshold is the confidence needed for auto-approval.
const DefaultApprovalThreshold = 0.6

// ErrInvalidThreshold is returned for thresholds outside (0, 1].
var ErrInvalidThreshold = errors.New("approval threshold must be in (0, 1]")

// Decision is the auto-approval outcome.
type Decision struct {
	AutoApproved  bool    `json:"autoApproved"`
	Reason        string  `json:"reason"`
	ThresholdUsed float64 `json:"thresholdUsed"`
}

// ApprovalPolicy approves green, reliable, confident classifications.
type ApprovalPolicy struct {
	threshold float64
}

// NewApprovalPolicy validates threshold. Zero selects DefaultApprovalThreshold.
func NewApprovalPolicy(threshold float64) (*ApprovalPolicy, error) {
	if threshold == 0 {
		threshold = DefaultApprovalThreshold
	}
	if math.IsNaN(threshold) || threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	return &ApprovalPolicy{threshold: threshold}, nil
}

// Threshold returns the configured threshold.
func (p *ApprovalPolicy) Threshold() float64 {
	return p.threshold
}

// Decide auto-approves when the verdict is green, the classification is
// reliable, and its confidence reaches the threshold.
func (p *ApprovalPolicy) Decide(result classifier.Result, verdict Verdict) Decision {
	d := Decision{ThresholdUsed: p.threshold}

	if verdict.IsGreen && result.IsReliable && result.Confidence >= p.threshold {
		d.AutoApproved = true
		d.Reason = fmt.Sprintf("High confidence (%s%%) in green travel detection", Percent(result.Confidence))
		return d
	}

	d.Reason = fmt.Sprintf("Insufficient confidence (%s%% < %s%%) or non-green travel",
		Percent(result.Confidence), trimPercent(p.threshold))
	return d
}

// Hold returns a non-approving decision, used when auto-approval is switched off.
func (p *ApprovalPolicy) Hold(reason string) Decision {
	return Decision{ThresholdUsed: p.threshold, Reason: reason}
}

func trimPercent(v float64) string {
	pct := math.Round(v*1000) / 10
	if pct == math.Trunc(pct) {
		return fmt.Sprintf("%.0f", pct)
	}
	return fmt.Sprintf("%.1f", pct)
}
