// Package verification decides whether a classified trip counts as green
// travel and whether it can be approved without a human reviewer.
package verification

import (
	"fmt"

	"github.com/greengig/greengig/internal/travel"
)

// Verdict is the green/non-green judgement for a detected mode.
type Verdict struct {
	IsGreen bool   `json:"isGreen"`
	Reason  string `json:"reason"`
}

// Verify judges detectedMode against the green set. The reason always names
// the mode and the confidence as a percentage with one decimal.
func Verify(detectedMode travel.Mode, confidence float64) Verdict {
	pct := Percent(confidence)
	if detectedMode.IsGreen() {
		return Verdict{
			IsGreen: true,
			Reason:  fmt.Sprintf("Detected green travel mode: %s (confidence: %s%%)", detectedMode, pct),
		}
	}
	return Verdict{
		IsGreen: false,
		Reason:  fmt.Sprintf("Detected non-green mode: %s (confidence: %s%%)", detectedMode, pct),
	}
}

// Percent formats a [0,1] confidence as a one-decimal percentage.
func Percent(confidence float64) string {
	return fmt.Sprintf("%.1f", confidence*100)
}
