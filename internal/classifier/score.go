package classifier

import (
	"math"
	"sort"

	"github.com/greengig/greengig/internal/travel"
)

// DefaultTopK is how many predictions per source are considered.
const DefaultTopK = 10

// TopPredictions returns the k highest-scoring predictions, highest first.
// Ties keep the source's order. The input is not modified.
func TopPredictions(preds []Prediction, k int) []Prediction {
	out := make([]Prediction, 0, len(preds))
	for _, p := range preds {
		if math.IsNaN(p.Score) || math.IsInf(p.Score, 0) || p.Score < 0 {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// Score sums, per mode, the scores of the top-K predictions whose label
// matches one of that mode's keywords. A prediction counts at most once per
// mode but may count toward several modes. Every mode has an entry.
func Score(preds []Prediction, table KeywordTable, topK int) map[travel.Mode]float64 {
	scores := make(map[travel.Mode]float64, len(travel.AllModes()))
	for _, mode := range travel.AllModes() {
		scores[mode] = 0
	}

	for _, p := range TopPredictions(preds, topK) {
		for _, mode := range travel.AllModes() {
			if table.Matches(mode, p.Label) {
				scores[mode] += p.Score
			}
		}
	}
	return scores
}

// Argmax returns the mode with the highest score. Ties go to the mode that
// comes first in travel.AllModes.
func Argmax(scores map[travel.Mode]float64) (travel.Mode, float64) {
	best := travel.ModeUnknown
	bestScore := math.Inf(-1)
	for _, mode := range travel.AllModes() {
		if s := scores[mode]; s > bestScore {
			best, bestScore = mode, s
		}
	}
	if best == travel.ModeUnknown {
		return travel.ModeUnknown, 0
	}
	return best, bestScore
}

// Detect applies the acceptance threshold to Argmax. Below or at threshold the
// mode is unknown with confidence 0. Confidence is clamped to 1 since several
// matching predictions can sum past it.
func Detect(scores map[travel.Mode]float64, acceptThreshold float64) (travel.Mode, float64) {
	mode, confidence := Argmax(scores)
	if confidence <= acceptThreshold {
		return travel.ModeUnknown, 0
	}
	return mode, math.Min(confidence, 1)
}
