package classifier_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengig/greengig/internal/classifier"
	"github.com/greengig/greengig/internal/travel"
)

func TestScore_SumsMatchingLabels(t *testing.T) {
	preds := []classifier.Prediction{
		{Label: "mountain bike, all-terrain bike", Score: 0.6},
		{Label: "bicycle-built-for-two", Score: 0.2},
		{Label: "passenger car", Score: 0.1},
	}

	scores := classifier.Score(preds, classifier.DefaultKeywords(), classifier.DefaultTopK)

	assert.InDelta(t, 0.8, scores[travel.ModeBike], 1e-9)
	assert.InDelta(t, 0.1, scores[travel.ModeCar], 1e-9)
	assert.Zero(t, scores[travel.ModeFlight])
	assert.Len(t, scores, len(travel.AllModes()))
}

func TestScore_PredictionCountsOncePerMode(t *testing.T) {
	preds := []classifier.Prediction{{Label: "Bicycle on a BIKE LANE near a bike rack", Score: 0.3}}

	scores := classifier.Score(preds, classifier.DefaultKeywords(), classifier.DefaultTopK)
	assert.InDelta(t, 0.3, scores[travel.ModeBike], 1e-9)
}

func TestScore_SharedKeywordCountsForEveryMode(t *testing.T) {
	preds := []classifier.Prediction{{Label: "transit", Score: 0.5}}

	scores := classifier.Score(preds, classifier.DefaultKeywords(), classifier.DefaultTopK)
	assert.InDelta(t, 0.5, scores[travel.ModeTrain], 1e-9)
	assert.InDelta(t, 0.5, scores[travel.ModeBus], 1e-9)
}

func TestScore_OnlyTopKConsidered(t *testing.T) {
	var preds []classifier.Prediction
	for i := 0; i < 10; i++ {
		preds = append(preds, classifier.Prediction{Label: "unrelated thing", Score: 0.05})
	}
	preds = append(preds, classifier.Prediction{Label: "airliner", Score: 0.01})

	scores := classifier.Score(preds, classifier.DefaultKeywords(), 10)
	assert.Zero(t, scores[travel.ModeFlight])

	scores = classifier.Score(preds, classifier.DefaultKeywords(), 11)
	assert.InDelta(t, 0.01, scores[travel.ModeFlight], 1e-9)
}

func TestScore_IgnoresInvalidScores(t *testing.T) {
	preds := []classifier.Prediction{
		{Label: "bus", Score: math.NaN()},
		{Label: "bus", Score: -0.4},
		{Label: "bus", Score: math.Inf(1)},
		{Label: "bus", Score: 0.25},
	}

	scores := classifier.Score(preds, classifier.DefaultKeywords(), classifier.DefaultTopK)
	assert.InDelta(t, 0.25, scores[travel.ModeBus], 1e-9)
}

func TestArgmax_TieBreaksByEnumerationOrder(t *testing.T) {
	scores := map[travel.Mode]float64{
		travel.ModeBus:   0.3,
		travel.ModeTrain: 0.3,
		travel.ModeWalk:  0.3,
	}

	mode, confidence := classifier.Argmax(scores)
	assert.Equal(t, travel.ModeTrain, mode)
	assert.Equal(t, 0.3, confidence)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		scores   map[travel.Mode]float64
		wantMode travel.Mode
		wantConf float64
	}{
		{"at threshold is rejected", map[travel.Mode]float64{travel.ModeBike: 0.2}, travel.ModeUnknown, 0},
		{"just above threshold", map[travel.Mode]float64{travel.ModeBike: 0.21}, travel.ModeBike, 0.21},
		{"clamped to one", map[travel.Mode]float64{travel.ModeBike: 1.3}, travel.ModeBike, 1},
		{"nothing matched", map[travel.Mode]float64{}, travel.ModeUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, conf := classifier.Detect(tt.scores, classifier.DefaultAcceptThreshold)
			assert.Equal(t, tt.wantMode, mode)
			assert.InDelta(t, tt.wantConf, conf, 1e-9)
		})
	}
}

func TestTopPredictions_SortsWithoutMutating(t *testing.T) {
	preds := []classifier.Prediction{
		{Label: "a", Score: 0.1},
		{Label: "b", Score: 0.7},
		{Label: "c", Score: 0.4},
	}

	top := classifier.TopPredictions(preds, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Label)
	assert.Equal(t, "c", top[1].Label)
	assert.Equal(t, "a", preds[0].Label)
}

func TestNewKeywordTable(t *testing.T) {
	table, err := classifier.NewKeywordTable(map[string][]string{
		"Bike": {" Tandem ", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"tandem"}, table[travel.ModeBike])
	assert.True(t, table.Matches(travel.ModeBike, "TANDEM bicycle"))

	_, err = classifier.NewKeywordTable(map[string][]string{"rocket": {"booster"}})
	assert.ErrorIs(t, err, travel.ErrUnknownMode)
}

func TestDefaultKeywords_CoversEveryMode(t *testing.T) {
	table := classifier.DefaultKeywords()
	for _, mode := range travel.AllModes() {
		assert.NotEmpty(t, table[mode], mode)
	}
}
