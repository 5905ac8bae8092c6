package proof_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengig/greengig/internal/proof"
	"github.com/greengig/greengig/internal/travel"
)

func TestStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to proof.Status
		allowed  bool
	}{
		{proof.StatusPending, proof.StatusAutoApproved, true},
		{proof.StatusPending, proof.StatusRejected, true},
		{proof.StatusPending, proof.StatusPending, false},
		{proof.StatusAutoApproved, proof.StatusRejected, false},
		{proof.StatusAutoApproved, proof.StatusPending, false},
		{proof.StatusRejected, proof.StatusAutoApproved, false},
		{proof.StatusRejected, proof.StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTravelProof_TransitionExactlyOnce(t *testing.T) {
	p := &proof.TravelProof{ID: "tpf_1", Status: proof.StatusPending}
	review := proof.Review{ReviewerID: "usr_admin", Notes: "ticket stub matches", ReviewedAt: time.Now()}

	require.NoError(t, p.Transition(proof.StatusAutoApproved, review))
	assert.Equal(t, proof.StatusAutoApproved, p.Status)
	require.NotNil(t, p.Review)
	assert.Equal(t, "usr_admin", p.Review.ReviewerID)

	err := p.Transition(proof.StatusRejected, review)
	assert.ErrorIs(t, err, proof.ErrInvalidTransition)
	assert.Equal(t, proof.StatusAutoApproved, p.Status)
}

func TestParseStatus(t *testing.T) {
	s, err := proof.ParseStatus("rejected")
	require.NoError(t, err)
	assert.Equal(t, proof.StatusRejected, s)

	_, err = proof.ParseStatus("approved")
	assert.Error(t, err)
}

func TestTravelProof_Validate(t *testing.T) {
	valid := proof.TravelProof{
		ID: "tpf_1", UserID: "usr_1", ConcertID: "cnc_1",
		TravelMode: travel.ModeTrain, Status: proof.StatusPending,
		DistanceKm: 10, EmissionsKgCO2: 0.4,
	}
	require.NoError(t, valid.Validate())

	negative := valid
	negative.EmissionsKgCO2 = -1
	assert.Error(t, negative.Validate())

	badMode := valid
	badMode.TravelMode = travel.ModeUnknown
	assert.ErrorIs(t, badMode.Validate(), travel.ErrUnknownMode)

	noUser := valid
	noUser.UserID = ""
	assert.Error(t, noUser.Validate())
}

func TestTravelProof_CloneIsDeep(t *testing.T) {
	p := &proof.TravelProof{
		ID:         "tpf_1",
		AIAnalysis: &proof.AIAnalysis{ModeScores: map[travel.Mode]float64{travel.ModeBus: 0.4}},
		Review:     &proof.Review{Notes: "original"},
	}
	c := p.Clone()
	c.AIAnalysis.ModeScores[travel.ModeBus] = 0.9
	c.Review.Notes = "changed"

	assert.Equal(t, 0.4, p.AIAnalysis.ModeScores[travel.ModeBus])
	assert.Equal(t, "original", p.Review.Notes)
}

func TestNewStats(t *testing.T) {
	assert.Equal(t, proof.Stats{}, proof.NewStats(0, 0, 0, 0))

	s := proof.NewStats(3, 1, 2, 0.61+0.72+0.333)
	assert.Equal(t, 3, s.TotalAnalyzed)
	assert.Equal(t, 1, s.AutoApproved)
	assert.InDelta(t, 0.55, s.AverageConfidence, 1e-9)
	assert.InDelta(t, 66.7, s.AccuracyRate, 1e-9)
	assert.InDelta(t, 33.3, s.AutoApprovalRate, 1e-9)
}
