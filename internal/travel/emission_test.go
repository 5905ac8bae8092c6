package travel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengig/greengig/internal/travel"
)

func TestParseMode(t *testing.T) {
	mode, err := travel.ParseMode(" Train ")
	require.NoError(t, err)
	assert.Equal(t, travel.ModeTrain, mode)

	_, err = travel.ParseMode("scooter")
	assert.ErrorIs(t, err, travel.ErrUnknownMode)

	_, err = travel.ParseMode("unknown")
	assert.ErrorIs(t, err, travel.ErrUnknownMode)
}

func TestMode_IsGreen(t *testing.T) {
	green := map[travel.Mode]bool{
		travel.ModeCar:     false,
		travel.ModeTrain:   true,
		travel.ModeBus:     true,
		travel.ModeFlight:  false,
		travel.ModeBike:    true,
		travel.ModeWalk:    true,
		travel.ModeUnknown: false,
	}
	for mode, want := range green {
		assert.Equal(t, want, mode.IsGreen(), mode)
	}
}

func TestEmissionTable_FactorFor(t *testing.T) {
	table, err := travel.NewEmissionTable(nil)
	require.NoError(t, err)

	for _, mode := range travel.AllModes() {
		factor, err := table.FactorFor(mode)
		require.NoError(t, err)
		assert.Greater(t, factor, 0.0, mode)
	}

	_, err = table.FactorFor(travel.ModeUnknown)
	assert.ErrorIs(t, err, travel.ErrUnknownMode)
}

func TestEmissionTable_Overrides(t *testing.T) {
	table, err := travel.NewEmissionTable(map[travel.Mode]float64{travel.ModeCar: 0.3})
	require.NoError(t, err)

	factor, err := table.FactorFor(travel.ModeCar)
	require.NoError(t, err)
	assert.Equal(t, 0.3, factor)

	_, err = travel.NewEmissionTable(map[travel.Mode]float64{"hoverboard": 0.1})
	assert.ErrorIs(t, err, travel.ErrUnknownMode)

	_, err = travel.NewEmissionTable(map[travel.Mode]float64{travel.ModeBus: 0})
	assert.Error(t, err)
}

func TestEmissionTable_AllFactorsIsACopy(t *testing.T) {
	table, err := travel.NewEmissionTable(nil)
	require.NoError(t, err)

	all := table.AllFactors()
	assert.Len(t, all, len(travel.AllModes()))
	all[travel.ModeCar] = 99

	factor, err := table.FactorFor(travel.ModeCar)
	require.NoError(t, err)
	assert.NotEqual(t, 99.0, factor)
}

func TestEmissionTable_TransatlanticTrain(t *testing.T) {
	table, err := travel.NewEmissionTable(map[travel.Mode]float64{travel.ModeTrain: 0.04})
	require.NoError(t, err)

	km := travel.Distance(newYork, london)
	assert.InDelta(t, 5570, km, 5)

	kg, err := table.Emissions(travel.ModeTrain, km)
	require.NoError(t, err)
	assert.InDelta(t, 222.8, kg, 0.2)
}

func TestEmissionTable_Compare(t *testing.T) {
	table, err := travel.NewEmissionTable(nil)
	require.NoError(t, err)

	options := table.Compare(100)
	require.Len(t, options, 6)

	for i := 1; i < len(options); i++ {
		assert.LessOrEqual(t, options[i-1].EstimatedEmissionsKg, options[i].EstimatedEmissionsKg)
	}
	assert.Equal(t, travel.ModeWalk, options[0].Mode)
	assert.Equal(t, travel.ModeFlight, options[len(options)-1].Mode)

	for _, opt := range options {
		wantRecommended := opt.Mode == travel.ModeWalk || opt.Mode == travel.ModeBike || opt.Mode == travel.ModeTrain
		assert.Equal(t, wantRecommended, opt.Recommended, opt.Mode)
		assert.Equal(t, 100.0, opt.DistanceKm)
	}
}
