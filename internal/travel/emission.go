package travel

import (
	"fmt"
	"math"
	"sort"
)

// DefaultFactors returns the default emission factors in kg CO2 per km.
func DefaultFactors() map[Mode]float64 {
	return map[Mode]float64{
		ModeCar:    0.192,
		ModeTrain:  0.04,
		ModeBus:    0.105,
		ModeFlight: 0.255,
		ModeBike:   0.005,
		ModeWalk:   0.001,
	}
}

// EmissionTable maps travel modes to kg CO2 per km.
// It is immutable once constructed and safe for concurrent use.
type EmissionTable struct {
	factors map[Mode]float64
}

// NewEmissionTable builds a table from the defaults with the given overrides applied.
// Every override must name a known mode and carry a positive factor.
func NewEmissionTable(overrides map[Mode]float64) (*EmissionTable, error) {
	factors := DefaultFactors()
	for mode, factor := range overrides {
		if !mode.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
		}
		if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
			return nil, fmt.Errorf("emission factor for %s must be positive, got %v", mode, factor)
		}
		factors[mode] = factor
	}
	return &EmissionTable{factors: factors}, nil
}

// FactorFor returns the kg CO2 per km for a mode.
func (t *EmissionTable) FactorFor(mode Mode) (float64, error) {
	factor, ok := t.factors[mode]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return factor, nil
}

// AllFactors returns a copy of the full table.
func (t *EmissionTable) AllFactors() map[Mode]float64 {
	out := make(map[Mode]float64, len(t.factors))
	for mode, factor := range t.factors {
		out[mode] = factor
	}
	return out
}

// Emissions returns the kg CO2 for travelling km by mode, rounded to 2 decimals.
func (t *EmissionTable) Emissions(mode Mode, km float64) (float64, error) {
	factor, err := t.FactorFor(mode)
	if err != nil {
		return 0, err
	}
	return Round2(km * factor), nil
}

// Option is the estimated footprint of one mode for a given trip.
type Option struct {
	Mode                 Mode
	DistanceKm           float64
	EstimatedEmissionsKg float64
	Recommended          bool
}

// Compare estimates the emissions of every mode for a trip of km kilometers,
// lowest emissions first.
func (t *EmissionTable) Compare(km float64) []Option {
	options := make([]Option, 0, len(allModes))
	for _, mode := range allModes {
		factor, ok := t.factors[mode]
		if !ok {
			continue
		}
		options = append(options, Option{
			Mode:                 mode,
			DistanceKm:           km,
			EstimatedEmissionsKg: Round2(km * factor),
			Recommended:          mode == ModeWalk || mode == ModeBike || mode == ModeTrain,
		})
	}
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].EstimatedEmissionsKg < options[j].EstimatedEmissionsKg
	})
	return options
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
