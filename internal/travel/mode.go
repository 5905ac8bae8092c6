// Package travel provides the shared travel vocabulary: travel modes,
// geographic points, great-circle distance and per-mode emission factors.
package travel

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned when a travel mode is not part of the vocabulary.
var ErrUnknownMode = errors.New("unknown travel mode")

// Mode represents a travel mode.
type Mode string

const (
	ModeCar    Mode = "car"
	ModeTrain  Mode = "train"
	ModeBus    Mode = "bus"
	ModeFlight Mode = "flight"
	ModeBike   Mode = "bike"
	ModeWalk   Mode = "walk"

	// ModeUnknown is produced by classification when no mode could be detected.
	// It is never a valid claimed mode.
	ModeUnknown Mode = "unknown"
)

// allModes is the fixed enumeration order. Tie-breaks in classification rely on it.
var allModes = []Mode{ModeCar, ModeTrain, ModeBus, ModeFlight, ModeBike, ModeWalk}

// AllModes returns every travel mode in enumeration order.
func AllModes() []Mode {
	modes := make([]Mode, len(allModes))
	copy(modes, allModes)
	return modes
}

// ParseMode parses a travel mode, case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

// Valid reports whether m is one of the enumerated travel modes.
func (m Mode) Valid() bool {
	for _, known := range allModes {
		if m == known {
			return true
		}
	}
	return false
}

// IsGreen reports whether m is a low-impact mode (bike, walk, train, bus).
func (m Mode) IsGreen() bool {
	switch m {
	case ModeBike, ModeWalk, ModeTrain, ModeBus:
		return true
	default:
		return false
	}
}

// IsZeroEmission reports whether m is human powered.
func (m Mode) IsZeroEmission() bool {
	return m == ModeBike || m == ModeWalk
}

func (m Mode) String() string {
	return string(m)
}
