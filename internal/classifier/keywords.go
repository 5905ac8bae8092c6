package classifier

import (
	"fmt"
	"strings"

	"github.com/greengig/greengig/internal/travel"
)

// KeywordTable maps each travel mode to label fragments that indicate it.
// Matching is a case-insensitive substring test, so keywords are stored lower-cased.
type KeywordTable map[travel.Mode][]string

// DefaultKeywords returns the built-in vocabulary. Callers get a fresh copy.
func DefaultKeywords() KeywordTable {
	return KeywordTable{
		travel.ModeBike: {
			"bicycle", "bike", "cycling", "cyclist", "bike lane", "bike rack",
			"handlebar", "saddle", "pedal", "wheel", "mountain bike", "road bike",
			"velocipede", "two-wheeler", "cycle",
		},
		travel.ModeWalk: {
			"walking", "pedestrian", "foot", "sidewalk", "path", "trail",
			"hiking", "crossing", "walking path", "pedestrian crossing",
			"footpath", "promenade", "stroll",
		},
		travel.ModeTrain: {
			"train", "railway", "subway", "metro", "rail", "locomotive",
			"station", "platform", "railway station", "subway station",
			"commuter", "transit", "underground",
		},
		travel.ModeBus: {
			"bus", "coach", "transit", "public transport", "bus stop",
			"bus station", "transit bus", "city bus", "shuttle", "omnibus",
			"motorcoach",
		},
		travel.ModeCar: {
			"car", "automobile", "vehicle", "sedan", "suv", "truck", "driving",
			"road", "parking", "garage", "motorcar", "auto", "wagon", "coupe",
		},
		travel.ModeFlight: {
			"airplane", "aircraft", "plane", "jet", "airport", "flying",
			"aviation", "airline", "terminal", "runway", "aeroplane",
			"airliner", "jetliner",
		},
	}
}

// NewKeywordTable normalizes and validates a table loaded from configuration.
func NewKeywordTable(raw map[string][]string) (KeywordTable, error) {
	table := make(KeywordTable, len(raw))
	for name, words := range raw {
		mode, err := travel.ParseMode(name)
		if err != nil {
			return nil, fmt.Errorf("keyword table: %w", err)
		}
		normalized := make([]string, 0, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" {
				continue
			}
			normalized = append(normalized, w)
		}
		table[mode] = normalized
	}
	return table, nil
}

// Matches reports whether label contains any keyword for mode.
func (t KeywordTable) Matches(mode travel.Mode, label string) bool {
	label = strings.ToLower(label)
	for _, kw := range t[mode] {
		if strings.Contains(label, kw) {
			return true
		}
	}
	return false
}
