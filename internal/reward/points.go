// Package reward turns verified green trips into points and reconciles a
// user's point balance against the badge catalog.
package reward

import (
	"math"

	"github.com/greengig/greengig/internal/travel"
)

// ZeroEmissionBonus is added for walking and cycling; it is also the floor.
const ZeroEmissionBonus = 5

// ComputePoints returns the points for one trip. Unverified trips and
// non-green modes earn nothing. Verified green-mode trips earn
// round(emissionsKg * 2); walk and bike earn at least ZeroEmissionBonus on
// top. claimedGreen is carried for callers' records and does not change the
// result; verified already implies a green verdict in the pipeline.
func ComputePoints(claimedGreen bool, mode travel.Mode, emissionsKg float64, verified bool) int {
	if !verified || !mode.IsGreen() {
		return 0
	}
	if math.IsNaN(emissionsKg) || emissionsKg < 0 {
		emissionsKg = 0
	}

	points := int(math.Round(emissionsKg * 2))
	if mode.IsZeroEmission() {
		points = max(ZeroEmissionBonus, points+ZeroEmissionBonus)
	}
	return points
}
