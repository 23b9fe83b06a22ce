package peer

import (
	"fmt"

	"tripsync/pkg/geo"
)

// FormatDistance renders meters the way the peer displays them.
func FormatDistance(m float64) string {
	if m < 1000 {
		return fmt.Sprintf("%.0f m", m)
	}
	return fmt.Sprintf("%.1f km", m/1000)
}

// ArrowRotation returns how far to rotate a destination arrow on a display
// facing heading, in [0, 360).
func ArrowRotation(user, dest geo.Point, heading float64) float64 {
	return geo.NormalizeHeading(geo.Bearing(user, dest) - heading)
}
