package geo

import (
	"github.com/paulmach/orb"
)

// PathLength returns the haversine length of a line string in meters.
func PathLength(ls orb.LineString) float64 {
	var total float64
	for i := 1; i < len(ls); i++ {
		total += Distance(FromOrb(ls[i-1]), FromOrb(ls[i]))
	}
	return total
}

// PointAlong returns the point at distMeters along the path together with the
// bearing of the segment it falls on. ok is false when distMeters exceeds the
// path length or the path has fewer than two points.
func PointAlong(ls orb.LineString, distMeters float64) (p Point, bearing float64, ok bool) {
	if len(ls) < 2 || distMeters < 0 {
		return Point{}, 0, false
	}

	walked := 0.0
	for i := 1; i < len(ls); i++ {
		a, b := FromOrb(ls[i-1]), FromOrb(ls[i])
		seg := Distance(a, b)
		if seg == 0 {
			continue
		}
		if walked+seg >= distMeters {
			f := (distMeters - walked) / seg
			return Interpolate(a, b, f), Bearing(a, b), true
		}
		walked += seg
	}
	return Point{}, 0, false
}

// Bounds returns the bounding box of the given points padded by padMeters.
func Bounds(points []Point, padMeters float64) orb.Bound {
	if len(points) == 0 {
		return orb.Bound{}
	}
	b := orb.Bound{Min: points[0].Orb(), Max: points[0].Orb()}
	for _, p := range points[1:] {
		b = b.Extend(p.Orb())
	}
	// ~111km per degree latitude
	return b.Pad(padMeters / 111000.0)
}
