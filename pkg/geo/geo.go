package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadius is the mean earth radius in meters.
const EarthRadius = 6371000

// Point represents a geographic coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Distance calculates the Haversine distance between two points in meters.
func Distance(p1, p2 Point) float64 {
	dLat := toRad(p2.Lat - p1.Lat)
	dLon := toRad(p2.Lon - p1.Lon)
	lat1 := toRad(p1.Lat)
	lat2 := toRad(p2.Lat)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// DestinationPoint calculates the point reached from start after distMeters along bearing (degrees).
func DestinationPoint(start Point, distMeters, bearing float64) Point {
	lat1 := toRad(start.Lat)
	lon1 := toRad(start.Lon)
	brng := toRad(bearing)
	ang := distMeters / EarthRadius

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(ang) +
		math.Cos(lat1)*math.Sin(ang)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(math.Sin(brng)*math.Sin(ang)*math.Cos(lat1),
		math.Cos(ang)-math.Sin(lat1)*math.Sin(lat2))

	return Point{Lat: toDeg(lat2), Lon: toDeg(lon2)}
}

// Bearing calculates the initial bearing from p1 to p2 in degrees [0, 360).
func Bearing(p1, p2 Point) float64 {
	lat1 := toRad(p1.Lat)
	lat2 := toRad(p2.Lat)
	dLon := toRad(p2.Lon - p1.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) -
		math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return math.Mod(toDeg(math.Atan2(y, x))+360.0, 360.0)
}

// Interpolate returns the point at fraction f (0..1) between a and b.
// Linear in degrees, which is fine at street scale.
func Interpolate(a, b Point, f float64) Point {
	return Point{
		Lat: a.Lat + (b.Lat-a.Lat)*f,
		Lon: a.Lon + (b.Lon-a.Lon)*f,
	}
}

// NormalizeAngle normalizes an angle difference to the range [-180, 180].
func NormalizeAngle(angleDeg float64) float64 {
	for angleDeg > 180 {
		angleDeg -= 360
	}
	for angleDeg < -180 {
		angleDeg += 360
	}
	return angleDeg
}

// NormalizeHeading maps any angle to [0, 360).
func NormalizeHeading(angleDeg float64) float64 {
	h := math.Mod(angleDeg, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// Orb converts the point to an orb.Point (lon, lat order).
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromOrb converts an orb.Point to a Point.
func FromOrb(p orb.Point) Point {
	return Point{Lat: p.Lat(), Lon: p.Lon()}
}

// IsZero reports whether the point is the null island default.
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lon == 0
}

func toRad(d float64) float64 { return d * (math.Pi / 180.0) }
func toDeg(r float64) float64 { return r * (180.0 / math.Pi) }
