package geo

import (
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		p1   Point
		p2   Point
		want float64
	}{
		{
			name: "Same Point",
			p1:   Point{Lat: 19.4326, Lon: -99.1332},
			p2:   Point{Lat: 19.4326, Lon: -99.1332},
			want: 0,
		},
		{
			name: "Zocalo to Alameda",
			p1:   Point{Lat: 19.4326, Lon: -99.1332},
			p2:   Point{Lat: 19.4420, Lon: -99.1270},
			want: 1230, // Approx 1.23km
		},
		{
			name: "Equator 1 degree",
			p1:   Point{Lat: 0, Lon: 0},
			p2:   Point{Lat: 0, Lon: 1},
			want: 111195,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.p1, tt.p2)
			margin := tt.want * 0.01
			if math.Abs(got-tt.want) > margin {
				t.Errorf("Distance() = %v, want %v (+/- %v)", got, tt.want, margin)
			}
		})
	}
}

func TestDestinationPoint_RoundTrip(t *testing.T) {
	start := Point{Lat: 19.4326, Lon: -99.1332}
	for _, brng := range []float64{0, 45, 90, 180, 270} {
		p := DestinationPoint(start, 200, brng)
		if d := Distance(start, p); math.Abs(d-200) > 0.5 {
			t.Errorf("bearing %v: distance = %v, want 200", brng, d)
		}
		if brng == 0 {
			continue
		}
		if b := Bearing(start, p); math.Abs(NormalizeAngle(b-brng)) > 0.5 {
			t.Errorf("bearing %v: got bearing %v", brng, b)
		}
	}
}

func TestNormalizeHeading(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{-90, 270},
		{725, 5},
	}
	for _, tt := range tests {
		if got := NormalizeHeading(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeHeading(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPointAlong(t *testing.T) {
	a := Point{Lat: 0, Lon: 0}
	b := DestinationPoint(a, 1000, 90)
	ls := orb.LineString{a.Orb(), b.Orb()}

	if l := PathLength(ls); math.Abs(l-1000) > 1 {
		t.Fatalf("PathLength = %v, want 1000", l)
	}

	p, brng, ok := PointAlong(ls, 250)
	if !ok {
		t.Fatal("expected point at 250m")
	}
	if d := Distance(a, p); math.Abs(d-250) > 1 {
		t.Errorf("distance from start = %v, want 250", d)
	}
	if math.Abs(brng-90) > 0.5 {
		t.Errorf("bearing = %v, want 90", brng)
	}

	if _, _, ok := PointAlong(ls, 1500); ok {
		t.Error("expected no point beyond path end")
	}
}

func TestTrack(t *testing.T) {
	tr := NewTrack(3)
	now := time.Unix(0, 0)
	origin := Point{Lat: 10, Lon: 20}

	if got := tr.Push(origin, now, 99); got != 99 {
		t.Errorf("first push = %v, want fallback", got)
	}
	north := DestinationPoint(origin, 100, 0)
	if got := tr.Push(north, now.Add(10*time.Second), 99); math.Abs(NormalizeAngle(got)) > 1 {
		t.Errorf("track = %v, want ~0", got)
	}
	// Stationary pushes keep the fallback once the window drops the origin.
	tr.Push(north, now.Add(20*time.Second), 99)
	if got := tr.Push(north, now.Add(30*time.Second), 42); got != 42 {
		t.Errorf("stationary track = %v, want fallback", got)
	}
}
