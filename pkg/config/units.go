package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to accept extended units (d, w) in YAML.
type Duration time.Duration

// Common durations.
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

var durationUnits = map[string]time.Duration{
	"ns": time.Nanosecond,
	"us": time.Microsecond,
	"µs": time.Microsecond,
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  Day,
	"w":  Week,
}

var durationTerm = regexp.MustCompile(`([0-9]*\.?[0-9]+)([a-zµ]+)`)

// ParseDuration parses a duration string, supporting d and w on top of the
// units understood by time.ParseDuration. Composite values ("1d2h") are summed.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if !strings.ContainsAny(s, "dw") {
		return time.ParseDuration(s)
	}

	terms := durationTerm.FindAllStringSubmatch(s, -1)
	if len(terms) == 0 || strings.Join(flatten(terms), "") != s {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}

	var total time.Duration
	for _, term := range terms {
		val, err := strconv.ParseFloat(term[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in duration: %s", term[1])
		}
		unit, ok := durationUnits[term[2]]
		if !ok {
			return 0, fmt.Errorf("unknown unit: %s", term[2])
		}
		total += time.Duration(val * float64(unit))
	}
	return total, nil
}

func flatten(terms [][]string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		out = append(out, t[0])
	}
	return out
}

// Distance is a distance in meters that accepts unit suffixes in YAML.
type Distance float64

// Meters returns the distance as a plain float.
func (d Distance) Meters() float64 { return float64(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Distance) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		var f float64
		if errNum := value.Decode(&f); errNum == nil {
			*d = Distance(f)
			return nil
		}
		return err
	}

	dist, err := ParseDistance(s)
	if err != nil {
		return err
	}
	*d = Distance(dist)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Distance) MarshalYAML() (interface{}, error) {
	if d >= 1000 && int64(d)%100 == 0 {
		return strconv.FormatFloat(float64(d)/1000, 'f', -1, 64) + "km", nil
	}
	return strconv.FormatFloat(float64(d), 'f', -1, 64) + "m", nil
}

var distanceUnits = []struct {
	suffix string
	mult   float64
}{
	{"km", 1000},
	{"mi", 1609.344},
	{"ft", 0.3048},
	{"m", 1},
}

// ParseDistance parses "500m", "1.5km", "0.3mi", "120ft" or a bare number of meters.
func ParseDistance(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	mult := 1.0
	num := s
	for _, u := range distanceUnits {
		if strings.HasSuffix(s, u.suffix) {
			mult = u.mult
			num = strings.TrimSuffix(s, u.suffix)
			break
		}
	}

	val, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid distance number: %w", err)
	}
	if val < 0 {
		return 0, fmt.Errorf("negative distance: %s", s)
	}
	return val * mult, nil
}
