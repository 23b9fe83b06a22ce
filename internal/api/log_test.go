package api

import (
	"testing"
)

func TestFormatLogLine(t *testing.T) {
	tests := []struct {
		name, input, expected string
	}{
		{
			name:     "params sorted and long values dropped",
			input:    `time=2026-01-18T06:50:46.074+01:00 level=INFO msg="Trip started" component=navigator mode=pedestrian steps=12 destination="Palacio de Bellas Artes, Mexico City"`,
			expected: "06:50:46 [navigator] Trip started (mode=pedestrian, steps=12)",
		},
		{
			name:     "no params",
			input:    `time=2026-01-18T06:50:46Z level=INFO msg=Arrived`,
			expected: "06:50:46 Arrived",
		},
		{
			name:     "unparseable passes through",
			input:    "plain text line",
			expected: "plain text line",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatLogLine(tt.input); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}
