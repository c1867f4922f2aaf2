package util

import (
	"math"
	"testing"
)

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		tick float64
		want float64
	}{
		{"round down to cent", 1.2344, 0.01, 1.23},
		{"round up to cent", 1.2356, 0.01, 1.24},
		{"nickel tick", 102.37, 0.05, 102.35},
		{"zero tick passthrough", 1.2345, 0, 1.2345},
		{"negative tick passthrough", 1.2345, -0.01, 1.2345},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoundToTick(tt.x, tt.tick); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RoundToTick(%v, %v) = %v, want %v", tt.x, tt.tick, got, tt.want)
			}
		})
	}
}

func TestRoundCents(t *testing.T) {
	if got := RoundCents(128.6349); math.Abs(got-128.63) > 1e-9 {
		t.Errorf("RoundCents = %v, want 128.63", got)
	}
}

func TestRoundPlaces(t *testing.T) {
	if got := RoundPlaces(0.63683, 4); math.Abs(got-0.6368) > 1e-12 {
		t.Errorf("RoundPlaces(0.63683, 4) = %v, want 0.6368", got)
	}
	if got := RoundPlaces(25.04, 1); math.Abs(got-25.0) > 1e-12 {
		t.Errorf("RoundPlaces(25.04, 1) = %v, want 25.0", got)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(105.0, 0.1, 99.9); got != 99.9 {
		t.Errorf("Clamp above = %v", got)
	}
	if got := Clamp(0.0, 0.1, 99.9); got != 0.1 {
		t.Errorf("Clamp below = %v", got)
	}
	if got := Clamp(42.0, 0.1, 99.9); got != 42.0 {
		t.Errorf("Clamp inside = %v", got)
	}
}
