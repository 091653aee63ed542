package units

import (
	"math"
	"testing"
)

func TestConvertTemperature(t *testing.T) {
	tests := []struct {
		name     string
		celsius  float64
		unit     string
		expected float64
	}{
		{"25 C to F", 25.0, Fahrenheit, 77.0},
		{"25 C to K", 25.0, Kelvin, 298.15},
		{"25 C to C", 25.0, Celsius, 25.0},
		{"freezing to F", 0.0, Fahrenheit, 32.0},
		{"lower clamp to F", -40.0, Fahrenheit, -40.0},
		{"upper clamp to K", 150.0, Kelvin, 423.15},
		{"unknown unit defaults to C", 25.0, "R", 25.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertTemperature(tt.celsius, tt.unit)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ConvertTemperature(%f, %s) = %f, want %f", tt.celsius, tt.unit, result, tt.expected)
			}
		})
	}
}

func TestConvertDeltaAndVariance(t *testing.T) {
	if got := ConvertDelta(1.0, Fahrenheit); math.Abs(got-1.8) > 1e-12 {
		t.Errorf("ConvertDelta(1, F) = %f, want 1.8", got)
	}
	if got := ConvertDelta(1.0, Kelvin); got != 1.0 {
		t.Errorf("ConvertDelta(1, K) = %f, want 1", got)
	}
	if got := ConvertVariance(1.0, Fahrenheit); math.Abs(got-3.24) > 1e-12 {
		t.Errorf("ConvertVariance(1, F) = %f, want 3.24", got)
	}
	if got := ConvertVariance(0.01, Celsius); got != 0.01 {
		t.Errorf("ConvertVariance(0.01, C) = %f, want 0.01", got)
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		unit     string
		expected bool
	}{
		{Celsius, true},
		{Fahrenheit, true},
		{Kelvin, true},
		{"c", false},
		{"", false},
		{"celsius", false},
	}

	for _, tt := range tests {
		if got := IsValid(tt.unit); got != tt.expected {
			t.Errorf("IsValid(%q) = %v, want %v", tt.unit, got, tt.expected)
		}
	}
	if GetValidUnitsString() != "C, F, K" {
		t.Errorf("GetValidUnitsString() = %q", GetValidUnitsString())
	}
}

func TestSuffix(t *testing.T) {
	if Suffix(Celsius) != "°C" || Suffix(Fahrenheit) != "°F" || Suffix(Kelvin) != "K" {
		t.Errorf("unexpected suffixes: %q %q %q", Suffix(Celsius), Suffix(Fahrenheit), Suffix(Kelvin))
	}
}
