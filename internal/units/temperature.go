// Package units provides shared constants, validation and conversion for the
// temperature units and timezones used at the export boundary.
//
// The simulator works in degrees Celsius internally; conversion happens only
// when values are formatted for a table or a serial line.
package units

import "strings"

// Unit constants
const (
	Celsius    = "C"
	Fahrenheit = "F"
	Kelvin     = "K"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Celsius, Fahrenheit, Kelvin}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertTemperature converts an absolute temperature from degrees Celsius to
// the target unit. Unknown units fall back to Celsius.
func ConvertTemperature(celsius float64, targetUnit string) float64 {
	switch targetUnit {
	case Fahrenheit:
		return celsius*9/5 + 32
	case Kelvin:
		return celsius + 273.15
	default:
		return celsius
	}
}

// ConvertDelta converts a temperature difference (an error or an offset)
// from Celsius degrees to the target unit. Differences scale but do not shift.
func ConvertDelta(celsius float64, targetUnit string) float64 {
	if targetUnit == Fahrenheit {
		return celsius * 9 / 5
	}
	return celsius
}

// ConvertVariance converts a variance in °C² to the target unit squared.
func ConvertVariance(celsius2 float64, targetUnit string) float64 {
	if targetUnit == Fahrenheit {
		return celsius2 * 81 / 25
	}
	return celsius2
}

// Suffix returns the display suffix for a unit, e.g. "°C" or "K".
func Suffix(unit string) string {
	switch unit {
	case Fahrenheit:
		return "°F"
	case Kelvin:
		return "K"
	default:
		return "°C"
	}
}
