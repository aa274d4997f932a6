// Package units provides shared constants and validation for angle units
package units

import (
	"fmt"
	"math"
)

// Unit constants
const (
	RAD  = "rad"
	DEG  = "deg"
	MRAD = "mrad"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{RAD, DEG, MRAD}

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
	return "rad, deg, mrad"
}

// ConvertAngle converts an angle from radians to the target units
// The engine and database store angles in radians
func ConvertAngle(angleRad float64, targetUnits string) float64 {
	switch targetUnits {
	case DEG:
		return angleRad * 180 / math.Pi
	case MRAD:
		return angleRad * 1000
	case RAD:
		return angleRad // no conversion needed
	default:
		return angleRad // default to radians if unknown unit
	}
}

// FormatAngle renders an angle for chart labels and log lines, e.g. "4.7°"
// or "0.082 rad"
func FormatAngle(angleRad float64, targetUnits string) string {
	v := ConvertAngle(angleRad, targetUnits)
	switch targetUnits {
	case DEG:
		return fmt.Sprintf("%.1f°", v)
	case MRAD:
		return fmt.Sprintf("%.0f mrad", v)
	default:
		return fmt.Sprintf("%.3f rad", v)
	}
}
