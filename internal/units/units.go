// Package units provides shared constants and conversions for angular speed
// and device intensity values.
package units

// Rotation axis identifiers used to select a topology family.
const (
	AxisYaw   = "yaw"
	AxisPitch = "pitch"
	AxisRoll  = "roll"
)

// ValidAxes contains all valid rotation axis values.
var ValidAxes = []string{AxisYaw, AxisPitch, AxisRoll}

// IsValidAxis checks if the given axis is in the list of valid axes.
func IsValidAxis(axis string) bool {
	for _, validAxis := range ValidAxes {
		if axis == validAxis {
			return true
		}
	}
	return false
}

// GetValidAxesString returns a comma-separated string of valid axes for error messages.
func GetValidAxesString() string {
	return "yaw, pitch, roll"
}

// DegPerSecToCyclesPerSec converts an angular speed in degrees per second to
// full cycles of the path per second.
func DegPerSecToCyclesPerSec(degPerSec float64) float64 {
	return degPerSec / 360.0
}

// DegPerSecToIndexSpeed converts an angular speed in degrees per second to
// index-space units per second along a path of pathLen groups. One full
// rotation (360 degrees) traverses the whole path.
func DegPerSecToIndexSpeed(degPerSec float64, pathLen int) float64 {
	return DegPerSecToCyclesPerSec(degPerSec) * float64(pathLen)
}
