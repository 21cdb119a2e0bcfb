package units

// DeviceResolution is the number of discrete intensity steps the vest
// controller accepts per actuator (0..100 inclusive).
const DeviceResolution = 100

// MinFrameDurationMs is the shortest frame duration the controller will
// honour; shorter requests are stretched to this floor.
const MinFrameDurationMs = 10

// ClampIntensity clamps a quantized intensity to the device range.
func ClampIntensity(v int) int {
	if v < 0 {
		return 0
	}
	if v > DeviceResolution {
		return DeviceResolution
	}
	return v
}

// ClampDurationMs applies the controller's minimum frame duration.
func ClampDurationMs(ms int) int {
	if ms < MinFrameDurationMs {
		return MinFrameDurationMs
	}
	return ms
}
