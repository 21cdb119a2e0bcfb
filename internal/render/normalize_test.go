package render

import (
	"math"
	"testing"
)

func TestNormalizerNoneIsIdentity(t *testing.T) {
	n := NewNormalizer()
	field := []float64{0.1, 0.4, 0.2}
	want := []float64{0.1, 0.4, 0.2}
	n.Apply(field, 1.0, 0.02)
	for i := range field {
		if field[i] != want[i] {
			t.Errorf("field[%d] = %v, want %v", i, field[i], want[i])
		}
	}
}

// TestPeakLockConvergence holds a static raw field and checks the smoothed
// scale converges until the field maximum reaches the configured peak.
func TestPeakLockConvergence(t *testing.T) {
	n := NewNormalizer()
	n.Mode = NormPeakLock
	n.Tau = 0.1

	const peak = 0.8
	raw := []float64{0.1, 0.4, 0.2}

	// Run well past several time constants with a static input.
	var field []float64
	for i := 0; i < 200; i++ {
		field = append([]float64(nil), raw...)
		n.Apply(field, peak, 0.01)
	}

	max := 0.0
	for _, v := range field {
		if v > max {
			max = v
		}
	}
	if math.Abs(max-peak) > 0.01 {
		t.Errorf("max after convergence = %v, want ~%v", max, peak)
	}
}

// TestEnergyLockConvergence checks the total activation converges to the
// energy target expressed in actuators-at-full-peak.
func TestEnergyLockConvergence(t *testing.T) {
	n := NewNormalizer()
	n.Mode = NormEnergyLock
	n.EnergyTarget = 1.5
	n.Tau = 0.1

	const peak = 1.0
	raw := []float64{0.3, 0.5, 0.4, 0.2} // sum 1.4 in peak units

	var field []float64
	for i := 0; i < 200; i++ {
		field = append([]float64(nil), raw...)
		n.Apply(field, peak, 0.01)
	}

	sum := 0.0
	for _, v := range field {
		sum += v / peak
	}
	if math.Abs(sum-1.5) > 0.02 {
		t.Errorf("energy after convergence = %v, want ~1.5", sum)
	}
}

func TestNormalizerClampsToPeak(t *testing.T) {
	n := NewNormalizer()
	n.Mode = NormEnergyLock
	n.EnergyTarget = 50 // absurd target forces a large scale
	n.Tau = 0.001       // converge almost immediately

	field := []float64{0.5, 0.5}
	for i := 0; i < 100; i++ {
		n.Apply(field, 1.0, 0.01)
	}
	for i, v := range field {
		if v > 1.0 {
			t.Errorf("field[%d] = %v exceeds peak", i, v)
		}
	}
}

func TestNormalizerEmptyFieldIsSafe(t *testing.T) {
	n := NewNormalizer()
	n.Mode = NormPeakLock

	field := []float64{0, 0, 0}
	n.Apply(field, 1.0, 0.02) // max below epsilon must not divide by zero
	for i, v := range field {
		if v != 0 || math.IsNaN(v) {
			t.Errorf("field[%d] = %v, want 0", i, v)
		}
	}
}

func TestNormalizerReset(t *testing.T) {
	n := NewNormalizer()
	n.Mode = NormPeakLock
	field := []float64{0.1}
	for i := 0; i < 50; i++ {
		n.Apply(field, 1.0, 0.05)
	}
	n.Reset()
	if n.Scale() != 1 {
		t.Errorf("scale after reset = %v, want 1", n.Scale())
	}
}
