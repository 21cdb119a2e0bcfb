package render

import "math"

// Smoother is a per-actuator exponential low-pass filter decoupling the
// actuation envelope from variable host frame timing. The filter is
// time-constant correct: alpha = 1 - exp(-dt/tau), so doubling the frame
// rate does not change the settling time.
type Smoother struct {
	// Tau is the filter time constant in seconds.
	Tau float64

	values []float64
}

// snapEpsilon snaps a decaying channel to exactly zero once it falls below
// perceptual relevance. Without it the exponential tail never reaches zero
// and the shaper's min-on floor would hold a dead actuator at the floor
// level indefinitely.
const snapEpsilon = 5e-4

// NewSmoother returns a zeroed smoother for actuatorCount channels.
func NewSmoother(actuatorCount int, tau float64) *Smoother {
	return &Smoother{
		Tau:    tau,
		values: make([]float64, actuatorCount),
	}
}

// Reset zeroes the smoothed state.
func (s *Smoother) Reset() {
	for i := range s.values {
		s.values[i] = 0
	}
}

// Apply advances every channel toward the target field by dt seconds and
// returns the smoothed values. The returned slice is owned by the Smoother
// and stays valid until the next call.
func (s *Smoother) Apply(field []float64, dt float64) []float64 {
	if dt <= 0 {
		return s.values
	}
	alpha := 1 - math.Exp(-dt/clampMin(s.Tau, minTau))
	for i := range s.values {
		target := 0.0
		if i < len(field) {
			target = field[i]
		}
		s.values[i] += (target - s.values[i]) * alpha
		if target == 0 && s.values[i] < snapEpsilon {
			s.values[i] = 0
		}
	}
	return s.values
}

// Values returns the current smoothed state without advancing it.
func (s *Smoother) Values() []float64 {
	return s.values
}
