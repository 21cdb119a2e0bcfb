package render

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Normalizer rescales the raw field so that either the peak intensity or the
// total activation energy stays constant as kernel width varies. The scale
// factor itself is low-pass filtered so that rescaling never produces a
// palpable jump when the raw maximum or sum changes abruptly between frames.
type Normalizer struct {
	// Mode selects none / peak-lock / energy-lock behaviour.
	Mode NormalizationMode

	// EnergyTarget is the energy-lock setpoint, interpreted as the
	// equivalent number of actuators at full peak intensity.
	EnergyTarget float64

	// Tau is the time constant (seconds) of the scale-factor filter.
	Tau float64

	scale float64
}

// NewNormalizer returns a Normalizer in pass-through mode with a unit scale.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		Mode:         NormNone,
		EnergyTarget: 2.0,
		Tau:          0.15,
		scale:        1,
	}
}

// Reset returns the smoothed scale to unity. Called on renderer start/stop.
func (n *Normalizer) Reset() {
	n.scale = 1
}

// Scale exposes the current smoothed scale factor for diagnostics.
func (n *Normalizer) Scale() float64 {
	return n.scale
}

// Apply rescales field in place toward the mode's target and clamps every
// value to [0, peak]. In pass-through mode the field is untouched.
func (n *Normalizer) Apply(field []float64, peak, dt float64) {
	if n.Mode == NormNone || len(field) == 0 {
		return
	}

	target := 1.0
	switch n.Mode {
	case NormPeakLock:
		if m := floats.Max(field); m > scaleEpsilon {
			target = peak / m
		}
	case NormEnergyLock:
		if peak > scaleEpsilon {
			if sum := floats.Sum(field) / peak; sum > scaleEpsilon {
				target = n.EnergyTarget / sum
			}
		}
	}

	if dt > 0 {
		alpha := 1 - math.Exp(-dt/clampMin(n.Tau, minTau))
		n.scale += (target - n.scale) * alpha
	}

	floats.Scale(n.scale, field)
	for i, v := range field {
		field[i] = clamp(v, 0, peak)
	}
}
