package render

import (
	"fmt"

	"github.com/haptic-bench/apparent.motion/internal/units"
)

// minSigma keeps sigma-like values away from zero so kernel evaluation never
// divides by zero. Setters clamp rather than reject.
const minSigma = 1e-4

// minTau is the floor for smoothing time constants.
const minTau = 1e-4

// scaleEpsilon guards peak/energy normalization against near-empty fields.
const scaleEpsilon = 1e-6

// KernelParams tunes the seam-aware Gaussian field generator.
type KernelParams struct {
	// SigmaMain is the kernel width (in index-space units) over the path
	// interior.
	SigmaMain float64

	// SigmaSeam is the kernel width used near seam midpoints, or as the
	// second-stage width of a combined-blend path.
	SigmaSeam float64

	// SeamWidth is the index-space distance from a seam midpoint within
	// which SigmaSeam applies.
	SeamWidth float64

	// NeighborRadius is how many path steps either side of the stimulus
	// centre receive a contribution.
	NeighborRadius int

	// Cutoff discards Gaussian weights below this value before shaping.
	Cutoff float64

	// PerceptualThreshold is the soft-knee onset: weights at or below it
	// map to zero, the excess rises through a smoothstep.
	PerceptualThreshold float64

	// Peak is the maximum per-actuator intensity in [0, 1].
	Peak float64
}

// DefaultKernelParams returns the tuning used as the baseline condition in
// the continuity experiments.
func DefaultKernelParams() KernelParams {
	return KernelParams{
		SigmaMain:           0.7,
		SigmaSeam:           1.4,
		SeamWidth:           1.0,
		NeighborRadius:      3,
		Cutoff:              0.02,
		PerceptualThreshold: 0.05,
		Peak:                1.0,
	}
}

func (p *KernelParams) sanitize() {
	p.SigmaMain = clampMin(p.SigmaMain, minSigma)
	p.SigmaSeam = clampMin(p.SigmaSeam, minSigma)
	p.SeamWidth = clampMin(p.SeamWidth, 0)
	if p.NeighborRadius < 0 {
		p.NeighborRadius = 0
	}
	p.Cutoff = clamp01(p.Cutoff)
	p.PerceptualThreshold = clamp(p.PerceptualThreshold, 0, 0.999)
	p.Peak = clamp01(p.Peak)
}

// ShapingParams tunes the final output stage before quantization.
type ShapingParams struct {
	// MinOnFloor is the lowest nonzero normalized intensity; anything
	// between zero and the floor is lifted to it so a just-perceptible
	// actuator never rounds to fully off.
	MinOnFloor float64

	// Gamma is the response-curve exponent applied to normalized
	// intensity (gamma > 1 compresses the low end).
	Gamma float64

	// Resolution is the number of discrete device intensity steps.
	Resolution int
}

// DefaultShapingParams returns the vest controller's output shaping baseline.
func DefaultShapingParams() ShapingParams {
	return ShapingParams{
		MinOnFloor: 0.08,
		Gamma:      1.0,
		Resolution: units.DeviceResolution,
	}
}

func (p *ShapingParams) sanitize() {
	p.MinOnFloor = clamp01(p.MinOnFloor)
	p.Gamma = clampMin(p.Gamma, 1e-3)
	if p.Resolution < 1 {
		p.Resolution = 1
	}
}

// NormalizationMode selects how the raw field is rescaled before smoothing.
type NormalizationMode int

const (
	// NormNone applies no rescaling.
	NormNone NormalizationMode = iota
	// NormPeakLock rescales so the field maximum always reaches the
	// configured peak, holding perceived strength constant as the kernel
	// width varies.
	NormPeakLock
	// NormEnergyLock rescales so total activation (in units of
	// actuators-at-full-peak) stays constant, trading peak strength for
	// spread.
	NormEnergyLock
)

func (m NormalizationMode) String() string {
	switch m {
	case NormNone:
		return "none"
	case NormPeakLock:
		return "peak"
	case NormEnergyLock:
		return "energy"
	default:
		return fmt.Sprintf("NormalizationMode(%d)", int(m))
	}
}

// ParseNormalizationMode maps the API/config string form to a mode.
func ParseNormalizationMode(s string) (NormalizationMode, error) {
	switch s {
	case "", "none":
		return NormNone, nil
	case "peak":
		return NormPeakLock, nil
	case "energy":
		return NormEnergyLock, nil
	default:
		return NormNone, fmt.Errorf("unknown normalization mode %q (valid: none, peak, energy)", s)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clampMin(v, lo float64) float64 {
	if v < lo {
		return lo
	}
	return v
}
