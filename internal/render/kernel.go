package render

import (
	"math"

	"github.com/haptic-bench/apparent.motion/internal/topology"
)

// RenderField writes the raw per-actuator intensity field for a stimulus at
// the given path position into dst, which must be sized to the device
// actuator count and is zeroed first.
//
// Contributions from neighbouring path steps are combined into dst by max
// aggregation, never by sum: when several offsets (or two simultaneously
// rendered paths sharing dst) touch the same actuator, the strongest
// contribution wins and additive saturation cannot occur. Out-of-range
// actuator indices in the topology are dropped silently; one stray index
// must not stop the rest of the frame.
func RenderField(dst []float64, position float64, topo *topology.Topology, p KernelParams) {
	for i := range dst {
		dst[i] = 0
	}
	AccumulateField(dst, position, topo, p)
}

// AccumulateField is RenderField without the initial zeroing: contributions
// max-merge into whatever dst already holds. Use it to render two
// topologies simultaneously into one frame.
func AccumulateField(dst []float64, position float64, topo *topology.Topology, p KernelParams) {
	n := topo.Len()
	if n == 0 {
		return
	}

	var pos float64
	if topo.Wraps() {
		pos = topology.Wrap(position, n)
	} else {
		pos = clamp(position, 0, float64(n))
	}
	center := int(math.Floor(pos))
	sigma := localSigma(pos, topo, p)
	twoSigmaSq := 2 * sigma * sigma

	for k := -p.NeighborRadius; k <= p.NeighborRadius; k++ {
		var idx int
		var d float64
		if topo.Wraps() {
			idx = ((center+k)%n + n) % n
			d = topology.CircularDistance(pos, float64(idx), n)
		} else {
			idx = center + k
			if idx < 0 || idx >= n {
				continue
			}
			d = pos - float64(idx)
		}

		g := math.Exp(-d * d / twoSigmaSq)
		if g < p.Cutoff {
			continue
		}
		v := softKnee(g, p.PerceptualThreshold) * p.Peak
		if v <= 0 {
			continue
		}
		for _, a := range topo.Groups[idx] {
			if a < 0 || a >= len(dst) {
				continue
			}
			if v > dst[a] {
				dst[a] = v
			}
		}
	}
}

// localSigma picks the kernel width for the current position. Closed paths
// switch hard between the main and seam widths based on seam proximity.
// Combined open paths instead blend the two widths multiplicatively in log
// domain across the sub-path junction, so the perceived spot size changes
// without a discontinuity.
func localSigma(pos float64, topo *topology.Topology, p KernelParams) float64 {
	switch topo.Kind {
	case topology.OpenCombinedBlend:
		t := smoothstep((pos - topo.BlendBoundary + topo.BlendWindow/2) / topo.BlendWindow)
		return p.SigmaMain * math.Pow(p.SigmaSeam/p.SigmaMain, t)
	case topology.Closed:
		if topology.NearSeam(pos, topo.Seams, topo.Len(), p.SeamWidth) {
			return p.SigmaSeam
		}
		return p.SigmaMain
	default:
		// Open paths do not wrap, so seam proximity is plain distance:
		// a seam at offset 0 must not reach back across to the far end.
		for _, s := range topo.Seams {
			if math.Abs(pos-s) <= p.SeamWidth {
				return p.SigmaSeam
			}
		}
		return p.SigmaMain
	}
}

// softKnee maps a Gaussian weight through a smooth threshold: weights at or
// below the threshold become zero, the excess rises along a smoothstep so
// the onset is continuous rather than a hard cut.
func softKnee(g, threshold float64) float64 {
	if g <= threshold {
		return 0
	}
	return smoothstep((g - threshold) / (1 - threshold))
}

// smoothstep is the cubic Hermite ramp t^2(3-2t), clamped to [0, 1].
func smoothstep(t float64) float64 {
	t = clamp01(t)
	return t * t * (3 - 2*t)
}
