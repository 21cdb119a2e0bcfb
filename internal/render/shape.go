package render

import "math"

// Shape converts a smoothed field into device intensities: zero stays zero,
// anything nonzero is lifted to the min-on floor, run through the gamma
// response curve, clamped to the peak and quantized to the device resolution.
// dst must be sized to the field; it is overwritten.
func Shape(dst []int, field []float64, peak float64, p ShapingParams) {
	if peak < scaleEpsilon {
		for i := range dst {
			dst[i] = 0
		}
		return
	}
	for i := range dst {
		v := 0.0
		if i < len(field) {
			v = field[i]
		}
		if v <= 0 {
			dst[i] = 0
			continue
		}
		norm := v / peak
		if norm < p.MinOnFloor {
			norm = p.MinOnFloor
		}
		norm = math.Pow(norm, p.Gamma)
		v = clamp(norm*peak, 0, peak)

		q := int(math.Round(v * float64(p.Resolution)))
		if q < 0 {
			q = 0
		} else if q > p.Resolution {
			q = p.Resolution
		}
		dst[i] = q
	}
}
