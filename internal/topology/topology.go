// Package topology describes the ordered actuator paths a virtual stimulus
// travels along on the wearable device. A topology is static configuration:
// an ordered sequence of actuator groups, the seam locations where the
// perceived spatial stretch changes, and whether the path closes into a loop
// or terminates. Nothing in this package touches hardware.
package topology

import (
	"fmt"
	"math"
)

// PathKind selects the traversal behaviour of a path.
type PathKind int

const (
	// Closed paths wrap around continuously (rotation rings).
	Closed PathKind = iota
	// OpenWithRest paths sweep once, then pause before restarting.
	OpenWithRest
	// OpenCombinedBlend paths concatenate two sub-paths traversed
	// back-to-back with a continuous kernel-width blend at the junction.
	OpenCombinedBlend
)

func (k PathKind) String() string {
	switch k {
	case Closed:
		return "closed"
	case OpenWithRest:
		return "open-with-rest"
	case OpenCombinedBlend:
		return "open-combined-blend"
	default:
		return fmt.Sprintf("PathKind(%d)", int(k))
	}
}

// ActuatorGroup is one step of a path: one or two physical actuator indices
// fired together at the same intensity.
type ActuatorGroup []int

// Topology is an ordered path of actuator groups over the device.
type Topology struct {
	// ID identifies the path in the registry and over the parameter API.
	ID string

	// Groups is the ordered sequence of path steps.
	Groups []ActuatorGroup

	// Seams holds index-space midpoints of topological discontinuities
	// (e.g. the front and back boundaries of a torso ring).
	Seams []float64

	// Kind selects wrap-around vs sweep-with-rest vs combined traversal.
	Kind PathKind

	// Axis is the rotation axis a ring topology renders (yaw, pitch or
	// roll); empty for sweep paths tied to no axis.
	Axis string

	// BlendBoundary is the index-space position where the second sub-path
	// of an OpenCombinedBlend topology begins. Ignored for other kinds.
	BlendBoundary float64

	// BlendWindow is the index-space width of the kernel sigma blend
	// around BlendBoundary. Ignored for other kinds.
	BlendWindow float64
}

// Len returns the number of groups in the path.
func (t *Topology) Len() int {
	return len(t.Groups)
}

// Wraps reports whether the path closes into a loop.
func (t *Topology) Wraps() bool {
	return t.Kind == Closed
}

// Validate checks the topology against the device actuator count. Groups must
// hold one or two in-range indices and no actuator may appear twice within
// one path.
func (t *Topology) Validate(actuatorCount int) error {
	if len(t.Groups) == 0 {
		return fmt.Errorf("topology %q has no actuator groups", t.ID)
	}
	seen := make(map[int]int, len(t.Groups)*2)
	for gi, g := range t.Groups {
		if len(g) < 1 || len(g) > 2 {
			return fmt.Errorf("topology %q group %d has %d indices, want 1 or 2", t.ID, gi, len(g))
		}
		for _, a := range g {
			if a < 0 || a >= actuatorCount {
				return fmt.Errorf("topology %q group %d: actuator %d outside device range [0,%d)", t.ID, gi, a, actuatorCount)
			}
			if prev, ok := seen[a]; ok {
				return fmt.Errorf("topology %q: actuator %d appears in groups %d and %d", t.ID, a, prev, gi)
			}
			seen[a] = gi
		}
	}
	for _, s := range t.Seams {
		if s < 0 || s >= float64(len(t.Groups)) {
			return fmt.Errorf("topology %q seam %.2f outside path [0,%d)", t.ID, s, len(t.Groups))
		}
	}
	if t.Kind == OpenCombinedBlend {
		if t.BlendBoundary <= 0 || t.BlendBoundary >= float64(len(t.Groups)) {
			return fmt.Errorf("topology %q blend boundary %.2f outside path interior", t.ID, t.BlendBoundary)
		}
		if t.BlendWindow <= 0 {
			return fmt.Errorf("topology %q blend window must be positive, got %.2f", t.ID, t.BlendWindow)
		}
	}
	return nil
}

// Wrap maps a position onto [0, n) using floored modulo, so negative inputs
// wrap to the top of the range rather than mirroring.
func Wrap(pos float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	fn := float64(n)
	w := math.Mod(pos, fn)
	if w < 0 {
		w += fn
	}
	return w
}

// CircularDistance returns the signed shortest-path distance from b to a on a
// ring of length n, wrapped into (-n/2, n/2].
func CircularDistance(a, b float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	fn := float64(n)
	d := math.Mod(a-b, fn)
	if d <= -fn/2 {
		d += fn
	} else if d > fn/2 {
		d -= fn
	}
	return d
}

// NearSeam reports whether pos is within width of any seam midpoint, using
// circular distance on a ring of length n.
func NearSeam(pos float64, seams []float64, n int, width float64) bool {
	for _, s := range seams {
		if math.Abs(CircularDistance(pos, s, n)) <= width {
			return true
		}
	}
	return false
}
