package render

import (
	"github.com/haptic-bench/apparent.motion/internal/topology"
	"github.com/haptic-bench/apparent.motion/internal/units"
)

// PathState is the mutable per-renderer traversal state. It is owned
// exclusively by one Renderer and reset on Start/Stop.
type PathState struct {
	// Position is the stimulus centre in index space: [0, N) for closed
	// paths, [0, N] for open ones.
	Position float64

	// RestTimer counts down the pause after an open path completes a
	// traversal. Zero while sweeping.
	RestTimer float64

	// Running is true between Start and Stop.
	Running bool
}

// advance moves the path position by angular speed over dt seconds and
// reports whether the traversal crossed the end of the path. dt <= 0 and
// empty topologies are no-ops, guarding paused or suspended host frames.
//
// Closed paths wrap continuously; the wrapped flag is still reported but
// carries no behavioural weight for them. Open paths reset to the start on
// completion, and the caller uses the wrapped flag to enter the rest
// interval.
func advance(st *PathState, topo *topology.Topology, degPerSec, dt float64) (wrapped bool) {
	n := topo.Len()
	if n == 0 || dt <= 0 {
		return false
	}
	step := units.DegPerSecToIndexSpeed(degPerSec, n) * dt
	raw := st.Position + step

	if topo.Wraps() {
		st.Position = topology.Wrap(raw, n)
		return raw >= float64(n) || raw < 0
	}

	if raw >= float64(n) {
		st.Position = 0
		return true
	}
	if raw < 0 {
		raw = 0
	}
	st.Position = raw
	return false
}
