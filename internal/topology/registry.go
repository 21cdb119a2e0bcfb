package topology

import (
	"fmt"
	"sort"

	"github.com/haptic-bench/apparent.motion/internal/units"
)

// DefaultActuatorCount is the motor count of the reference vest: four rows of
// eight columns around the torso. Index = row*8 + col, row 0 at the top,
// col 0 at front-centre, col 4 at back-centre.
const DefaultActuatorCount = 32

func row(r int, cols ...int) []ActuatorGroup {
	groups := make([]ActuatorGroup, 0, len(cols))
	for _, c := range cols {
		groups = append(groups, ActuatorGroup{r*8 + c})
	}
	return groups
}

func pairedRows(upper, lower int, cols ...int) []ActuatorGroup {
	groups := make([]ActuatorGroup, 0, len(cols))
	for _, c := range cols {
		groups = append(groups, ActuatorGroup{upper*8 + c, lower*8 + c})
	}
	return groups
}

// builtin holds the reference vest paths, keyed by ID.
//
// The three closed rings cover one rotation axis each. Seams sit at the
// front-centre (offset 0) and back-centre (offset 4) crossings, where the
// inter-actuator skin distance differs from the path interior.
var builtin = map[string]*Topology{
	// Horizontal chest ring, one motor per column (yaw axis).
	"yaw-ring": {
		ID:     "yaw-ring",
		Axis:   units.AxisYaw,
		Groups: row(1, 0, 1, 2, 3, 4, 5, 6, 7),
		Seams:  []float64{0, 4},
		Kind:   Closed,
	},
	// Horizontal ring firing chest and belly rows together.
	"yaw-ring-paired": {
		ID:     "yaw-ring-paired",
		Axis:   units.AxisYaw,
		Groups: pairedRows(1, 2, 0, 1, 2, 3, 4, 5, 6, 7),
		Seams:  []float64{0, 4},
		Kind:   Closed,
	},
	// Sagittal ring firing two adjacent columns per step.
	"pitch-ring-paired": {
		ID:   "pitch-ring-paired",
		Axis: units.AxisPitch,
		Groups: []ActuatorGroup{
			{0, 1}, {8, 9}, {16, 17}, {24, 25},
			{28, 29}, {20, 21}, {12, 13}, {4, 5},
		},
		Seams: []float64{0, 4},
		Kind:  Closed,
	},
	// Frontal ring firing two adjacent columns per step.
	"roll-ring-paired": {
		ID:   "roll-ring-paired",
		Axis: units.AxisRoll,
		Groups: []ActuatorGroup{
			{2, 3}, {10, 11}, {18, 19}, {26, 27},
			{30, 31}, {22, 23}, {14, 15}, {6, 7},
		},
		Seams: []float64{0, 4},
		Kind:  Closed,
	},
	// Sagittal ring: down the front-centre column, back up the spine
	// (pitch axis). Seams where the path crosses shoulder and waist.
	"pitch-ring": {
		ID:   "pitch-ring",
		Axis: units.AxisPitch,
		Groups: []ActuatorGroup{
			{0}, {8}, {16}, {24}, // front column, top to bottom
			{28}, {20}, {12}, {4}, // back column, bottom to top
		},
		Seams: []float64{0, 4},
		Kind:  Closed,
	},
	// Frontal ring: down the left flank, up the right flank (roll axis).
	"roll-ring": {
		ID:   "roll-ring",
		Axis: units.AxisRoll,
		Groups: []ActuatorGroup{
			{2}, {10}, {18}, {26}, // left column, top to bottom
			{30}, {22}, {14}, {6}, // right column, bottom to top
		},
		Seams: []float64{0, 4},
		Kind:  Closed,
	},
	// Single open sweep across the chest, right to left, with a rest
	// interval after each traversal.
	"front-sweep": {
		ID:     "front-sweep",
		Groups: row(1, 6, 7, 0, 1, 2),
		Kind:   OpenWithRest,
	},
	// Front arc followed by the back (seam) arc as one concatenated path.
	// The kernel width blends continuously across the junction.
	"chest-combined": {
		ID: "chest-combined",
		Groups: []ActuatorGroup{
			{14}, {15}, {8}, {9}, {10}, // front arc
			{11}, {12}, {13}, // back arc
		},
		Kind:          OpenCombinedBlend,
		BlendBoundary: 5,
		BlendWindow:   1.5,
	},
}

// Get returns the built-in topology with the given ID.
func Get(id string) (*Topology, error) {
	t, ok := builtin[id]
	if !ok {
		return nil, fmt.Errorf("unknown topology %q (valid: %v)", id, IDs())
	}
	return t, nil
}

// IDsForAxis returns the sorted IDs of the built-in topologies rendering
// the given rotation axis.
func IDsForAxis(axis string) []string {
	var ids []string
	for id, t := range builtin {
		if t.Axis == axis {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// IDs returns the sorted list of built-in topology IDs.
func IDs() []string {
	ids := make([]string, 0, len(builtin))
	for id := range builtin {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
