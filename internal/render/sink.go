package render

// PositionGroup identifies which region of the device a frame addresses.
// The reference vest exposes a single group; sleeves and head units get
// their own when present.
type PositionGroup string

const (
	// GroupVest addresses the full torso array.
	GroupVest PositionGroup = "vest"
)

// Sink accepts one rendered frame per tick and delivers it to the actuator
// hardware. Implementations must not retain the intensities slice. The
// renderer fires and forgets: delivery failures are the sink's concern and
// never stop the pipeline.
type Sink interface {
	// Send delivers per-actuator intensities (each within the device
	// resolution) to be held for durationMs milliseconds. The slice
	// length always equals the device actuator count.
	Send(group PositionGroup, intensities []int, durationMs int) error
}
