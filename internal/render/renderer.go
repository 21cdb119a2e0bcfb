package render

import (
	"log"
	"sync"

	"github.com/haptic-bench/apparent.motion/internal/topology"
	"github.com/haptic-bench/apparent.motion/internal/units"
)

// Renderer drives one topology through the five-stage pipeline: position
// advance, kernel field generation, optional normalization, temporal
// smoothing and output shaping, handing the finished frame to the Sink.
//
// The pipeline itself is synchronous and runs to completion inside Tick.
// A mutex makes Tick and the parameter setters safe to call from the HTTP
// layer while the frame loop runs; there is no parallelism inside a frame.
// Multiple Renderer instances are fully independent.
type Renderer struct {
	mu sync.Mutex

	topo          *topology.Topology
	actuatorCount int
	group         PositionGroup
	sink          Sink

	kernel  KernelParams
	shaping ShapingParams
	norm    *Normalizer
	smooth  *Smoother

	speedDegPerSec float64
	pulseMs        int

	restDuration     float64
	freezeDuringRest bool

	state   PathState
	resting bool

	raw []float64
	out []int
}

// New returns an idle Renderer for a device with actuatorCount motors,
// delivering frames for the given position group to sink.
func New(actuatorCount int, group PositionGroup, sink Sink) *Renderer {
	kernel := DefaultKernelParams()
	kernel.sanitize()
	shaping := DefaultShapingParams()
	shaping.sanitize()
	return &Renderer{
		actuatorCount:    actuatorCount,
		group:            group,
		sink:             sink,
		kernel:           kernel,
		shaping:          shaping,
		norm:             NewNormalizer(),
		smooth:           NewSmoother(actuatorCount, 0.05),
		speedDegPerSec:   90,
		pulseMs:          40,
		restDuration:     0.6,
		freezeDuringRest: true,
		raw:              make([]float64, actuatorCount),
		out:              make([]int, actuatorCount),
	}
}

// Start resets all per-frame state and begins rendering topo at the given
// angular speed. Starting while running restarts from position zero.
func (r *Renderer) Start(topo *topology.Topology, degPerSec float64) error {
	if err := topo.Validate(r.actuatorCount); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topo = topo
	r.speedDegPerSec = degPerSec
	r.state = PathState{Running: true}
	r.resting = false
	r.norm.Reset()
	r.smooth.Reset()
	for i := range r.raw {
		r.raw[i] = 0
	}
	for i := range r.out {
		r.out[i] = 0
	}
	return nil
}

// Stop is callable from any state. It zeroes all per-frame state and sends
// one all-zero frame so no actuator is left engaged, then returns to idle.
// Stopping twice produces the same all-zero output both times.
func (r *Renderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = PathState{}
	r.resting = false
	r.norm.Reset()
	r.smooth.Reset()
	for i := range r.raw {
		r.raw[i] = 0
	}
	for i := range r.out {
		r.out[i] = 0
	}
	r.send()
}

// Tick runs one frame: advances the position by dt seconds, renders the
// field and delivers it to the sink. No-op while idle or for dt <= 0.
func (r *Renderer) Tick(dt float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.Running || r.topo == nil || dt <= 0 {
		return
	}

	if r.resting {
		r.state.RestTimer -= dt
		if r.state.RestTimer <= 0 {
			r.state.RestTimer = 0
			r.resting = false
		}
	}

	// During the rest interval the field generator is skipped and the
	// output decays to zero through the smoother, so the sweep does not
	// appear to snap back to the start. The freeze flag decides whether
	// the position holds or keeps advancing silently.
	renderStimulus := true
	if r.resting {
		renderStimulus = false
		if !r.freezeDuringRest {
			advance(&r.state, r.topo, r.speedDegPerSec, dt)
		}
	} else {
		wrapped := advance(&r.state, r.topo, r.speedDegPerSec, dt)
		if wrapped && !r.topo.Wraps() {
			r.resting = true
			r.state.RestTimer = r.restDuration
			renderStimulus = false
		}
	}

	if renderStimulus {
		RenderField(r.raw, r.state.Position, r.topo, r.kernel)
		r.norm.Apply(r.raw, r.kernel.Peak, dt)
	} else {
		for i := range r.raw {
			r.raw[i] = 0
		}
	}

	smoothed := r.smooth.Apply(r.raw, dt)
	Shape(r.out, smoothed, r.kernel.Peak, r.shaping)
	r.send()
}

// send fires the current output frame at the sink. Delivery errors are
// logged and dropped; the pipeline has no retry policy.
func (r *Renderer) send() {
	if r.sink == nil {
		return
	}
	if err := r.sink.Send(r.group, r.out, units.ClampDurationMs(r.pulseMs)); err != nil {
		log.Printf("sink send failed: %v", err)
	}
}

// Running reports whether the renderer is between Start and Stop.
func (r *Renderer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Running
}

// Resting reports whether an open path is inside its rest interval.
func (r *Renderer) Resting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resting
}

// Position returns the current index-space stimulus position.
func (r *Renderer) Position() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Position
}

// Topology returns the active topology, or nil while idle.
func (r *Renderer) Topology() *topology.Topology {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.topo
}

// Intensities returns a copy of the most recently applied device
// intensities; this is the getter the experiment layer polls.
func (r *Renderer) Intensities() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.out))
	copy(out, r.out)
	return out
}

// SetMaxIntensity clamps v to [0, 1] and applies it as the kernel peak on
// the next frame.
func (r *Renderer) SetMaxIntensity(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kernel.Peak = clamp01(v)
}

// SetSigmas updates the interior and seam kernel widths, clamped away from
// zero.
func (r *Renderer) SetSigmas(main, seam float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kernel.SigmaMain = clampMin(main, minSigma)
	r.kernel.SigmaSeam = clampMin(seam, minSigma)
}

// SetSpeedAndDuration updates the angular speed and the per-frame pulse
// duration handed to the sink.
func (r *Renderer) SetSpeedAndDuration(degPerSec float64, durationMs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speedDegPerSec = degPerSec
	r.pulseMs = units.ClampDurationMs(durationMs)
}

// SetShaping updates the perceptual threshold, kernel cutoff, smoothing
// time constant, gamma, min-on floor and seam width together; this matches
// the grouped control the experiment UI exposes. All values clamp to safe
// ranges.
func (r *Renderer) SetShaping(threshold, cutoff, tau, gamma, minOn, seamWidth float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kernel.PerceptualThreshold = clamp(threshold, 0, 0.999)
	r.kernel.Cutoff = clamp01(cutoff)
	r.smooth.Tau = clampMin(tau, minTau)
	r.shaping.Gamma = clampMin(gamma, 1e-3)
	r.shaping.MinOnFloor = clamp01(minOn)
	r.kernel.SeamWidth = clampMin(seamWidth, 0)
}

// SetNeighborRadius updates how many path steps either side of the stimulus
// receive contributions.
func (r *Renderer) SetNeighborRadius(radius int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if radius < 0 {
		radius = 0
	}
	r.kernel.NeighborRadius = radius
}

// SetNormalization switches the normalization mode and its setpoints.
func (r *Renderer) SetNormalization(mode NormalizationMode, energyTarget, tau float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.norm.Mode = mode
	r.norm.EnergyTarget = clampMin(energyTarget, 0)
	r.norm.Tau = clampMin(tau, minTau)
}

// SetRest configures the open-path rest interval and whether the stimulus
// position freezes while resting.
func (r *Renderer) SetRest(durationSec float64, freeze bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restDuration = clampMin(durationSec, 0)
	r.freezeDuringRest = freeze
}

// Rest returns the applied rest duration in seconds and whether the
// position freezes while resting.
func (r *Renderer) Rest() (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.restDuration, r.freezeDuringRest
}

// KernelParams returns a copy of the active kernel tuning.
func (r *Renderer) KernelParams() KernelParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kernel
}

// ShapingParams returns a copy of the active output shaping tuning.
func (r *Renderer) ShapingParams() ShapingParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shaping
}

// SmoothingTau returns the active smoothing time constant.
func (r *Renderer) SmoothingTau() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.smooth.Tau
}

// Speed returns the active angular speed in degrees per second.
func (r *Renderer) Speed() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speedDegPerSec
}

// PulseMs returns the per-frame pulse duration handed to the sink.
func (r *Renderer) PulseMs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pulseMs
}

// Normalization returns the active mode and setpoints.
func (r *Renderer) Normalization() (NormalizationMode, float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.norm.Mode, r.norm.EnergyTarget, r.norm.Tau
}
