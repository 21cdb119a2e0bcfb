// Command sweep-report runs the full rendering pipeline offline against a
// capturing sink and writes an HTML report of per-actuator intensity over
// time. It is the quickest way to compare normalization modes or sigma
// settings without putting the vest on.
//
// Usage:
//
//	sweep-report -topology yaw-ring -speed 90 -duration 4s -out sweep.html
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/haptic-bench/apparent.motion/internal/render"
	"github.com/haptic-bench/apparent.motion/internal/topology"
)

var (
	topologyID = flag.String("topology", "yaw-ring", "Topology to simulate")
	speed      = flag.Float64("speed", 90, "Angular speed in deg/s")
	duration   = flag.Duration("duration", 4*time.Second, "Simulated run length")
	frameStep  = flag.Duration("dt", 20*time.Millisecond, "Simulated frame interval")
	normMode   = flag.String("normalization", "none", "Normalization mode: none, peak or energy")
	out        = flag.String("out", "sweep.html", "Output HTML path")
)

// captureSink records every frame the renderer emits.
type captureSink struct {
	frames [][]int
}

func (c *captureSink) Send(_ render.PositionGroup, intensities []int, _ int) error {
	frame := make([]int, len(intensities))
	copy(frame, intensities)
	c.frames = append(c.frames, frame)
	return nil
}

func main() {
	flag.Parse()

	topo, err := topology.Get(*topologyID)
	if err != nil {
		log.Fatalf("Failed to get topology: %v", err)
	}
	mode, err := render.ParseNormalizationMode(*normMode)
	if err != nil {
		log.Fatalf("Failed to parse normalization mode: %v", err)
	}

	sink := &captureSink{}
	r := render.New(topology.DefaultActuatorCount, render.GroupVest, sink)
	r.SetNormalization(mode, 2.0, 0.15)
	if err := r.Start(topo, *speed); err != nil {
		log.Fatalf("Failed to start renderer: %v", err)
	}

	dt := frameStep.Seconds()
	steps := int(duration.Seconds() / dt)
	for i := 0; i < steps; i++ {
		r.Tick(dt)
	}
	r.Stop()

	// Chart only the actuators the path actually touches, in path order.
	var actuators []int
	seen := make(map[int]bool)
	for _, g := range topo.Groups {
		for _, a := range g {
			if !seen[a] {
				seen[a] = true
				actuators = append(actuators, a)
			}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Intensity over time: %s @ %.0f deg/s", topo.ID, *speed),
			Subtitle: fmt.Sprintf("normalization=%s dt=%s", mode, frameStep),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)

	xAxis := make([]string, len(sink.frames))
	for i := range sink.frames {
		xAxis[i] = fmt.Sprintf("%.2fs", float64(i)*dt)
	}
	line.SetXAxis(xAxis)

	for _, a := range actuators {
		series := make([]opts.LineData, len(sink.frames))
		for i, frame := range sink.frames {
			v := 0
			if a < len(frame) {
				v = frame[a]
			}
			series[i] = opts.LineData{Value: v}
		}
		line.AddSeries(fmt.Sprintf("motor %d", a), series)
	}

	page := components.NewPage()
	page.AddCharts(line)

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}
	log.Printf("Wrote %s (%d frames, %d motors)", *out, len(sink.frames), len(actuators))
}
