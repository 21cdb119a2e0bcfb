// Command kernel-plot renders the per-actuator kernel intensity profile of
// a topology to a PNG, one line per sigma value. Useful for eyeballing how
// kernel width and the seam switch shape the field before running a
// participant.
//
// Usage:
//
//	kernel-plot -topology yaw-ring -position 2.5 -sigmas 0.5,0.7,1.4 -out kernel.png
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/haptic-bench/apparent.motion/internal/render"
	"github.com/haptic-bench/apparent.motion/internal/topology"
)

var (
	topologyID = flag.String("topology", "yaw-ring", "Topology to plot")
	position   = flag.Float64("position", 2.5, "Stimulus position in index space")
	sigmas     = flag.String("sigmas", "0.5,0.7,1.4,2.0", "Comma-separated sigma_main values")
	out        = flag.String("out", "kernel.png", "Output PNG path")
)

func parseSigmas(s string) ([]float64, error) {
	var vals []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid sigma %q: %w", part, err)
		}
		vals = append(vals, v)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("no sigma values given")
	}
	return vals, nil
}

func main() {
	flag.Parse()

	topo, err := topology.Get(*topologyID)
	if err != nil {
		log.Fatalf("Failed to get topology: %v", err)
	}
	sigmaVals, err := parseSigmas(*sigmas)
	if err != nil {
		log.Fatalf("Failed to parse sigmas: %v", err)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Kernel field, %s @ position %.2f", topo.ID, *position)
	p.X.Label.Text = "actuator index"
	p.Y.Label.Text = "intensity"
	p.Y.Min = 0
	p.Y.Max = 1.05

	field := make([]float64, topology.DefaultActuatorCount)
	for i, sigma := range sigmaVals {
		params := render.DefaultKernelParams()
		params.SigmaMain = sigma
		params.SigmaSeam = sigma * 2
		render.RenderField(field, *position, topo, params)

		pts := make(plotter.XYs, 0, len(field))
		for a, v := range field {
			pts = append(pts, plotter.XY{X: float64(a), Y: v})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			log.Fatalf("Failed to build line: %v", err)
		}
		line.Width = vg.Points(1)
		line.Color = plotColor(i)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("sigma %.2f", sigma), line)
	}

	if err := p.Save(10*vg.Inch, 5*vg.Inch, *out); err != nil {
		log.Fatalf("Failed to save plot: %v", err)
	}
	log.Printf("Wrote %s", *out)
}
