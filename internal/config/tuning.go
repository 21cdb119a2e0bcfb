package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/haptic-bench/apparent.motion/internal/render"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for rendering parameters.
// The schema matches the /api/params endpoint so the same JSON can be used
// for both startup configuration and runtime updates.
type TuningConfig struct {
	// Kernel params
	SigmaMain           *float64 `json:"sigma_main,omitempty"`
	SigmaSeam           *float64 `json:"sigma_seam,omitempty"`
	SeamWidth           *float64 `json:"seam_width,omitempty"`
	NeighborRadius      *int     `json:"neighbor_radius,omitempty"`
	Cutoff              *float64 `json:"cutoff,omitempty"`
	PerceptualThreshold *float64 `json:"perceptual_threshold,omitempty"`
	PeakIntensity       *float64 `json:"peak_intensity,omitempty"`

	// Normalization params
	NormalizationMode *string  `json:"normalization_mode,omitempty"` // "none", "peak" or "energy"
	EnergyTarget      *float64 `json:"energy_target,omitempty"`
	NormalizationTau  *float64 `json:"normalization_tau,omitempty"`

	// Smoothing / shaping params
	SmoothingTau *float64 `json:"smoothing_tau,omitempty"`
	OutputGamma  *float64 `json:"output_gamma,omitempty"`
	MinOnFloor   *float64 `json:"min_on_floor,omitempty"`

	// Motion params
	SpeedDegPerSec   *float64 `json:"speed_deg_per_sec,omitempty"`
	PulseDurationMs  *int     `json:"pulse_duration_ms,omitempty"`
	RestDuration     *string  `json:"rest_duration,omitempty"` // duration string like "600ms"
	FreezeDuringRest *bool    `json:"freeze_during_rest,omitempty"`

	// Frame loop / device params
	FrameInterval *string `json:"frame_interval,omitempty"` // duration string like "20ms"
	ActuatorCount *int    `json:"actuator_count,omitempty"`
	Topology      *string `json:"topology,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the JSON retain their default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching upward from the current directory. Panics if
// the file cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/<pkg>/
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. Out-of-range
// numeric values are not rejected here (the renderer clamps them); only
// structurally unusable values fail.
func (c *TuningConfig) Validate() error {
	if c.PeakIntensity != nil {
		if *c.PeakIntensity < 0 || *c.PeakIntensity > 1 {
			return fmt.Errorf("peak_intensity must be between 0 and 1, got %f", *c.PeakIntensity)
		}
	}

	if c.NormalizationMode != nil {
		if _, err := render.ParseNormalizationMode(*c.NormalizationMode); err != nil {
			return err
		}
	}

	if c.RestDuration != nil && *c.RestDuration != "" {
		if _, err := time.ParseDuration(*c.RestDuration); err != nil {
			return fmt.Errorf("invalid rest_duration '%s': %w", *c.RestDuration, err)
		}
	}

	if c.FrameInterval != nil && *c.FrameInterval != "" {
		if _, err := time.ParseDuration(*c.FrameInterval); err != nil {
			return fmt.Errorf("invalid frame_interval '%s': %w", *c.FrameInterval, err)
		}
	}

	if c.ActuatorCount != nil {
		if *c.ActuatorCount <= 0 {
			return fmt.Errorf("actuator_count must be positive, got %d", *c.ActuatorCount)
		}
	}

	if c.NeighborRadius != nil {
		if *c.NeighborRadius < 0 {
			return fmt.Errorf("neighbor_radius must be non-negative, got %d", *c.NeighborRadius)
		}
	}

	return nil
}

// GetSigmaMain returns the sigma_main value or the default.
func (c *TuningConfig) GetSigmaMain() float64 {
	if c.SigmaMain == nil {
		return 0.7
	}
	return *c.SigmaMain
}

// GetSigmaSeam returns the sigma_seam value or the default.
func (c *TuningConfig) GetSigmaSeam() float64 {
	if c.SigmaSeam == nil {
		return 1.4
	}
	return *c.SigmaSeam
}

// GetSeamWidth returns the seam_width value or the default.
func (c *TuningConfig) GetSeamWidth() float64 {
	if c.SeamWidth == nil {
		return 1.0
	}
	return *c.SeamWidth
}

// GetNeighborRadius returns the neighbor_radius value or the default.
func (c *TuningConfig) GetNeighborRadius() int {
	if c.NeighborRadius == nil {
		return 3
	}
	return *c.NeighborRadius
}

// GetCutoff returns the cutoff value or the default.
func (c *TuningConfig) GetCutoff() float64 {
	if c.Cutoff == nil {
		return 0.02
	}
	return *c.Cutoff
}

// GetPerceptualThreshold returns the perceptual_threshold value or the default.
func (c *TuningConfig) GetPerceptualThreshold() float64 {
	if c.PerceptualThreshold == nil {
		return 0.05
	}
	return *c.PerceptualThreshold
}

// GetPeakIntensity returns the peak_intensity value or the default.
func (c *TuningConfig) GetPeakIntensity() float64 {
	if c.PeakIntensity == nil {
		return 1.0
	}
	return *c.PeakIntensity
}

// GetNormalizationMode returns the parsed normalization mode or the default.
func (c *TuningConfig) GetNormalizationMode() render.NormalizationMode {
	if c.NormalizationMode == nil {
		return render.NormNone
	}
	mode, err := render.ParseNormalizationMode(*c.NormalizationMode)
	if err != nil {
		return render.NormNone
	}
	return mode
}

// GetEnergyTarget returns the energy_target value or the default.
func (c *TuningConfig) GetEnergyTarget() float64 {
	if c.EnergyTarget == nil {
		return 2.0
	}
	return *c.EnergyTarget
}

// GetNormalizationTau returns the normalization_tau value or the default.
func (c *TuningConfig) GetNormalizationTau() float64 {
	if c.NormalizationTau == nil {
		return 0.15
	}
	return *c.NormalizationTau
}

// GetSmoothingTau returns the smoothing_tau value or the default.
func (c *TuningConfig) GetSmoothingTau() float64 {
	if c.SmoothingTau == nil {
		return 0.05
	}
	return *c.SmoothingTau
}

// GetOutputGamma returns the output_gamma value or the default.
func (c *TuningConfig) GetOutputGamma() float64 {
	if c.OutputGamma == nil {
		return 1.0
	}
	return *c.OutputGamma
}

// GetMinOnFloor returns the min_on_floor value or the default.
func (c *TuningConfig) GetMinOnFloor() float64 {
	if c.MinOnFloor == nil {
		return 0.08
	}
	return *c.MinOnFloor
}

// GetSpeedDegPerSec returns the speed_deg_per_sec value or the default.
func (c *TuningConfig) GetSpeedDegPerSec() float64 {
	if c.SpeedDegPerSec == nil {
		return 90.0
	}
	return *c.SpeedDegPerSec
}

// GetPulseDurationMs returns the pulse_duration_ms value or the default.
func (c *TuningConfig) GetPulseDurationMs() int {
	if c.PulseDurationMs == nil {
		return 40
	}
	return *c.PulseDurationMs
}

// GetRestDuration parses and returns the rest_duration as a time.Duration.
func (c *TuningConfig) GetRestDuration() time.Duration {
	if c.RestDuration == nil || *c.RestDuration == "" {
		return 600 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.RestDuration)
	if err != nil {
		return 600 * time.Millisecond
	}
	return d
}

// GetFreezeDuringRest returns the freeze_during_rest value or the default.
func (c *TuningConfig) GetFreezeDuringRest() bool {
	if c.FreezeDuringRest == nil {
		return true
	}
	return *c.FreezeDuringRest
}

// GetFrameInterval parses and returns the frame_interval as a time.Duration.
func (c *TuningConfig) GetFrameInterval() time.Duration {
	if c.FrameInterval == nil || *c.FrameInterval == "" {
		return 20 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.FrameInterval)
	if err != nil {
		return 20 * time.Millisecond
	}
	return d
}

// GetActuatorCount returns the actuator_count value or the default.
func (c *TuningConfig) GetActuatorCount() int {
	if c.ActuatorCount == nil {
		return 32
	}
	return *c.ActuatorCount
}

// GetTopology returns the topology value or the default.
func (c *TuningConfig) GetTopology() string {
	if c.Topology == nil || *c.Topology == "" {
		return "yaw-ring"
	}
	return *c.Topology
}

// Apply pushes every set-or-defaulted tuning value onto the renderer via
// its clamping setters.
func (c *TuningConfig) Apply(r *render.Renderer) {
	r.SetMaxIntensity(c.GetPeakIntensity())
	r.SetSigmas(c.GetSigmaMain(), c.GetSigmaSeam())
	r.SetSpeedAndDuration(c.GetSpeedDegPerSec(), c.GetPulseDurationMs())
	r.SetShaping(
		c.GetPerceptualThreshold(),
		c.GetCutoff(),
		c.GetSmoothingTau(),
		c.GetOutputGamma(),
		c.GetMinOnFloor(),
		c.GetSeamWidth(),
	)
	r.SetNeighborRadius(c.GetNeighborRadius())
	r.SetNormalization(c.GetNormalizationMode(), c.GetEnergyTarget(), c.GetNormalizationTau())
	r.SetRest(c.GetRestDuration().Seconds(), c.GetFreezeDuringRest())
}
