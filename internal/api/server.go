package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/haptic-bench/apparent.motion/internal/config"
	"github.com/haptic-bench/apparent.motion/internal/render"
	"github.com/haptic-bench/apparent.motion/internal/topology"
	"github.com/haptic-bench/apparent.motion/internal/trialdb"
	"github.com/haptic-bench/apparent.motion/internal/units"
	"github.com/haptic-bench/apparent.motion/internal/vestmux"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes the renderer's parameter API and the trial store over
// HTTP. It holds collaborators only; all rendering state lives in the
// renderer.
type Server struct {
	renderer *render.Renderer
	store    *trialdb.DB
	mux      vestmux.Muxer
}

// NewServer wires a Server. store and mux may be nil when running without a
// database or without hardware; the corresponding endpoints then report
// service unavailable.
func NewServer(renderer *render.Renderer, store *trialdb.DB, mux vestmux.Muxer) *Server {
	return &Server{
		renderer: renderer,
		store:    store,
		mux:      mux,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the route table for the parameter and trial API.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/params", s.handleParams)
	mux.HandleFunc("/api/motion/start", s.handleMotionStart)
	mux.HandleFunc("/api/motion/stop", s.handleMotionStop)
	mux.HandleFunc("/api/field", s.showField)
	mux.HandleFunc("/api/topologies", s.listTopologies)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/trials/start", s.startTrial)
	mux.HandleFunc("/api/trials/end", s.endTrial)
	mux.HandleFunc("/api/rankings", s.recordRanking)
	mux.HandleFunc("/command", s.sendCommandHandler)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// paramsSnapshot is the wire form of the currently applied tuning. It uses
// the same field names as config.TuningConfig so a GET response can be
// POSTed back unchanged.
type paramsSnapshot struct {
	SigmaMain           float64 `json:"sigma_main"`
	SigmaSeam           float64 `json:"sigma_seam"`
	SeamWidth           float64 `json:"seam_width"`
	NeighborRadius      int     `json:"neighbor_radius"`
	Cutoff              float64 `json:"cutoff"`
	PerceptualThreshold float64 `json:"perceptual_threshold"`
	PeakIntensity       float64 `json:"peak_intensity"`
	NormalizationMode   string  `json:"normalization_mode"`
	EnergyTarget        float64 `json:"energy_target"`
	NormalizationTau    float64 `json:"normalization_tau"`
	SmoothingTau        float64 `json:"smoothing_tau"`
	OutputGamma         float64 `json:"output_gamma"`
	MinOnFloor          float64 `json:"min_on_floor"`
	SpeedDegPerSec      float64 `json:"speed_deg_per_sec"`
	PulseDurationMs     int     `json:"pulse_duration_ms"`
	RestDuration        string  `json:"rest_duration"`
	FreezeDuringRest    bool    `json:"freeze_during_rest"`
}

func (s *Server) snapshot() paramsSnapshot {
	kp := s.renderer.KernelParams()
	sp := s.renderer.ShapingParams()
	mode, energyTarget, normTau := s.renderer.Normalization()
	restSec, freeze := s.renderer.Rest()
	return paramsSnapshot{
		SigmaMain:           kp.SigmaMain,
		SigmaSeam:           kp.SigmaSeam,
		SeamWidth:           kp.SeamWidth,
		NeighborRadius:      kp.NeighborRadius,
		Cutoff:              kp.Cutoff,
		PerceptualThreshold: kp.PerceptualThreshold,
		PeakIntensity:       kp.Peak,
		NormalizationMode:   mode.String(),
		EnergyTarget:        energyTarget,
		NormalizationTau:    normTau,
		SmoothingTau:        s.renderer.SmoothingTau(),
		OutputGamma:         sp.Gamma,
		MinOnFloor:          sp.MinOnFloor,
		SpeedDegPerSec:      s.renderer.Speed(),
		PulseDurationMs:     s.renderer.PulseMs(),
		RestDuration:        time.Duration(restSec * float64(time.Second)).String(),
		FreezeDuringRest:    freeze,
	}
}

// applyPartial pushes only the fields present in the update onto the
// renderer, leaving everything else as currently applied. Values outside
// safe ranges are clamped by the setters, never rejected.
func (s *Server) applyPartial(cfg *config.TuningConfig) {
	cur := s.snapshot()

	if cfg.PeakIntensity != nil {
		s.renderer.SetMaxIntensity(*cfg.PeakIntensity)
	}
	if cfg.SigmaMain != nil || cfg.SigmaSeam != nil {
		main, seam := cur.SigmaMain, cur.SigmaSeam
		if cfg.SigmaMain != nil {
			main = *cfg.SigmaMain
		}
		if cfg.SigmaSeam != nil {
			seam = *cfg.SigmaSeam
		}
		s.renderer.SetSigmas(main, seam)
	}
	if cfg.SpeedDegPerSec != nil || cfg.PulseDurationMs != nil {
		speed, pulse := cur.SpeedDegPerSec, cur.PulseDurationMs
		if cfg.SpeedDegPerSec != nil {
			speed = *cfg.SpeedDegPerSec
		}
		if cfg.PulseDurationMs != nil {
			pulse = *cfg.PulseDurationMs
		}
		s.renderer.SetSpeedAndDuration(speed, pulse)
	}
	if cfg.PerceptualThreshold != nil || cfg.Cutoff != nil || cfg.SmoothingTau != nil ||
		cfg.OutputGamma != nil || cfg.MinOnFloor != nil || cfg.SeamWidth != nil {
		threshold, cutoff, tau := cur.PerceptualThreshold, cur.Cutoff, cur.SmoothingTau
		gamma, minOn, seamWidth := cur.OutputGamma, cur.MinOnFloor, cur.SeamWidth
		if cfg.PerceptualThreshold != nil {
			threshold = *cfg.PerceptualThreshold
		}
		if cfg.Cutoff != nil {
			cutoff = *cfg.Cutoff
		}
		if cfg.SmoothingTau != nil {
			tau = *cfg.SmoothingTau
		}
		if cfg.OutputGamma != nil {
			gamma = *cfg.OutputGamma
		}
		if cfg.MinOnFloor != nil {
			minOn = *cfg.MinOnFloor
		}
		if cfg.SeamWidth != nil {
			seamWidth = *cfg.SeamWidth
		}
		s.renderer.SetShaping(threshold, cutoff, tau, gamma, minOn, seamWidth)
	}
	if cfg.NeighborRadius != nil {
		s.renderer.SetNeighborRadius(*cfg.NeighborRadius)
	}
	if cfg.NormalizationMode != nil || cfg.EnergyTarget != nil || cfg.NormalizationTau != nil {
		mode, energyTarget, normTau := s.renderer.Normalization()
		if cfg.NormalizationMode != nil {
			if m, err := render.ParseNormalizationMode(*cfg.NormalizationMode); err == nil {
				mode = m
			}
		}
		if cfg.EnergyTarget != nil {
			energyTarget = *cfg.EnergyTarget
		}
		if cfg.NormalizationTau != nil {
			normTau = *cfg.NormalizationTau
		}
		s.renderer.SetNormalization(mode, energyTarget, normTau)
	}
	if cfg.RestDuration != nil || cfg.FreezeDuringRest != nil {
		restSec, freeze := s.renderer.Rest()
		if cfg.RestDuration != nil {
			restSec = cfg.GetRestDuration().Seconds()
		}
		if cfg.FreezeDuringRest != nil {
			freeze = *cfg.FreezeDuringRest
		}
		s.renderer.SetRest(restSec, freeze)
	}
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, s.snapshot())
	case http.MethodPost:
		cfg := config.EmptyTuningConfig()
		if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid params JSON: %v", err))
			return
		}
		if err := cfg.Validate(); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.applyPartial(cfg)
		s.writeJSON(w, s.snapshot())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type motionStartRequest struct {
	TopologyID     string   `json:"topology_id"`
	SpeedDegPerSec *float64 `json:"speed_deg_per_sec,omitempty"`
}

func (s *Server) handleMotionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req motionStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid start request: %v", err))
		return
	}
	topo, err := topology.Get(req.TopologyID)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	speed := s.renderer.Speed()
	if req.SpeedDegPerSec != nil {
		speed = *req.SpeedDegPerSec
	}
	if err := s.renderer.Start(topo, speed); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, map[string]any{
		"running":  true,
		"topology": topo.ID,
		"speed":    speed,
	})
}

func (s *Server) handleMotionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.renderer.Stop()
	s.writeJSON(w, map[string]any{"running": false})
}

func (s *Server) showField(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	topoID := ""
	if t := s.renderer.Topology(); t != nil {
		topoID = t.ID
	}
	s.writeJSON(w, map[string]any{
		"running":     s.renderer.Running(),
		"resting":     s.renderer.Resting(),
		"position":    s.renderer.Position(),
		"topology":    topoID,
		"intensities": s.renderer.Intensities(),
	})
}

func (s *Server) listTopologies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if axis := r.URL.Query().Get("axis"); axis != "" {
		if !units.IsValidAxis(axis) {
			s.writeJSONError(w, http.StatusBadRequest,
				fmt.Sprintf("invalid axis %q (valid: %s)", axis, units.GetValidAxesString()))
			return
		}
		s.writeJSON(w, map[string]any{"topologies": topology.IDsForAxis(axis)})
		return
	}
	s.writeJSON(w, map[string]any{"topologies": topology.IDs()})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "trial store not configured")
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Participant string `json:"participant"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid session request: %v", err))
			return
		}
		session, err := s.store.CreateSession(req.Participant)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, session)
	case http.MethodGet:
		id := r.URL.Query().Get("id")
		if id == "" {
			s.writeJSONError(w, http.StatusBadRequest, "missing session id")
			return
		}
		session, trials, err := s.store.GetSession(id)
		if err != nil {
			s.writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeJSON(w, map[string]any{"session": session, "trials": trials})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) startTrial(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "trial store not configured")
		return
	}
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid trial request: %v", err))
		return
	}
	topoID := ""
	if t := s.renderer.Topology(); t != nil {
		topoID = t.ID
	}
	paramsJSON, err := json.Marshal(s.snapshot())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	trial, err := s.store.StartTrial(req.SessionID, topoID, string(paramsJSON), s.renderer.Speed())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, trial)
}

func (s *Server) endTrial(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "trial store not configured")
		return
	}
	var req struct {
		TrialID string `json:"trial_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid trial request: %v", err))
		return
	}
	if err := s.store.EndTrial(req.TrialID); err != nil {
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, map[string]any{"ended": req.TrialID})
}

func (s *Server) recordRanking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "trial store not configured")
		return
	}
	var req struct {
		TrialID string `json:"trial_id"`
		Rank    int    `json:"rank"`
		Note    string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid ranking request: %v", err))
		return
	}
	ranking, err := s.store.RecordRanking(req.TrialID, req.Rank, req.Note)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, ranking)
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.mux == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "vest not connected")
		return
	}
	command := r.FormValue("command")
	if err := s.mux.SendCommand(command); err != nil {
		http.Error(w, "Failed to send command", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Command sent successfully")
}
