package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haptic-bench/apparent.motion/internal/render"
	"github.com/haptic-bench/apparent.motion/internal/trialdb"
	"github.com/haptic-bench/apparent.motion/internal/vestmux"
)

type nopSink struct{}

func (nopSink) Send(render.PositionGroup, []int, int) error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *render.Renderer) {
	t.Helper()
	renderer := render.New(32, render.GroupVest, nopSink{})

	store, err := trialdb.NewDB(filepath.Join(t.TempDir(), "trials.db"))
	if err != nil {
		t.Fatalf("opening trial store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.MigrateUp("../../migrations"); err != nil {
		t.Fatalf("migrating trial store: %v", err)
	}

	srv := NewServer(renderer, store, vestmux.NewMockVestMux(""))
	ts := httptest.NewServer(srv.ServeMux())
	t.Cleanup(ts.Close)
	return ts, renderer
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding GET %s response: %v", url, err)
		}
	}
	return resp
}

func postJSON(t *testing.T, url, body string, out any) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding POST %s response: %v", url, err)
		}
	}
	return resp
}

func TestParamsGetReturnsDefaults(t *testing.T) {
	ts, _ := newTestServer(t)

	var got paramsSnapshot
	resp := getJSON(t, ts.URL+"/api/params", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got.SigmaMain != 0.7 || got.SigmaSeam != 1.4 {
		t.Errorf("sigmas = %v/%v, want 0.7/1.4", got.SigmaMain, got.SigmaSeam)
	}
	if got.NormalizationMode != "none" {
		t.Errorf("normalization_mode = %q, want none", got.NormalizationMode)
	}
	if got.SpeedDegPerSec != 90 {
		t.Errorf("speed_deg_per_sec = %v, want 90", got.SpeedDegPerSec)
	}
	if got.RestDuration != "600ms" {
		t.Errorf("rest_duration = %q, want 600ms", got.RestDuration)
	}
	if !got.FreezeDuringRest {
		t.Error("freeze_during_rest = false, want true")
	}
}

// Posting one rest field must leave the other at its applied value, not
// reset it to the compiled default.
func TestParamsRestFieldsMergeIndependently(t *testing.T) {
	ts, renderer := newTestServer(t)

	postJSON(t, ts.URL+"/api/params", `{"rest_duration": "3s"}`, nil)

	var got paramsSnapshot
	resp := postJSON(t, ts.URL+"/api/params", `{"freeze_during_rest": false}`, &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got.RestDuration != "3s" {
		t.Errorf("rest_duration = %q after freeze-only update, want 3s", got.RestDuration)
	}
	if got.FreezeDuringRest {
		t.Error("freeze_during_rest = true, want false")
	}

	restSec, freeze := renderer.Rest()
	if restSec != 3 {
		t.Errorf("applied rest = %vs, want 3s", restSec)
	}
	if freeze {
		t.Error("applied freeze = true, want false")
	}

	// And the other direction: a rest-only update keeps the freeze flag.
	postJSON(t, ts.URL+"/api/params", `{"rest_duration": "1s"}`, &got)
	if got.FreezeDuringRest {
		t.Error("rest-only update reset freeze_during_rest to default")
	}
}

func TestParamsPostPartialUpdate(t *testing.T) {
	ts, renderer := newTestServer(t)

	var got paramsSnapshot
	resp := postJSON(t, ts.URL+"/api/params", `{"sigma_main": 0.9, "normalization_mode": "peak"}`, &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got.SigmaMain != 0.9 {
		t.Errorf("sigma_main = %v, want 0.9", got.SigmaMain)
	}
	if got.SigmaSeam != 1.4 {
		t.Errorf("sigma_seam = %v, want untouched 1.4", got.SigmaSeam)
	}
	if got.NormalizationMode != "peak" {
		t.Errorf("normalization_mode = %q, want peak", got.NormalizationMode)
	}
	if kp := renderer.KernelParams(); kp.SigmaMain != 0.9 {
		t.Errorf("renderer sigma_main = %v, want 0.9", kp.SigmaMain)
	}
}

func TestParamsPostRejectsBadInput(t *testing.T) {
	ts, _ := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"sigma_main": `},
		{"unknown normalization mode", `{"normalization_mode": "loud"}`},
		{"peak out of range", `{"peak_intensity": 2.0}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/params", tc.body, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestParamsMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/params", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestMotionStartAndStop(t *testing.T) {
	ts, renderer := newTestServer(t)

	var started map[string]any
	resp := postJSON(t, ts.URL+"/api/motion/start", `{"topology_id": "yaw-ring"}`, &started)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d, want 200", resp.StatusCode)
	}
	if started["topology"] != "yaw-ring" {
		t.Errorf("topology = %v, want yaw-ring", started["topology"])
	}
	if started["speed"] != 90.0 { // default speed when the request omits it
		t.Errorf("speed = %v, want 90", started["speed"])
	}
	if !renderer.Running() {
		t.Error("renderer should be running after start")
	}

	var field map[string]any
	getJSON(t, ts.URL+"/api/field", &field)
	if field["running"] != true || field["topology"] != "yaw-ring" {
		t.Errorf("field = %v, want running on yaw-ring", field)
	}
	if n := len(field["intensities"].([]any)); n != 32 {
		t.Errorf("intensities length = %d, want 32", n)
	}

	var stopped map[string]any
	postJSON(t, ts.URL+"/api/motion/stop", `{}`, &stopped)
	if stopped["running"] != false {
		t.Errorf("stop response = %v, want running false", stopped)
	}
	if renderer.Running() {
		t.Error("renderer should be stopped")
	}
}

func TestMotionStartExplicitSpeed(t *testing.T) {
	ts, renderer := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/motion/start", `{"topology_id": "pitch-ring", "speed_deg_per_sec": 45}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d, want 200", resp.StatusCode)
	}
	if renderer.Speed() != 45 {
		t.Errorf("renderer speed = %v, want 45", renderer.Speed())
	}
}

func TestMotionStartUnknownTopology(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/motion/start", `{"topology_id": "torso-spiral"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListTopologies(t *testing.T) {
	ts, _ := newTestServer(t)

	var got struct {
		Topologies []string `json:"topologies"`
	}
	getJSON(t, ts.URL+"/api/topologies", &got)
	found := false
	for _, id := range got.Topologies {
		if id == "yaw-ring" {
			found = true
		}
	}
	if !found {
		t.Errorf("topologies %v missing yaw-ring", got.Topologies)
	}
}

func TestListTopologiesAxisFilter(t *testing.T) {
	ts, _ := newTestServer(t)

	var got struct {
		Topologies []string `json:"topologies"`
	}
	resp := getJSON(t, ts.URL+"/api/topologies?axis=pitch", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	want := []string{"pitch-ring", "pitch-ring-paired"}
	if len(got.Topologies) != len(want) {
		t.Fatalf("topologies = %v, want %v", got.Topologies, want)
	}
	for i, id := range want {
		if got.Topologies[i] != id {
			t.Errorf("topologies[%d] = %q, want %q", i, got.Topologies[i], id)
		}
	}

	resp = getJSON(t, ts.URL+"/api/topologies?axis=diagonal", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status for invalid axis = %d, want 400", resp.StatusCode)
	}
}

func TestTrialFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	var session trialdb.Session
	resp := postJSON(t, ts.URL+"/api/sessions", `{"participant": "p1"}`, &session)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create session status = %d, want 200", resp.StatusCode)
	}
	if session.SessionID == "" {
		t.Fatal("session id missing")
	}

	postJSON(t, ts.URL+"/api/motion/start", `{"topology_id": "yaw-ring"}`, nil)

	var trial trialdb.Trial
	resp = postJSON(t, ts.URL+"/api/trials/start", `{"session_id": "`+session.SessionID+`"}`, &trial)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start trial status = %d, want 200", resp.StatusCode)
	}
	if trial.TopologyID != "yaw-ring" {
		t.Errorf("trial topology = %q, want yaw-ring", trial.TopologyID)
	}
	// The trial captures the applied parameters at start time.
	var snap paramsSnapshot
	if err := json.Unmarshal([]byte(trial.ParamsJSON), &snap); err != nil {
		t.Fatalf("trial params are not a snapshot: %v", err)
	}
	if snap.SigmaMain != 0.7 {
		t.Errorf("snapshot sigma_main = %v, want 0.7", snap.SigmaMain)
	}

	resp = postJSON(t, ts.URL+"/api/trials/end", `{"trial_id": "`+trial.TrialID+`"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end trial status = %d, want 200", resp.StatusCode)
	}

	var ranking trialdb.Ranking
	resp = postJSON(t, ts.URL+"/api/rankings", `{"trial_id": "`+trial.TrialID+`", "rank": 1, "note": "clean sweep"}`, &ranking)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ranking status = %d, want 200", resp.StatusCode)
	}
	if ranking.Rank != 1 || ranking.Note != "clean sweep" {
		t.Errorf("ranking = %+v, want rank 1 with note", ranking)
	}

	var got struct {
		Trials []trialdb.Trial `json:"trials"`
	}
	getJSON(t, ts.URL+"/api/sessions?id="+session.SessionID, &got)
	if len(got.Trials) != 1 || got.Trials[0].EndedAt == nil {
		t.Errorf("session trials = %+v, want one ended trial", got.Trials)
	}
}

func TestEndUnknownTrial(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/trials/end", `{"trial_id": "nope"}`, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStoreEndpointsWithoutStore(t *testing.T) {
	renderer := render.New(32, render.GroupVest, nopSink{})
	ts := httptest.NewServer(NewServer(renderer, nil, nil).ServeMux())
	defer ts.Close()

	for _, ep := range []string{"/api/sessions", "/api/trials/start", "/api/trials/end", "/api/rankings"} {
		resp := postJSON(t, ts.URL+ep, `{}`, nil)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", ep, resp.StatusCode)
		}
	}
}

func TestCommandPassthrough(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.PostForm(ts.URL+"/command", url.Values{"command": {"STATUS"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestCommandWithoutVest(t *testing.T) {
	renderer := render.New(32, render.GroupVest, nopSink{})
	ts := httptest.NewServer(NewServer(renderer, nil, nil).ServeMux())
	defer ts.Close()

	resp, err := http.PostForm(ts.URL+"/command", url.Values{"command": {"STATUS"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}
