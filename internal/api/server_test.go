package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/talgya/gridpop/internal/engine"
	"github.com/talgya/gridpop/internal/persistence"
	"github.com/talgya/gridpop/internal/stats"
)

func finishedSim(t *testing.T, steps int) (*engine.Simulation, *engine.Engine) {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.Steps = steps
	cfg.SnapshotEvery = 5
	sim, err := engine.NewSimulation(cfg)
	if err != nil {
		t.Fatalf("new simulation: %v", err)
	}
	eng := engine.NewEngine(uint64(steps))
	eng.Attach(sim)
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	return sim, eng
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatusAndHistory(t *testing.T) {
	sim, eng := finishedSim(t, 10)
	srv := &Server{Sim: sim, Eng: eng, RunID: "live"}
	h := srv.Handler()

	rec := get(t, h, "/api/v1/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code %d", rec.Code)
	}
	var status struct {
		RunID   string          `json:"run_id"`
		Running bool            `json:"running"`
		Stats   engine.SimStats `json:"stats"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.RunID != "live" || status.Running || status.Stats.Step != 10 {
		t.Fatalf("unexpected status %+v", status)
	}

	rec = get(t, h, "/api/v1/history")
	var body struct {
		History []int `json:"history"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(body.History) != 11 {
		t.Fatalf("expected 11 history entries, got %d", len(body.History))
	}

	rec = get(t, h, "/api/v1/summary")
	var sum stats.Summary
	if err := json.NewDecoder(rec.Body).Decode(&sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.Steps != 10 || sum.Initial != sim.Config.InitialPopulation {
		t.Fatalf("unexpected summary %+v", sum)
	}
	// 50x50 open grid, far from reached in ten steps.
	if sum.Capacity != 2500 || sum.StepsToHalf != -1 || sum.StepsToCapacity != -1 {
		t.Fatalf("unexpected capacity fields %+v", sum)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	sim, _ := finishedSim(t, 10)
	h := (&Server{Sim: sim}).Handler()

	tests := []struct {
		path string
		code int
	}{
		{"/api/v1/snapshot", http.StatusOK},
		{"/api/v1/snapshot?step=5", http.StatusOK},
		{"/api/v1/snapshot?step=3", http.StatusNotFound},
		{"/api/v1/snapshot?step=abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := get(t, h, tt.path); rec.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.code, rec.Code)
		}
	}

	rec := get(t, h, "/api/v1/snapshot?step=5")
	var snap engine.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Step != 5 || len(snap.Points) != sim.History()[5] {
		t.Fatalf("snapshot step %d has %d points, history says %d", snap.Step, len(snap.Points), sim.History()[5])
	}
}

func TestSnapshotRateLimited(t *testing.T) {
	sim, _ := finishedSim(t, 2)
	h := (&Server{Sim: sim, SnapshotLimit: 2}).Handler()

	for i := 0; i < 2; i++ {
		if rec := get(t, h, "/api/v1/snapshot"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec := get(t, h, "/api/v1/snapshot")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	// Status is not limited.
	if rec := get(t, h, "/api/v1/status"); rec.Code != http.StatusOK {
		t.Fatalf("status should not be limited, got %d", rec.Code)
	}
}

func TestStoredRuns(t *testing.T) {
	db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sim, _ := finishedSim(t, 10)
	runID := persistence.NewRunID()
	if err := db.SaveSimulation(runID, sim); err != nil {
		t.Fatalf("save: %v", err)
	}

	h := (&Server{DB: db}).Handler()

	rec := get(t, h, "/api/v1/runs")
	var list struct {
		Runs []persistence.Run `json:"runs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(list.Runs) != 1 || list.Runs[0].ID != runID {
		t.Fatalf("unexpected runs %+v", list.Runs)
	}

	rec = get(t, h, "/api/v1/runs/"+runID+"/history")
	var hist struct {
		History []int         `json:"history"`
		Summary stats.Summary `json:"summary"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&hist); err != nil {
		t.Fatalf("decode run history: %v", err)
	}
	if len(hist.History) != 11 || hist.Summary.Final != sim.History()[10] {
		t.Fatalf("unexpected run history %+v", hist)
	}
	if hist.Summary.Capacity != sim.Capacity() {
		t.Fatalf("stored summary capacity %d, want %d", hist.Summary.Capacity, sim.Capacity())
	}

	rec = get(t, h, "/api/v1/runs/"+runID)
	var detail struct {
		Run           persistence.Run `json:"run"`
		Config        engine.Config   `json:"config"`
		SnapshotSteps []uint64        `json:"snapshot_steps"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&detail); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if detail.Run.ID != runID || detail.Config.Steps != 10 {
		t.Fatalf("unexpected run detail %+v", detail)
	}
	if !reflect.DeepEqual(detail.SnapshotSteps, []uint64{0, 5, 10}) {
		t.Fatalf("expected snapshot steps [0 5 10], got %v", detail.SnapshotSteps)
	}

	tests := []struct {
		path string
		code int
	}{
		{"/api/v1/runs/" + runID, http.StatusOK},
		{"/api/v1/runs/" + runID + "/snapshot/10", http.StatusOK},
		{"/api/v1/runs/" + runID + "/snapshot/7", http.StatusNotFound},
		{"/api/v1/runs/missing", http.StatusNotFound},
		{"/api/v1/runs/missing/history", http.StatusNotFound},
		// Live routes need a simulation.
		{"/api/v1/status", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		if rec := get(t, h, tt.path); rec.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.code, rec.Code)
		}
	}
}

func TestStopRequiresAdminKey(t *testing.T) {
	eng := engine.NewEngine(0)

	tests := []struct {
		name string
		key  string
		auth string
		code int
	}{
		{"disabled", "", "Bearer x", http.StatusForbidden},
		{"missing token", "secret", "", http.StatusUnauthorized},
		{"wrong token", "secret", "Bearer nope", http.StatusUnauthorized},
		{"ok", "secret", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := (&Server{Eng: eng, AdminKey: tt.key}).Handler()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/stop", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
		})
	}
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("1.2.3.4") {
		t.Fatal("first request should pass")
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("second request should be limited")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatal("other IPs have their own bucket")
	}
	if got := rl.RetryAfter("1.2.3.4"); got != 61 {
		t.Fatalf("expected retry after 61s, got %d", got)
	}

	now = now.Add(time.Minute)
	if !rl.Allow("1.2.3.4") {
		t.Fatal("window reset should allow again")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := clientIP(req); got != "10.0.0.1" {
		t.Fatalf("expected remote host, got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected forwarded client, got %q", got)
	}
}
