// Package api serves run outputs over HTTP for external renderers.
// GET endpoints are public and read-only. POST /api/v1/stop requires a
// bearer token.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/gridpop/internal/engine"
	"github.com/talgya/gridpop/internal/persistence"
	"github.com/talgya/gridpop/internal/stats"
)

// Server serves live and stored run data.
type Server struct {
	Sim      *engine.Simulation // Live run; may be nil when only browsing stored runs
	Eng      *engine.Engine
	DB       *persistence.DB // May be nil
	RunID    string          // ID the live run is saved under
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// SnapshotLimit caps snapshot requests per IP per minute (default 120).
	SnapshotLimit int
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	limit := s.SnapshotLimit
	if limit <= 0 {
		limit = 120
	}
	snapshotLimiter := NewRateLimiter(limit, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/history", s.handleHistory)
	mux.HandleFunc("GET /api/v1/summary", s.handleSummary)
	mux.HandleFunc("GET /api/v1/snapshot", RateLimitMiddleware(snapshotLimiter, s.handleSnapshot))

	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/history", s.handleRunHistory)
	mux.HandleFunc("GET /api/v1/runs/{id}/snapshot/{step}", RateLimitMiddleware(snapshotLimiter, s.handleRunSnapshot))

	mux.HandleFunc("POST /api/v1/stop", s.adminOnly(s.handleStop))

	return mux
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "db", s.DB != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no POPSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.AdminKey)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) requireLive(w http.ResponseWriter) bool {
	if s.Sim == nil {
		http.Error(w, "no live simulation", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireLive(w) {
		return
	}
	running := false
	if s.Eng != nil {
		running = s.Eng.Running()
	}
	writeJSON(w, map[string]any{
		"run_id":   s.RunID,
		"variant":  s.Sim.Config.Variant,
		"seed":     s.Sim.Seed,
		"running":  running,
		"capacity": s.Sim.Capacity(),
		"stats":    s.Sim.Stats(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireLive(w) {
		return
	}
	writeJSON(w, map[string]any{"history": s.Sim.History()})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !s.requireLive(w) {
		return
	}
	writeJSON(w, stats.Summarize(s.Sim.History(), s.Sim.Capacity()))
}

// handleSnapshot returns the latest positions, or a recorded step with ?step=.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.requireLive(w) {
		return
	}
	raw := r.URL.Query().Get("step")
	if raw == "" {
		writeJSON(w, s.Sim.Latest())
		return
	}
	step, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		http.Error(w, "invalid step", http.StatusBadRequest)
		return
	}
	snap, ok := s.Sim.SnapshotAt(step)
	if !ok {
		http.Error(w, "no snapshot for step", http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	runs, err := s.DB.RecentRuns(limit)
	if err != nil {
		slog.Error("list runs failed", "error", err)
		http.Error(w, "list runs failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"runs": runs})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	run, err := s.DB.GetRun(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	cfg, err := run.Config()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	steps, err := s.DB.SnapshotSteps(run.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, map[string]any{"run": run, "config": cfg, "snapshot_steps": steps})
}

func (s *Server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	id := r.PathValue("id")
	run, err := s.DB.GetRun(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	history, err := s.DB.LoadHistory(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"history": history,
		"summary": stats.Summarize(history, run.Capacity),
	})
}

func (s *Server) handleRunSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	step, err := strconv.ParseUint(r.PathValue("step"), 10, 64)
	if err != nil {
		http.Error(w, "invalid step", http.StatusBadRequest)
		return
	}
	snap, err := s.DB.LoadSnapshot(r.PathValue("id"), step)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "no engine", http.StatusServiceUnavailable)
		return
	}
	s.Eng.Stop()
	slog.Info("stop requested via API")
	writeJSON(w, map[string]any{"stopping": true})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	slog.Error("store error", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}
