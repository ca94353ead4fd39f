// Package watch follows a live run through its HTTP API.
// It polls status and history and classifies the run's phase.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/talgya/gridpop/internal/engine"
)

// Status mirrors GET /api/v1/status.
type Status struct {
	RunID    string          `json:"run_id"`
	Variant  string          `json:"variant"`
	Seed     int64           `json:"seed"`
	Running  bool            `json:"running"`
	Capacity int             `json:"capacity"`
	Stats    engine.SimStats `json:"stats"`
}

// Observation holds everything collected in one poll.
type Observation struct {
	Status  Status
	History []int
}

// Observer fetches run state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Observe fetches status and history.
func (o *Observer) Observe(ctx context.Context) (*Observation, error) {
	obs := &Observation{}
	if err := o.fetchJSON(ctx, "/api/v1/status", &obs.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	var body struct {
		History []int `json:"history"`
	}
	if err := o.fetchJSON(ctx, "/api/v1/history", &body); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	obs.History = body.History
	return obs, nil
}

// WaitReady polls the status endpoint with exponential backoff until it
// answers 200 or ctx is done.
func (o *Observer) WaitReady(ctx context.Context) error {
	backoff := 250 * time.Millisecond
	const maxBackoff = 10 * time.Second

	for {
		var st Status
		err := o.fetchJSON(ctx, "/api/v1/status", &st)
		if err == nil {
			slog.Debug("popsim API is ready", "url", o.BaseURL)
			return nil
		}
		slog.Info("popsim API not ready, retrying", "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
