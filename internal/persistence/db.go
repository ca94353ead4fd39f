// Package persistence provides SQLite-based storage for runs, population
// histories, and position snapshots.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/gridpop/internal/engine"
	"github.com/talgya/gridpop/internal/world"
)

// ErrNotFound is returned when a run or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Run is the stored record of one simulation.
type Run struct {
	ID         string    `db:"id" json:"id"`
	Variant    string    `db:"variant" json:"variant"`
	Seed       int64     `db:"seed" json:"seed"`
	Steps      int       `db:"steps" json:"steps"`
	Final      int       `db:"final_population" json:"final_population"`
	Capacity   int       `db:"capacity" json:"capacity"`
	ConfigJSON string    `db:"config_json" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Config decodes the stored run configuration.
func (r Run) Config() (engine.Config, error) {
	var cfg engine.Config
	if err := json.Unmarshal([]byte(r.ConfigJSON), &cfg); err != nil {
		return engine.Config{}, fmt.Errorf("decode config for run %s: %w", r.ID, err)
	}
	return cfg, nil
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		variant TEXT NOT NULL,
		seed INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		final_population INTEGER NOT NULL,
		capacity INTEGER NOT NULL DEFAULT 0,
		config_json TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS history (
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		population INTEGER NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		points_json TEXT NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun inserts or replaces a run record.
func (db *DB) SaveRun(r Run) error {
	return db.inTx(func(tx *sqlx.Tx) error { return saveRun(tx, r) })
}

func saveRun(tx *sqlx.Tx, r Run) error {
	_, err := tx.NamedExec(`INSERT OR REPLACE INTO runs
		(id, variant, seed, steps, final_population, capacity, config_json, created_at)
		VALUES (:id, :variant, :seed, :steps, :final_population, :capacity, :config_json, :created_at)`, r)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

// inTx runs fn in a transaction, committing only if fn succeeds.
func (db *DB) inTx(fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// GetRun loads a run record.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// RecentRuns returns the most recent runs, newest first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY created_at DESC, id LIMIT ?", limit)
	return runs, err
}

// SaveHistory writes a run's population series (full replace).
func (db *DB) SaveHistory(runID string, history []int) error {
	return db.inTx(func(tx *sqlx.Tx) error { return saveHistory(tx, runID, history) })
}

func saveHistory(tx *sqlx.Tx, runID string, history []int) error {
	if _, err := tx.Exec("DELETE FROM history WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := tx.Preparex("INSERT INTO history (run_id, step, population) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for step, pop := range history {
		if _, err := stmt.Exec(runID, step, pop); err != nil {
			return fmt.Errorf("insert history %s step %d: %w", runID, step, err)
		}
	}
	return nil
}

// LoadHistory returns a run's population series ordered by step.
func (db *DB) LoadHistory(runID string) ([]int, error) {
	var history []int
	err := db.conn.Select(&history, "SELECT population FROM history WHERE run_id = ? ORDER BY step", runID)
	return history, err
}

// SaveSnapshots writes a run's snapshots (full replace).
func (db *DB) SaveSnapshots(runID string, snaps []engine.Snapshot) error {
	return db.inTx(func(tx *sqlx.Tx) error { return saveSnapshots(tx, runID, snaps) })
}

func saveSnapshots(tx *sqlx.Tx, runID string, snaps []engine.Snapshot) error {
	if _, err := tx.Exec("DELETE FROM snapshots WHERE run_id = ?", runID); err != nil {
		return err
	}

	for _, s := range snaps {
		pointsJSON, err := json.Marshal(s.Points)
		if err != nil {
			return fmt.Errorf("encode snapshot %d: %w", s.Step, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO snapshots (run_id, step, points_json) VALUES (?, ?, ?)",
			runID, s.Step, string(pointsJSON),
		); err != nil {
			return fmt.Errorf("insert snapshot %s step %d: %w", runID, s.Step, err)
		}
	}
	return nil
}

// LoadSnapshot returns the snapshot recorded for a run at step.
func (db *DB) LoadSnapshot(runID string, step uint64) (engine.Snapshot, error) {
	var pointsJSON string
	err := db.conn.Get(&pointsJSON, "SELECT points_json FROM snapshots WHERE run_id = ? AND step = ?", runID, step)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Snapshot{}, fmt.Errorf("snapshot %s step %d: %w", runID, step, ErrNotFound)
	}
	if err != nil {
		return engine.Snapshot{}, err
	}

	var points []world.Point
	if err := json.Unmarshal([]byte(pointsJSON), &points); err != nil {
		return engine.Snapshot{}, fmt.Errorf("decode snapshot %s step %d: %w", runID, step, err)
	}
	return engine.Snapshot{Step: step, Points: points}, nil
}

// SnapshotSteps lists the steps that have stored snapshots for a run.
func (db *DB) SnapshotSteps(runID string) ([]uint64, error) {
	var steps []uint64
	err := db.conn.Select(&steps, "SELECT step FROM snapshots WHERE run_id = ? ORDER BY step", runID)
	return steps, err
}

// SaveSimulation stores a finished or in-progress simulation under runID.
// The run record, history and snapshots are written in one transaction.
func (db *DB) SaveSimulation(runID string, sim *engine.Simulation) error {
	history := sim.History()
	snaps := sim.Snapshots()
	slog.Info("saving run", "run_id", runID, "steps", len(history)-1, "snapshots", len(snaps))

	cfgJSON, err := json.Marshal(sim.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	run := Run{
		ID:         runID,
		Variant:    sim.Config.Variant,
		Seed:       sim.Seed,
		Steps:      len(history) - 1,
		Final:      history[len(history)-1],
		Capacity:   sim.Capacity(),
		ConfigJSON: string(cfgJSON),
		CreatedAt:  time.Now().UTC(),
	}

	if err := db.saveAll(run, history, snaps); err != nil {
		return err
	}
	slog.Info("run saved", "run_id", runID)
	return nil
}

func (db *DB) saveAll(run Run, history []int, snaps []engine.Snapshot) error {
	return db.inTx(func(tx *sqlx.Tx) error {
		if err := saveRun(tx, run); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		if err := saveHistory(tx, run.ID, history); err != nil {
			return fmt.Errorf("save history: %w", err)
		}
		if err := saveSnapshots(tx, run.ID, snaps); err != nil {
			return fmt.Errorf("save snapshots: %w", err)
		}
		return nil
	})
}
