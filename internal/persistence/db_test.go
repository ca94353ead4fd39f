package persistence

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/talgya/gridpop/internal/engine"
	"github.com/talgya/gridpop/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "gridpop.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestSaveSimulationRoundTrip(t *testing.T) {
	db := openTestDB(t)

	cfg := engine.DefaultConfig()
	cfg.Steps = 12
	cfg.SnapshotEvery = 4
	sim, err := engine.NewSimulation(cfg)
	if err != nil {
		t.Fatalf("new simulation: %v", err)
	}
	eng := engine.NewEngine(uint64(cfg.Steps))
	eng.Attach(sim)
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	runID := NewRunID()
	if err := db.SaveSimulation(runID, sim); err != nil {
		t.Fatalf("save simulation: %v", err)
	}

	run, err := db.GetRun(runID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Seed != sim.Seed || run.Steps != 12 || run.Variant != engine.VariantLattice {
		t.Fatalf("unexpected run record %+v", run)
	}
	stored, err := run.Config()
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if stored.Side != cfg.Side || stored.R != cfg.R {
		t.Fatalf("config mismatch: %+v", stored)
	}

	history, err := db.LoadHistory(runID)
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if !reflect.DeepEqual(history, sim.History()) {
		t.Fatalf("history mismatch:\n%v\n%v", history, sim.History())
	}
	if run.Final != history[len(history)-1] {
		t.Fatalf("final population %d does not match history", run.Final)
	}
	if run.Capacity != sim.Capacity() || run.Capacity == 0 {
		t.Fatalf("stored capacity %d, simulation reports %d", run.Capacity, sim.Capacity())
	}

	steps, err := db.SnapshotSteps(runID)
	if err != nil {
		t.Fatalf("snapshot steps: %v", err)
	}
	if !reflect.DeepEqual(steps, []uint64{0, 4, 8, 12}) {
		t.Fatalf("unexpected snapshot steps %v", steps)
	}
	snap, err := db.LoadSnapshot(runID, 8)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	want, _ := sim.SnapshotAt(8)
	if !reflect.DeepEqual(snap, want) {
		t.Fatalf("snapshot mismatch")
	}
}

func TestMissingRecordsReportNotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetRun("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for run, got %v", err)
	}
	if _, err := db.LoadSnapshot("missing", 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for snapshot, got %v", err)
	}
	history, err := db.LoadHistory("missing")
	if err != nil || len(history) != 0 {
		t.Fatalf("expected empty history, got %v %v", history, err)
	}
}

func TestFailedSaveLeavesNothingBehind(t *testing.T) {
	db := openTestDB(t)
	run := Run{ID: "r1", Variant: engine.VariantLattice, Steps: 1, Final: 2, ConfigJSON: "{}", CreatedAt: time.Now().UTC()}
	snaps := []engine.Snapshot{
		{Step: 0, Points: []world.Point{{X: 1, Y: 1}}},
		{Step: 1, Points: []world.Point{{X: math.NaN(), Y: 1}}},
	}

	if err := db.saveAll(run, []int{1, 2}, snaps); err == nil {
		t.Fatal("expected an error encoding a NaN position")
	}
	if _, err := db.GetRun("r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no run record after a failed save, got %v", err)
	}
	history, err := db.LoadHistory("r1")
	if err != nil || len(history) != 0 {
		t.Fatalf("expected no history after a failed save, got %v %v", history, err)
	}
	steps, err := db.SnapshotSteps("r1")
	if err != nil || len(steps) != 0 {
		t.Fatalf("expected no snapshots after a failed save, got %v %v", steps, err)
	}
}

func TestSaveHistoryReplaces(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveHistory("r1", []int{1, 2, 3}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveHistory("r1", []int{5, 6}); err != nil {
		t.Fatalf("save again: %v", err)
	}
	got, err := db.LoadHistory("r1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, []int{5, 6}) {
		t.Fatalf("expected replaced history, got %v", got)
	}
}

func TestRecentRunsLimit(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 3; i++ {
		r := Run{ID: NewRunID(), Variant: engine.VariantLattice, ConfigJSON: "{}", CreatedAt: time.Now().UTC()}
		if err := db.SaveRun(r); err != nil {
			t.Fatalf("save run: %v", err)
		}
	}
	runs, err := db.RecentRuns(2)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}
