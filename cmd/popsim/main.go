// Command popsim runs spatial population simulations and browses stored runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/gridpop/internal/api"
	"github.com/talgya/gridpop/internal/engine"
	"github.com/talgya/gridpop/internal/persistence"
	"github.com/talgya/gridpop/internal/stats"
	"github.com/talgya/gridpop/internal/watch"
)

const usage = `usage: popsim <command> [flags]

commands:
  run       run a simulation and save it
  runs      list stored runs
  history   print a stored run's population history
  presets   list starting presets
  serve     serve stored runs over HTTP
  watch     follow a live run started with run -serve
`

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(envOrDefault("POPSIM_LOG_LEVEL", "info")),
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "run":
		err = cmdRun(args)
	case "runs":
		err = cmdRuns(args)
	case "history":
		err = cmdHistory(args)
	case "presets":
		cmdPresets()
	case "serve":
		err = cmdServe(args)
	case "watch":
		err = cmdWatch(args)
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("popsim failed", "error", err)
		os.Exit(1)
	}
}

func openDB(path string) (*persistence.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("database opened", "path", path)
	return db, nil
}

func cmdRun(args []string) error {
	fs, f := newRunFlagSet()
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := buildConfig(fs, f)
	if err != nil {
		return err
	}

	sim, err := engine.NewSimulation(cfg)
	if err != nil {
		return err
	}
	runID := persistence.NewRunID()

	eng := engine.NewEngine(uint64(cfg.Steps))
	eng.Interval = f.interval
	eng.Attach(sim)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *persistence.DB
	if !f.noSave || f.serve {
		if db, err = openDB(f.dbPath); err != nil {
			return err
		}
		defer db.Close()
	}

	if f.serve {
		srv := (&api.Server{
			Sim:      sim,
			Eng:      eng,
			DB:       db,
			RunID:    runID,
			Port:     f.port,
			AdminKey: os.Getenv("POPSIM_ADMIN_KEY"),
		}).Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", f.port)
	}

	start := time.Now()
	if cfg.Steps > 0 {
		if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	elapsed := time.Since(start)

	history := sim.History()
	summary := stats.Summarize(history, sim.Capacity())
	st := sim.Stats()

	fmt.Printf("\n%s run, seed %d\n", cfg.Variant, sim.Seed)
	fmt.Printf("  steps:       %s (%s)\n", humanize.Comma(int64(summary.Steps)), elapsed.Round(time.Millisecond))
	fmt.Printf("  population:  %s -> %s (peak %s at step %d)\n",
		humanize.Comma(int64(summary.Initial)), humanize.Comma(int64(summary.Final)),
		humanize.Comma(int64(summary.Peak)), summary.PeakStep)
	fmt.Printf("  births:      %s\n", humanize.Comma(int64(st.TotalBirths)))
	fmt.Printf("  mean:        %s (sd %s)\n", humanize.FormatFloat("#,###.##", summary.Mean), humanize.FormatFloat("#,###.##", summary.StdDev))
	fmt.Printf("  growth rate: %.4f per step\n", summary.GrowthRate)
	if summary.Capacity > 0 {
		fmt.Printf("  capacity:    %s (half at %s, full at %s)\n", humanize.Comma(int64(summary.Capacity)),
			stepLabel(summary.StepsToHalf), stepLabel(summary.StepsToCapacity))
	}

	if !f.noSave {
		if err := db.SaveSimulation(runID, sim); err != nil {
			return err
		}
		fmt.Printf("  saved as:    %s\n", runID)
	}

	if f.serve && ctx.Err() == nil {
		fmt.Println("Run finished; still serving. Ctrl+C to exit.")
		<-ctx.Done()
	}
	return nil
}

func cmdRuns(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	dbPath := fs.String("db", envOrDefault("POPSIM_DB", "data/gridpop.db"), "sqlite database path")
	limit := fs.Int("limit", 20, "max runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.RecentRuns(*limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no stored runs")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %-9s seed=%-20d steps=%-6d final=%-8s %s\n",
			r.ID, r.Variant, r.Seed, r.Steps, humanize.Comma(int64(r.Final)), humanize.Time(r.CreatedAt))
	}
	return nil
}

func cmdHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	dbPath := fs.String("db", envOrDefault("POPSIM_DB", "data/gridpop.db"), "sqlite database path")
	every := fs.Int("every", 1, "print every n-th step")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("history: expected exactly one run id")
	}
	if *every < 1 {
		*every = 1
	}

	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	runID := fs.Arg(0)
	run, err := db.GetRun(runID)
	if err != nil {
		return err
	}
	history, err := db.LoadHistory(runID)
	if err != nil {
		return err
	}

	for step, pop := range history {
		if step%*every == 0 || step == len(history)-1 {
			fmt.Printf("%6d  %s\n", step, humanize.Comma(int64(pop)))
		}
	}
	s := stats.Summarize(history, run.Capacity)
	fmt.Printf("\npeak %s at step %d, mean %.2f, growth %.4f per step\n",
		humanize.Comma(int64(s.Peak)), s.PeakStep, s.Mean, s.GrowthRate)
	if s.Capacity > 0 {
		fmt.Printf("capacity %s, half at %s, full at %s\n",
			humanize.Comma(int64(s.Capacity)), stepLabel(s.StepsToHalf), stepLabel(s.StepsToCapacity))
	}
	return nil
}

func stepLabel(step int) string {
	if step < 0 {
		return "never"
	}
	return fmt.Sprintf("step %d", step)
}

func cmdPresets() {
	for _, p := range engine.Presets() {
		cfg := p.Config()
		fmt.Printf("%-16s %-9s %s\n", p.Name, cfg.Variant, p.Description)
	}
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	dbPath := fs.String("db", envOrDefault("POPSIM_DB", "data/gridpop.db"), "sqlite database path")
	port := fs.Int("port", envIntOrDefault("POPSIM_PORT", 8080), "HTTP port")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := (&api.Server{DB: db, Port: *port}).Start()
	fmt.Printf("API: http://localhost:%d/api/v1/runs (Ctrl+C to stop)\n", *port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func cmdWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	url := fs.String("url", fmt.Sprintf("http://localhost:%d", envIntOrDefault("POPSIM_PORT", 8080)), "popsim API base URL")
	every := fs.Duration("every", 2*time.Second, "poll interval")
	window := fs.Int("window", 20, "history entries used for the trend")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs := watch.NewObserver(*url)
	if err := obs.WaitReady(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(*every)
	defer ticker.Stop()
	for {
		o, err := obs.Observe(ctx)
		if err != nil {
			return err
		}
		h := watch.Triage(o, *window)
		fmt.Printf("step %-6d pop %-8s births %-6s trend %+6.1f%%  %s\n",
			o.Status.Stats.Step, humanize.Comma(int64(o.Status.Stats.Population)),
			humanize.Comma(int64(o.Status.Stats.Births)), h.Trend*100, h.Phase)
		if !o.Status.Running || h.Phase == watch.PhaseExtinct {
			fmt.Printf("run %s finished at step %d, peak %s\n",
				o.Status.RunID, o.Status.Stats.Step, humanize.Comma(int64(h.Summary.Peak)))
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
