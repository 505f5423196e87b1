// Command pedsim runs the pedestrian simulation: it generates a city layout,
// populates it, ticks the crowd at a fixed rate, records run history, and
// serves an inspection API.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/talgya/pedsim/internal/api"
	"github.com/talgya/pedsim/internal/config"
	"github.com/talgya/pedsim/internal/engine"
	"github.com/talgya/pedsim/internal/persistence"
	"github.com/talgya/pedsim/internal/world"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default $"+config.EnvConfig+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("pedsim starting", "seed", cfg.Seed, "peds", humanize.Comma(int64(cfg.Peds.Count)))

	// ── World layout (deterministic from seed) ───────────────────────
	layout := world.Generate(cfg.GenConfig())
	slog.Info("city layout generated",
		"cities", layout.NumCities(),
		"plots", layout.NumPlots(),
		"buildings", humanize.Comma(int64(len(layout.Buildings()))),
	)

	// ── Pedestrians ───────────────────────────────────────────────────
	mgr := engine.NewManager(layout, cfg.Seed)
	mgr.Init(cfg.Peds.Count, cfg.Seed, cfg.SpawnConfig())
	if err := mgr.CheckIndex(); err != nil {
		slog.Error("spatial index inconsistent after init", "error", err)
		os.Exit(1)
	}
	sim := engine.NewSimulation(layout, mgr)

	// ── Run history ───────────────────────────────────────────────────
	var (
		db      *persistence.DB
		runID   = "local"
		tickLog *persistence.TickLog
		pending []engine.TickReport
	)
	if cfg.Storage.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
			slog.Error("failed to create data dir", "error", err)
			os.Exit(1)
		}
		db, err = persistence.Open(cfg.Storage.DBPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database opened", "path", cfg.Storage.DBPath)

		run, err := db.StartRun(cfg.Seed, mgr.Len(), cfg)
		if err != nil {
			slog.Error("failed to record run", "error", err)
			os.Exit(1)
		}
		runID = run.ID
	}
	if cfg.Storage.TickLogDir != "" {
		tickLog, err = persistence.OpenTickLog(cfg.Storage.TickLogDir, runID)
		if err != nil {
			slog.Error("failed to open tick log", "error", err)
			os.Exit(1)
		}
		defer tickLog.Close()
		slog.Info("tick log opened", "path", tickLog.Path())
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.SetSpeed(cfg.Engine.Speed)
	eng.Interval = cfg.TickInterval()
	eng.ReportEvery = cfg.Engine.ReportEvery

	hub := api.NewHub()

	eng.OnTick = func(tick uint64) engine.TickReport {
		rep := sim.Step(tick)
		if tickLog != nil {
			if err := tickLog.Write(rep); err != nil {
				slog.Error("tick log write failed", "tick", tick, "error", err)
			}
		}
		if db != nil {
			pending = append(pending, rep)
		}
		return rep
	}
	eng.OnReport = func(rep engine.TickReport) {
		slog.Info("tick report",
			"tick", humanize.Comma(int64(rep.Tick)),
			"alive", humanize.Comma(int64(rep.Alive)),
			"moving", humanize.Comma(int64(rep.Moving)),
			"collisions", humanize.Comma(int64(rep.Collisions)),
			"ped_collisions", humanize.Comma(int64(rep.PedCollisions)),
			"arrivals", rep.Arrivals,
			"partial_routes", rep.PartialRoutes,
			"no_routes", rep.NoRoutes,
			"stuck", rep.Stuck,
			"destroyed", rep.Destroyed,
			"digest", fmt.Sprintf("%016x", rep.Digest),
		)
		hub.Broadcast(rep)
		if db != nil {
			if err := db.SaveReports(runID, pending); err != nil {
				slog.Error("report save failed", "error", err)
			}
			pending = pending[:0]
			if err := db.SaveMeta("last_tick", strconv.FormatUint(rep.Tick, 10)); err != nil {
				slog.Error("save meta failed", "error", err)
			}
		}
		if tickLog != nil {
			if err := tickLog.Flush(); err != nil {
				slog.Error("tick log flush failed", "error", err)
			}
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.AdminKey == "" {
		slog.Warn(config.EnvAdminKey + " not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Sim:       sim,
		Eng:       eng,
		DB:        db,
		RunID:     runID,
		Port:      cfg.API.Port,
		AdminKey:  cfg.API.AdminKey,
		AdminRate: cfg.API.AdminRate,
		Hub:       hub,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\n%s pedestrians walking %d plots across %d cities.\n",
		humanize.Comma(int64(mgr.Len())), layout.NumPlots(), layout.NumCities())
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run()

	if db != nil && len(pending) > 0 {
		if err := db.SaveReports(runID, pending); err != nil {
			slog.Error("final report save failed", "error", err)
		}
	}
	fmt.Printf("Simulation stopped after %s ticks. Run %s.\n", humanize.Comma(int64(eng.Tick())), runID)
}
