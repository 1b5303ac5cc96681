package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"reptlab/internal/narrate"
	"reptlab/internal/rept"
	"reptlab/internal/storage"
)

func main() {
	cfg := loadServerConfig()
	logger := NewLogger(cfg.LogLevel)

	srv := NewServer(logger)

	// Optional run archive.
	if cfg.DBPath != "" {
		store := storage.NewRunStore(cfg.DBPath)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.Init(ctx); err != nil {
			cancel()
			logger.Errorf("Failed to open run archive at %s: %v", cfg.DBPath, err)
		} else {
			cancel()
			srv.SetStore(store)
			defer store.Close()
			logger.Infof("Run archive enabled: %s", cfg.DBPath)
		}
	}

	// Optional narration. A missing API key only disables the
	// endpoint; the simulation itself is unaffected.
	if key, err := narrate.LoadAPIKey(); err != nil {
		logger.Warnf("Narration disabled: %v", err)
	} else {
		opts := []narrate.Option{}
		if cfg.NarrateModel != "" {
			opts = append(opts, narrate.WithModel(cfg.NarrateModel))
		}
		srv.SetNarrator(narrate.NewClient(key, opts...))
		logger.Infof("Narration enabled")
	}

	// Optional initial simulation from a config file.
	if cfg.ConfigFile != "" {
		simCfg, runtime, err := loadInitialConfigFromFile(cfg.ConfigFile)
		if err != nil {
			logger.Errorf("Failed to load initial config from %s: %v", cfg.ConfigFile, err)
		} else if _, err := srv.createSimulation(rept.SimulationID(cfg.DefaultSimID), simCfg, runtime); err != nil {
			logger.Errorf("Failed to create initial simulation: %v", err)
		} else {
			logger.Infof("Initial simulation created: sim_id=%s", cfg.DefaultSimID)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/sims", srv.handleListSimulations)
	mux.HandleFunc("/sim/", srv.handleSim)
	mux.HandleFunc("/runs", srv.handleRuns)
	mux.HandleFunc("/runs/", srv.handleRuns)

	logger.Infof("reptlab-server listening on %s", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, mux))
}
