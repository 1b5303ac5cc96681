package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"reptlab/internal/narrate"
	"reptlab/internal/rept"
	"reptlab/internal/storage"
)

func main() {
	var (
		latticeSize   = flag.Int("lattice", 50, "lattice side length L")
		numChains     = flag.Int("chains", 15, "number of chains")
		chainLength   = flag.Int("length", 20, "segments per chain")
		concentration = flag.Float64("obstacles", 0.12, "obstacle concentration in [0,1)")
		seed          = flag.Int64("seed", 0, "RNG seed (0 seeds from the clock)")
		sweeps        = flag.Int64("sweeps", 10000, "number of ensemble sweeps to run")
		sampleEvery   = flag.Int64("sample-every", 100, "sweep interval between history samples")
		dbPath        = flag.String("db", "", "optional SQLite path to archive the run")
		withAnalysis  = flag.Bool("analyze", false, "narrate the results via the text-generation service")
	)
	flag.Parse()

	cfg := rept.SimulationConfig{
		LatticeSize:           *latticeSize,
		NumChains:             *numChains,
		ChainLength:           *chainLength,
		ObstacleConcentration: *concentration,
		Seed:                  *seed,
	}
	runtime := rept.RuntimeConfig{
		MaxSteps:     *sweeps,
		StepsPerTick: rept.DefaultStepsPerTick,
		SampleEvery:  *sampleEvery,
	}

	engine, err := rept.NewEngine(cfg, runtime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if got := engine.PopulationSize(); got < cfg.NumChains {
		fmt.Fprintf(os.Stderr, "warning: only %d of %d chains could be grown\n", got, cfg.NumChains)
	}

	if err := runToBudget(engine, *sweeps); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	stats := engine.Stats()
	fmt.Println(rept.FormatReport(cfg, stats))

	if *dbPath != "" {
		if err := archiveRun(*dbPath, cfg, stats, engine.History()); err != nil {
			fmt.Fprintf(os.Stderr, "error archiving run: %v\n", err)
			os.Exit(1)
		}
	}

	if *withAnalysis {
		printAnalysis(cfg, stats)
	}
}

// runToBudget advances the engine until the sweep budget is reached.
// Sweeps over an empty population never advance the counter, so that
// case is an error instead of a spin that can never finish.
func runToBudget(engine *rept.Engine, sweeps int64) error {
	if engine.PopulationSize() == 0 {
		return fmt.Errorf("no chains could be grown on this lattice, nothing to simulate")
	}
	for engine.Steps() < sweeps {
		engine.Step()
	}
	return nil
}

func archiveRun(dbPath string, cfg rept.SimulationConfig, stats rept.Stats, samples []rept.Sample) error {
	store := storage.NewRunStore(dbPath)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.Init(ctx); err != nil {
		return err
	}
	defer store.Close()

	id, err := store.SaveRun(ctx, storage.Run{Config: cfg, Stats: stats}, samples)
	if err != nil {
		return err
	}
	fmt.Printf("Run archived: %s\n", id)
	return nil
}

// printAnalysis degrades to a notice when the narration service is
// unreachable or unconfigured; the run's results are already printed.
func printAnalysis(cfg rept.SimulationConfig, stats rept.Stats) {
	key, err := narrate.LoadAPIKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis unavailable: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	text, err := narrate.NewClient(key).Describe(ctx, cfg, stats)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis unavailable: %v\n", err)
		return
	}
	fmt.Println("## Analysis")
	fmt.Println()
	fmt.Println(text)
}
