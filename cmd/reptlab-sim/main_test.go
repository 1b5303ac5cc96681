package main

import (
	"testing"

	"reptlab/internal/rept"
)

func TestRunToBudget(t *testing.T) {
	cfg := rept.SimulationConfig{
		LatticeSize:           20,
		NumChains:             5,
		ChainLength:           10,
		ObstacleConcentration: 0.1,
		Seed:                  42,
	}
	engine, err := rept.NewEngine(cfg, rept.DefaultRuntimeConfig())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if err := runToBudget(engine, 50); err != nil {
		t.Fatalf("runToBudget failed: %v", err)
	}
	if got := engine.Steps(); got != 50 {
		t.Errorf("Expected 50 sweeps, got %d", got)
	}
}

func TestRunToBudget_EmptyPopulation(t *testing.T) {
	// 24 of 25 sites blocked: no chain can grow, the sweep counter can
	// never advance, and the loop must not be entered.
	cfg := rept.SimulationConfig{
		LatticeSize:           5,
		NumChains:             2,
		ChainLength:           2,
		ObstacleConcentration: 0.96,
		Seed:                  1,
	}
	engine, err := rept.NewEngine(cfg, rept.DefaultRuntimeConfig())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if engine.PopulationSize() != 0 {
		t.Fatalf("Expected empty population, got %d chains", engine.PopulationSize())
	}

	if err := runToBudget(engine, 50); err == nil {
		t.Error("Expected error for an empty population")
	}
}
