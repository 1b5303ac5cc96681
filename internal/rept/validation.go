package rept

import (
	"fmt"
	"strings"
)

// ValidationError collects multiple validation issues
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid config: unknown validation error"
	}
	if len(e.Issues) == 1 {
		return e.Issues[0]
	}
	return "config validation errors: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Add(issue string) {
	e.Issues = append(e.Issues, issue)
}

func (e *ValidationError) HasIssues() bool {
	return len(e.Issues) > 0
}

// ValidateConfig rejects configurations that could never host a
// simulation. Errors are caught here, at configuration time, never
// mid-simulation.
func ValidateConfig(cfg SimulationConfig) error {
	err := &ValidationError{}

	if cfg.LatticeSize < 2 {
		err.Add(fmt.Sprintf("lattice size must be at least 2, got %d", cfg.LatticeSize))
	}
	if cfg.NumChains < 1 {
		err.Add(fmt.Sprintf("number of chains must be at least 1, got %d", cfg.NumChains))
	}
	if cfg.ChainLength < 2 {
		err.Add(fmt.Sprintf("chain length must be at least 2, got %d", cfg.ChainLength))
	}
	if cfg.ObstacleConcentration < 0 || cfg.ObstacleConcentration >= 1 {
		err.Add(fmt.Sprintf("obstacle concentration must be in [0, 1), got %g", cfg.ObstacleConcentration))
	}
	if cfg.GrowthRetries < 0 {
		err.Add(fmt.Sprintf("growth retries must not be negative, got %d", cfg.GrowthRetries))
	}

	// Guard against a fully blocked lattice even when the
	// concentration passes the range check above.
	if cfg.LatticeSize >= 2 && cfg.ObstacleConcentration >= 0 {
		total := cfg.LatticeSize * cfg.LatticeSize
		if int(float64(total)*cfg.ObstacleConcentration) >= total {
			err.Add("obstacle concentration leaves no free site on the lattice")
		}
	}

	if err.HasIssues() {
		return err
	}
	return nil
}

// ValidateRuntimeConfig checks the runtime-tunable parameters.
func ValidateRuntimeConfig(rt RuntimeConfig) error {
	err := &ValidationError{}

	if rt.MaxSteps < 0 {
		err.Add(fmt.Sprintf("max steps must not be negative, got %d", rt.MaxSteps))
	}
	if rt.StepsPerTick < 1 {
		err.Add(fmt.Sprintf("steps per tick must be at least 1, got %d", rt.StepsPerTick))
	}
	if rt.SampleEvery < 1 {
		err.Add(fmt.Sprintf("sample interval must be at least 1, got %d", rt.SampleEvery))
	}

	if err.HasIssues() {
		return err
	}
	return nil
}
