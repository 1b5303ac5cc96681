package rept

import (
	"fmt"
	"sync"
)

// SimulationManager hosts multiple independent simulations, each
// isolated from the others.
type SimulationManager struct {
	mu          sync.RWMutex
	simulations map[SimulationID]*Engine
	logger      Logger
}

// NewSimulationManager creates a new simulation manager.
func NewSimulationManager() *SimulationManager {
	return NewSimulationManagerWithLogger(NewNoOpLogger())
}

// NewSimulationManagerWithLogger is NewSimulationManager with an
// injectable logger.
func NewSimulationManagerWithLogger(logger Logger) *SimulationManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &SimulationManager{
		simulations: make(map[SimulationID]*Engine),
		logger:      logger,
	}
}

// CreateSimulation builds a new engine under the given ID.
// Returns an error if the ID is taken or the configuration is invalid.
func (sm *SimulationManager) CreateSimulation(id SimulationID, cfg SimulationConfig, rt RuntimeConfig) (*Engine, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.simulations[id]; exists {
		return nil, fmt.Errorf("simulation with id %s already exists", id)
	}

	engine, err := NewEngineWithLogger(cfg, rt, sm.logger)
	if err != nil {
		return nil, err
	}
	engine.SetSimulationID(id)
	sm.simulations[id] = engine
	return engine, nil
}

// GetSimulation retrieves an engine by ID.
func (sm *SimulationManager) GetSimulation(id SimulationID) (*Engine, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	engine, exists := sm.simulations[id]
	return engine, exists
}

// DeleteSimulation stops and removes an engine by ID.
func (sm *SimulationManager) DeleteSimulation(id SimulationID) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	engine, exists := sm.simulations[id]
	if !exists {
		return fmt.Errorf("simulation with id %s does not exist", id)
	}

	engine.Stop()
	delete(sm.simulations, id)
	return nil
}

// ListSimulations returns the IDs of all hosted simulations.
func (sm *SimulationManager) ListSimulations() []SimulationID {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	ids := make([]SimulationID, 0, len(sm.simulations))
	for id := range sm.simulations {
		ids = append(ids, id)
	}
	return ids
}
