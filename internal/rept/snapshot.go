package rept

import (
	"encoding/json"
	"fmt"
)

// Snapshot is a point-in-time capture of a simulation: configuration,
// counters, quenched obstacles, chain geometry and the initial
// end-to-end vectors. The occupancy ledger is not stored; it is
// derived from the chains on restore.
type Snapshot struct {
	SimulationID    SimulationID     `json:"simulation_id"`
	Config          SimulationConfig `json:"config"`
	Runtime         RuntimeConfig    `json:"runtime"`
	Steps           int64            `json:"steps"`
	SuccessfulMoves int64            `json:"successful_moves"`
	AttemptedMoves  int64            `json:"attempted_moves"`
	Obstacles       []Site           `json:"obstacles"`
	Chains          []Chain          `json:"chains"`
	InitialR0       []Vec            `json:"initial_r0"`
}

// Snapshot captures the engine's current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	obstacles := make([]Site, 0, len(e.obstacles))
	for s := range e.obstacles {
		obstacles = append(obstacles, s)
	}
	r0 := make([]Vec, len(e.initialR0))
	copy(r0, e.initialR0)

	return Snapshot{
		SimulationID:    e.simID,
		Config:          e.cfg,
		Runtime:         e.runtime,
		Steps:           e.steps,
		SuccessfulMoves: e.successfulMoves,
		AttemptedMoves:  e.attemptedMoves,
		Obstacles:       obstacles,
		Chains:          e.chainsCopyLocked(),
		InitialR0:       r0,
	}
}

// ValidateSnapshot checks that a snapshot describes a consistent
// simulation state:
//   - the configuration itself is valid
//   - every chain has the configured length and contiguous bonds
//   - no segment sits on an obstacle or outside the lattice
//   - no site hosts more than one segment
//   - the initial vectors match the population size
//   - the counters are sane
func ValidateSnapshot(snap Snapshot) error {
	if err := ValidateConfig(snap.Config); err != nil {
		return err
	}

	L := snap.Config.LatticeSize
	obstacles := make(map[Site]struct{}, len(snap.Obstacles))
	for _, s := range snap.Obstacles {
		if !inLattice(s, L) {
			return fmt.Errorf("obstacle %v outside lattice of size %d", s, L)
		}
		if _, dup := obstacles[s]; dup {
			return fmt.Errorf("duplicate obstacle at %v", s)
		}
		obstacles[s] = struct{}{}
	}

	// Excluded volume: a stored state holds no in-flight move, so
	// every site carries at most one segment across all chains.
	occupied := make(map[Site]struct{})

	for ci, chain := range snap.Chains {
		if len(chain) != snap.Config.ChainLength {
			return fmt.Errorf("chain %d has length %d, want %d", ci, len(chain), snap.Config.ChainLength)
		}
		for i, s := range chain {
			if !inLattice(s, L) {
				return fmt.Errorf("chain %d segment %d at %v outside lattice of size %d", ci, i, s, L)
			}
			if _, blocked := obstacles[s]; blocked {
				return fmt.Errorf("chain %d segment %d overlaps obstacle at %v", ci, i, s)
			}
			if i > 0 && !Adjacent(chain[i-1], s, L) {
				return fmt.Errorf("chain %d bond %d-%d is not lattice-adjacent", ci, i-1, i)
			}
			if _, taken := occupied[s]; taken {
				return fmt.Errorf("chain %d segment %d at %v overlaps another segment", ci, i, s)
			}
			occupied[s] = struct{}{}
		}
	}

	if len(snap.InitialR0) != len(snap.Chains) {
		return fmt.Errorf("snapshot has %d initial vectors for %d chains", len(snap.InitialR0), len(snap.Chains))
	}
	if snap.Steps < 0 || snap.SuccessfulMoves < 0 || snap.AttemptedMoves < 0 {
		return fmt.Errorf("snapshot counters must not be negative")
	}
	if snap.SuccessfulMoves > snap.AttemptedMoves {
		return fmt.Errorf("snapshot has more successes (%d) than attempts (%d)", snap.SuccessfulMoves, snap.AttemptedMoves)
	}
	return nil
}

func inLattice(s Site, L int) bool {
	return s.X >= 0 && s.X < L && s.Y >= 0 && s.Y < L
}

// RestoreSnapshot replaces the engine's state with the snapshot's.
// The occupancy ledger is rebuilt from the chain geometry so ledger
// and population can never come back desynchronized.
func (e *Engine) RestoreSnapshot(snap Snapshot) error {
	if err := ValidateSnapshot(snap); err != nil {
		return err
	}
	if err := ValidateRuntimeConfig(snap.Runtime); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg = snap.Config
	if e.cfg.GrowthRetries == 0 {
		e.cfg.GrowthRetries = DefaultGrowthRetries
	}
	e.runtime = snap.Runtime
	e.simID = snap.SimulationID
	e.steps = snap.Steps
	e.successfulMoves = snap.SuccessfulMoves
	e.attemptedMoves = snap.AttemptedMoves

	e.obstacles = make(map[Site]struct{}, len(snap.Obstacles))
	for _, s := range snap.Obstacles {
		e.obstacles[s] = struct{}{}
	}

	e.chains = make([]Chain, len(snap.Chains))
	e.occupied = make(occupancy)
	for i, chain := range snap.Chains {
		e.chains[i] = chain.clone()
		for _, s := range chain {
			e.occupied.increment(s)
		}
	}

	e.initialR0 = make([]Vec, len(snap.InitialR0))
	copy(e.initialR0, snap.InitialR0)
	e.initialR0SqSum = 0
	for _, r0 := range e.initialR0 {
		e.initialR0SqSum += float64(r0.SqMagnitude())
	}

	e.history.reset()
	return nil
}

// EncodeSnapshotJSON encodes a snapshot to JSON format.
func EncodeSnapshotJSON(snap Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshotJSON decodes a snapshot from JSON format.
func DecodeSnapshotJSON(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}
