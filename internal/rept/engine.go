package rept

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// SimulationID is a unique identifier for a simulation instance.
type SimulationID string

// Engine is one independent reptation simulation: the quenched
// obstacle field, the chain population, the occupancy ledger, the
// initial-configuration snapshot and the Monte Carlo counters, all
// sharing one lifecycle. All mutation happens under the write lock;
// moves are serialized because excluded-volume correctness depends on
// two chains never racing for the same vacated site.
type Engine struct {
	mu      sync.RWMutex
	cfg     SimulationConfig
	runtime RuntimeConfig
	rand    *rand.Rand
	logger  Logger
	simID   SimulationID

	chains    []Chain
	obstacles map[Site]struct{}
	occupied  occupancy

	// initialR0 holds each chain's unwrapped end-to-end vector
	// captured at reset; initialR0SqSum is the matching sum of
	// squared magnitudes used to normalize the autocorrelation.
	initialR0      []Vec
	initialR0SqSum float64

	steps           int64
	successfulMoves int64
	attemptedMoves  int64

	history  *history
	notifier *NotificationManager

	stopCh    chan struct{}
	isRunning bool
}

// moveOutcome classifies a single reptation attempt.
type moveOutcome int

const (
	moveSkipped moveOutcome = iota
	moveRejected
	moveAccepted
)

// NewEngine validates the configuration, builds an engine and runs
// its first initialization.
func NewEngine(cfg SimulationConfig, rt RuntimeConfig) (*Engine, error) {
	return NewEngineWithLogger(cfg, rt, NewNoOpLogger())
}

// NewEngineWithLogger is NewEngine with an injectable logger.
func NewEngineWithLogger(cfg SimulationConfig, rt RuntimeConfig, logger Logger) (*Engine, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if err := ValidateRuntimeConfig(rt); err != nil {
		return nil, err
	}
	if cfg.GrowthRetries == 0 {
		cfg.GrowthRetries = DefaultGrowthRetries
	}
	if logger == nil {
		logger = NewNoOpLogger()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	e := &Engine{
		cfg:     cfg,
		runtime: rt,
		rand:    rand.New(rand.NewSource(seed)),
		logger:  logger,
		history: newHistory(),
		stopCh:  make(chan struct{}),
	}
	if err := e.Reset(); err != nil {
		return nil, err
	}
	return e, nil
}

// SetSimulationID tags events emitted by this engine.
func (e *Engine) SetSimulationID(id SimulationID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.simID = id
}

// SetNotificationManager attaches the event fan-out used for sampled
// stats events. Pass nil to detach.
func (e *Engine) SetNotificationManager(nm *NotificationManager) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifier = nm
}

// Reset discards and regenerates the obstacle field, the chain
// population, the occupancy ledger and the initial snapshot, and
// zeroes the counters. Under RequireFullPopulation a population
// smaller than the configured chain count is an error; otherwise it
// is a degraded outcome observable through PopulationSize.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resetLocked()
}

func (e *Engine) resetLocked() error {
	e.steps = 0
	e.successfulMoves = 0
	e.attemptedMoves = 0
	e.chains = nil
	e.occupied = make(occupancy)
	e.initialR0 = nil
	e.initialR0SqSum = 0
	e.history.reset()

	L := e.cfg.LatticeSize
	e.obstacles = placeObstacles(e.rand, L, e.cfg.ObstacleConcentration)

	for slot := 0; slot < e.cfg.NumChains; slot++ {
		chain, ok := e.growChain()
		if !ok {
			if e.cfg.RequireFullPopulation {
				return fmt.Errorf("chain slot %d exhausted %d growth retries", slot, e.cfg.GrowthRetries)
			}
			e.logger.Warnf("chain slot %d exhausted %d growth retries, continuing with smaller population", slot, e.cfg.GrowthRetries)
			continue
		}
		e.chains = append(e.chains, chain)
	}

	for _, chain := range e.chains {
		r0 := chain.EndToEnd(L)
		e.initialR0 = append(e.initialR0, r0)
		e.initialR0SqSum += float64(r0.SqMagnitude())
	}

	e.logger.Infof("simulation initialized: lattice=%d chains=%d/%d length=%d obstacles=%d",
		L, len(e.chains), e.cfg.NumChains, e.cfg.ChainLength, len(e.obstacles))
	return nil
}

// isBlocked reports whether a site can receive a segment: obstacles
// and any currently occupied site block placement.
func (e *Engine) isBlocked(s Site) bool {
	if _, obstacle := e.obstacles[s]; obstacle {
		return true
	}
	return e.occupied.count(s) >= 1
}

// growChain attempts one chain slot under the grow-or-retry policy.
// A walk that traps before reaching the target length rolls back its
// ledger increments and restarts from a fresh random site, so every
// committed chain has exactly the configured length.
func (e *Engine) growChain() (Chain, bool) {
	L := e.cfg.LatticeSize
	N := e.cfg.ChainLength

	for attempt := 0; attempt < e.cfg.GrowthRetries; attempt++ {
		start := Site{X: e.rand.Intn(L), Y: e.rand.Intn(L)}
		if e.isBlocked(start) {
			continue
		}

		chain := make(Chain, 1, N)
		chain[0] = start
		e.occupied.increment(start)

		trapped := false
		for len(chain) < N {
			free := make([]Site, 0, 4)
			for _, nb := range Neighbors(chain[len(chain)-1], L) {
				if !e.isBlocked(nb) {
					free = append(free, nb)
				}
			}
			if len(free) == 0 {
				trapped = true
				break
			}
			next := free[e.rand.Intn(len(free))]
			chain = append(chain, next)
			e.occupied.increment(next)
		}

		if !trapped {
			return chain, true
		}
		for _, s := range chain {
			e.occupied.decrement(s)
		}
	}
	return nil, false
}

// Step performs one ensemble sweep: max(1, NumChains) independent
// move attempts, each on a uniformly chosen chain. The sweep counter
// increments once per sweep. Step is a no-op once the sweep budget is
// reached or when the population is empty.
func (e *Engine) Step() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stepLocked()
}

// StepN runs n sweeps in one lock acquisition. Batching is purely a
// throughput concern: n batched sweeps are observably identical to n
// single sweeps.
func (e *Engine) StepN(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i < n; i++ {
		e.stepLocked()
	}
}

func (e *Engine) stepLocked() {
	if e.steps >= e.runtime.MaxSteps {
		return
	}
	if len(e.chains) == 0 {
		return
	}

	attempts := e.cfg.NumChains
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		switch e.reptate() {
		case moveAccepted:
			e.attemptedMoves++
			e.successfulMoves++
		case moveRejected:
			e.attemptedMoves++
		case moveSkipped:
			// Undersized chain, no counter movement.
		}
	}
	e.steps++

	if e.steps%e.runtime.SampleEvery == 0 || e.steps >= e.runtime.MaxSteps {
		e.sampleLocked()
	}
}

// sampleLocked records a history point and fans out a stats event.
func (e *Engine) sampleLocked() {
	stats := e.computeStats()
	e.history.append(Sample{
		Step:            stats.Steps,
		RMSEndToEnd:     stats.RMSEndToEnd,
		Autocorrelation: stats.Autocorrelation,
		AcceptanceRatio: stats.AcceptanceRatio,
	})
	if e.notifier != nil {
		e.notifier.Enqueue(StatsEvent{
			SimulationID: e.simID,
			Timestamp:    time.Now().Unix(),
			Stats:        stats,
			Chains:       e.chainsCopyLocked(),
		})
	}
}

// reptate performs a single move attempt: pick a chain and an end
// uniformly, collect the valid destinations of that end, and slide
// the chain into one of them.
func (e *Engine) reptate() moveOutcome {
	idx := e.rand.Intn(len(e.chains))
	chain := e.chains[idx]
	if len(chain) < 2 {
		return moveSkipped
	}

	fromHead := e.rand.Intn(2) == 0
	var active, vacating Site
	if fromHead {
		active, vacating = chain[0], chain[len(chain)-1]
	} else {
		active, vacating = chain[len(chain)-1], chain[0]
	}

	valid := e.validDestinations(active, vacating)
	if len(valid) == 0 {
		return moveRejected
	}

	target := valid[e.rand.Intn(len(valid))]
	e.propagate(idx, fromHead, target)
	return moveAccepted
}

// validDestinations returns the neighbors of active that the chosen
// end may hop into. A destination is valid when it is not an obstacle
// and is either empty or is the vacating end's own site holding
// exactly the one segment about to leave. The explicit vacated-site
// predicate lets a chain reptate into the site its opposite end frees
// in the same move.
func (e *Engine) validDestinations(active, vacating Site) []Site {
	valid := make([]Site, 0, 4)
	for _, nb := range Neighbors(active, e.cfg.LatticeSize) {
		if _, obstacle := e.obstacles[nb]; obstacle {
			continue
		}
		switch count := e.occupied.count(nb); {
		case count == 0:
			valid = append(valid, nb)
		case nb == vacating && count == 1:
			valid = append(valid, nb)
		}
	}
	return valid
}

// propagate applies an accepted move atomically: the vacating end's
// ledger entry is released, the chain slides toward the target, and
// the target's ledger entry is taken. Length is conserved.
func (e *Engine) propagate(idx int, fromHead bool, target Site) {
	chain := e.chains[idx]
	if fromHead {
		e.occupied.decrement(chain[len(chain)-1])
		copy(chain[1:], chain[:len(chain)-1])
		chain[0] = target
	} else {
		e.occupied.decrement(chain[0])
		copy(chain[:len(chain)-1], chain[1:])
		chain[len(chain)-1] = target
	}
	e.occupied.increment(target)
}

// Run starts a background loop that performs StepsPerTick sweeps per
// ticker fire until Stop is called or the sweep budget is exhausted.
// It can be called again after Stop to restart.
func (e *Engine) Run(interval time.Duration) {
	e.mu.Lock()
	if e.isRunning {
		e.mu.Unlock()
		return
	}
	stopCh := make(chan struct{})
	e.stopCh = stopCh
	e.isRunning = true
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.mu.Lock()
				for i := 0; i < e.runtime.StepsPerTick && e.steps < e.runtime.MaxSteps; i++ {
					e.stepLocked()
				}
				done := e.steps >= e.runtime.MaxSteps
				e.mu.Unlock()
				if done {
					e.Stop()
					return
				}
			case <-stopCh:
				// Stop already cleared the running flag; a restarted
				// loop owns its own channel.
				return
			}
		}
	}()
}

// Stop halts a background Run. Run can be called again afterwards.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.isRunning {
		return
	}
	e.isRunning = false
	close(e.stopCh)
}

// IsRunning reports whether a background Run loop is active.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isRunning
}

// UpdateRuntime replaces the runtime-tunable parameters without
// touching geometry or counters.
func (e *Engine) UpdateRuntime(rt RuntimeConfig) error {
	if err := ValidateRuntimeConfig(rt); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runtime = rt
	return nil
}

// Config returns the structural configuration.
func (e *Engine) Config() SimulationConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Runtime returns the current runtime parameters.
func (e *Engine) Runtime() RuntimeConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.runtime
}

// Chains returns a read-only copy of the population.
func (e *Engine) Chains() []Chain {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.chainsCopyLocked()
}

func (e *Engine) chainsCopyLocked() []Chain {
	out := make([]Chain, len(e.chains))
	for i, c := range e.chains {
		out[i] = c.clone()
	}
	return out
}

// Obstacles returns a copy of the quenched obstacle set.
func (e *Engine) Obstacles() []Site {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Site, 0, len(e.obstacles))
	for s := range e.obstacles {
		out = append(out, s)
	}
	return out
}

// PopulationSize returns the number of chains that actually grew to
// full length. It can be below the configured chain count when
// growth retries were exhausted.
func (e *Engine) PopulationSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.chains)
}

// Steps returns the sweep counter.
func (e *Engine) Steps() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.steps
}

// Stats derives the current statistics record. It is read-only and
// idempotent between sweeps.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.computeStats()
}

// History returns a copy of the downsampled statistics series.
func (e *Engine) History() []Sample {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history.snapshot()
}
