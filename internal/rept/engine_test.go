package rept

import (
	"math/rand"
	"reflect"
	"testing"
	"time"
)

func testConfig() SimulationConfig {
	return SimulationConfig{
		LatticeSize:           20,
		NumChains:             5,
		ChainLength:           10,
		ObstacleConcentration: 0.1,
		Seed:                  42,
	}
}

func testRuntime() RuntimeConfig {
	return RuntimeConfig{
		MaxSteps:     1000,
		StepsPerTick: 10,
		SampleEvery:  100,
	}
}

// checkInvariants verifies the structural invariants every sweep must
// preserve: chain length, bond adjacency, no obstacle overlap, and an
// occupancy ledger that exactly matches a recount of the chains.
func checkInvariants(t *testing.T, e *Engine) {
	t.Helper()
	L := e.cfg.LatticeSize
	recount := make(occupancy)

	for ci, chain := range e.chains {
		if len(chain) != e.cfg.ChainLength {
			t.Errorf("Chain %d has length %d, want %d", ci, len(chain), e.cfg.ChainLength)
		}
		for i, s := range chain {
			if !inLattice(s, L) {
				t.Errorf("Chain %d segment %d at %v is outside the lattice", ci, i, s)
			}
			if _, blocked := e.obstacles[s]; blocked {
				t.Errorf("Chain %d segment %d at %v overlaps an obstacle", ci, i, s)
			}
			if i > 0 && !Adjacent(chain[i-1], s, L) {
				t.Errorf("Chain %d bond %d-%d is not lattice-adjacent", ci, i-1, i)
			}
			recount.increment(s)
		}
	}

	if len(recount) != len(e.occupied) {
		t.Errorf("Ledger has %d entries, recount has %d", len(e.occupied), len(recount))
	}
	for s, n := range recount {
		if got := e.occupied.count(s); got != n {
			t.Errorf("Ledger count at %v is %d, recount is %d", s, got, n)
		}
	}
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.LatticeSize = 1
	if _, err := NewEngine(cfg, testRuntime()); err == nil {
		t.Error("Expected error for invalid config")
	}
}

func TestNewEngine_InvalidRuntime(t *testing.T) {
	rt := testRuntime()
	rt.SampleEvery = 0
	if _, err := NewEngine(testConfig(), rt); err == nil {
		t.Error("Expected error for invalid runtime config")
	}
}

func TestNewEngine_InitialInvariants(t *testing.T) {
	engine, err := NewEngine(testConfig(), testRuntime())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	checkInvariants(t, engine)

	if engine.PopulationSize() != 5 {
		t.Errorf("Expected 5 chains, got %d", engine.PopulationSize())
	}
	if engine.Steps() != 0 {
		t.Errorf("Expected 0 sweeps, got %d", engine.Steps())
	}
	wantObstacles := int(float64(20*20) * 0.1)
	if got := len(engine.obstacles); got != wantObstacles {
		t.Errorf("Expected %d obstacles, got %d", wantObstacles, got)
	}
}

func TestEngine_InvariantsSurviveSweeps(t *testing.T) {
	engine, err := NewEngine(testConfig(), testRuntime())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	for i := 0; i < 50; i++ {
		engine.StepN(10)
		checkInvariants(t, engine)
	}
}

func TestEngine_DeterministicReplay(t *testing.T) {
	cfg := testConfig()
	a, err := NewEngine(cfg, testRuntime())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	b, err := NewEngine(cfg, testRuntime())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	a.StepN(100)
	b.StepN(100)

	if !reflect.DeepEqual(a.Chains(), b.Chains()) {
		t.Error("Same seed produced different chain geometry after 100 sweeps")
	}
	if !reflect.DeepEqual(a.Stats(), b.Stats()) {
		t.Error("Same seed produced different statistics after 100 sweeps")
	}
}

func TestEngine_BatchedSweepsMatchSingleSweeps(t *testing.T) {
	a, _ := NewEngine(testConfig(), testRuntime())
	b, _ := NewEngine(testConfig(), testRuntime())

	a.StepN(37)
	for i := 0; i < 37; i++ {
		b.Step()
	}

	if !reflect.DeepEqual(a.Chains(), b.Chains()) {
		t.Error("StepN(37) differs from 37 calls to Step")
	}
}

func TestEngine_SweepCountsOncePerEnsemble(t *testing.T) {
	engine, _ := NewEngine(testConfig(), testRuntime())
	engine.StepN(10)

	if got := engine.Steps(); got != 10 {
		t.Errorf("Expected sweep counter 10, got %d", got)
	}
	// Each sweep makes NumChains attempts, every one counted.
	stats := engine.Stats()
	if stats.AttemptedMoves != 10*5 {
		t.Errorf("Expected 50 attempted moves, got %d", stats.AttemptedMoves)
	}
}

func TestEngine_MaxStepsHalts(t *testing.T) {
	rt := testRuntime()
	rt.MaxSteps = 10
	engine, _ := NewEngine(testConfig(), rt)

	engine.StepN(25)
	if got := engine.Steps(); got != 10 {
		t.Errorf("Expected sweep counter pinned at 10, got %d", got)
	}
	if !engine.Stats().IsFinished {
		t.Error("Expected IsFinished after reaching the sweep budget")
	}
}

func TestEngine_AcceptanceRatioBounds(t *testing.T) {
	engine, _ := NewEngine(testConfig(), testRuntime())

	stats := engine.Stats()
	if stats.AcceptanceRatio != 0 {
		t.Errorf("Expected acceptance ratio 0 before any attempt, got %f", stats.AcceptanceRatio)
	}

	engine.StepN(100)
	stats = engine.Stats()
	if stats.AttemptedMoves == 0 {
		t.Fatal("Expected attempted moves after 100 sweeps")
	}
	if stats.SuccessfulMoves > stats.AttemptedMoves {
		t.Errorf("Successes (%d) exceed attempts (%d)", stats.SuccessfulMoves, stats.AttemptedMoves)
	}
	if stats.AcceptanceRatio < 0 || stats.AcceptanceRatio > 1 {
		t.Errorf("Acceptance ratio %f out of [0, 1]", stats.AcceptanceRatio)
	}
}

func TestEngine_StatsIdempotent(t *testing.T) {
	engine, _ := NewEngine(testConfig(), testRuntime())
	engine.StepN(50)

	first := engine.Stats()
	second := engine.Stats()
	if !reflect.DeepEqual(first, second) {
		t.Error("Stats changed between calls with no intervening sweep")
	}
}

func TestEngine_AutocorrelationStartsAtOne(t *testing.T) {
	// Length-2 chains have |R|² = 1 always, so the normalization
	// denominator cannot vanish.
	cfg := SimulationConfig{
		LatticeSize:           20,
		NumChains:             5,
		ChainLength:           2,
		ObstacleConcentration: 0,
		Seed:                  7,
	}
	engine, err := NewEngine(cfg, testRuntime())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	stats := engine.Stats()
	if stats.Autocorrelation != 1.0 {
		t.Errorf("Expected autocorrelation 1.0 at initialization, got %f", stats.Autocorrelation)
	}
}

func TestEngine_Reset(t *testing.T) {
	engine, _ := NewEngine(testConfig(), testRuntime())
	engine.StepN(200)

	if err := engine.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if engine.Steps() != 0 {
		t.Errorf("Expected sweep counter 0 after reset, got %d", engine.Steps())
	}
	if len(engine.History()) != 0 {
		t.Error("Expected empty history after reset")
	}
	stats := engine.Stats()
	if stats.AttemptedMoves != 0 || stats.SuccessfulMoves != 0 {
		t.Error("Expected zeroed move counters after reset")
	}
	if stats.Autocorrelation != 1.0 && stats.RawAutocorrelation != 0 {
		t.Errorf("Unexpected autocorrelation after reset: %f", stats.Autocorrelation)
	}
	checkInvariants(t, engine)
}

func TestEngine_UndersizedPopulation(t *testing.T) {
	// 24 of 25 sites blocked: no length-2 chain can grow, and with
	// RequireFullPopulation unset the engine comes up empty instead of
	// failing.
	cfg := SimulationConfig{
		LatticeSize:           5,
		NumChains:             2,
		ChainLength:           2,
		ObstacleConcentration: 0.96,
		Seed:                  1,
	}
	engine, err := NewEngine(cfg, testRuntime())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if got := engine.PopulationSize(); got != 0 {
		t.Errorf("Expected empty population, got %d chains", got)
	}

	// Sweeps over an empty population are no-ops.
	engine.StepN(10)
	if got := engine.Steps(); got != 0 {
		t.Errorf("Expected sweep counter to stay 0, got %d", got)
	}

	stats := engine.Stats()
	if stats.RMSEndToEnd != 0 || stats.Autocorrelation != 1.0 {
		t.Errorf("Unexpected empty-population stats: %+v", stats)
	}
}

func TestEngine_RequireFullPopulation(t *testing.T) {
	cfg := SimulationConfig{
		LatticeSize:           5,
		NumChains:             2,
		ChainLength:           2,
		ObstacleConcentration: 0.96,
		Seed:                  1,
		RequireFullPopulation: true,
	}
	if _, err := NewEngine(cfg, testRuntime()); err == nil {
		t.Error("Expected error when a chain slot cannot be grown")
	}
}

// cagedEngine builds an engine and replaces its state with a single
// hand-placed chain surrounded by the given obstacles.
func cagedEngine(t *testing.T, L int, chain Chain, obstacles []Site) *Engine {
	t.Helper()
	cfg := SimulationConfig{
		LatticeSize:           L,
		NumChains:             1,
		ChainLength:           len(chain),
		ObstacleConcentration: 0,
		Seed:                  99,
	}
	engine, err := NewEngine(cfg, testRuntime())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	engine.obstacles = make(map[Site]struct{})
	for _, s := range obstacles {
		engine.obstacles[s] = struct{}{}
	}
	engine.chains = []Chain{chain.clone()}
	engine.occupied = make(occupancy)
	for _, s := range chain {
		engine.occupied.increment(s)
	}
	r0 := chain.EndToEnd(L)
	engine.initialR0 = []Vec{r0}
	engine.initialR0SqSum = float64(r0.SqMagnitude())
	return engine
}

func TestEngine_TailVacatedSiteIsValidDestination(t *testing.T) {
	// A length-2 chain walled in on every outside neighbor can still
	// move: each end's only destination is the site its opposite end
	// vacates in the same move.
	chain := Chain{{X: 1, Y: 1}, {X: 2, Y: 1}}
	walls := []Site{
		{X: 0, Y: 1}, {X: 1, Y: 0}, {X: 1, Y: 2},
		{X: 3, Y: 1}, {X: 2, Y: 0}, {X: 2, Y: 2},
	}
	engine := cagedEngine(t, 10, chain, walls)

	valid := engine.validDestinations(Site{X: 1, Y: 1}, Site{X: 2, Y: 1})
	if len(valid) != 1 || valid[0] != (Site{X: 2, Y: 1}) {
		t.Fatalf("Expected the vacated site as the only destination, got %v", valid)
	}

	// Every attempt swaps the two ends; the occupied site set never
	// changes and every attempt is accepted.
	engine.StepN(50)
	stats := engine.Stats()
	if stats.AttemptedMoves != stats.SuccessfulMoves {
		t.Errorf("Expected every move accepted, got %d/%d", stats.SuccessfulMoves, stats.AttemptedMoves)
	}
	for _, s := range []Site{{X: 1, Y: 1}, {X: 2, Y: 1}} {
		if engine.occupied.count(s) != 1 {
			t.Errorf("Expected site %v to stay occupied", s)
		}
	}
	checkInvariants(t, engine)
}

func TestEngine_FullyCagedChainNeverMoves(t *testing.T) {
	// A length-3 chain filling a walled corridor is stuck: the interior
	// neighbor of each end holds a segment that is not the vacating end,
	// so no destination is ever valid.
	chain := Chain{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 3, Y: 1}}
	walls := []Site{
		{X: 0, Y: 1}, {X: 4, Y: 1},
		{X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0},
		{X: 1, Y: 2}, {X: 2, Y: 2}, {X: 3, Y: 2},
	}
	engine := cagedEngine(t, 10, chain, walls)

	engine.StepN(50)
	stats := engine.Stats()
	if stats.SuccessfulMoves != 0 {
		t.Errorf("Expected 0 accepted moves, got %d", stats.SuccessfulMoves)
	}
	if stats.AttemptedMoves != 50 {
		t.Errorf("Expected 50 attempted moves, got %d", stats.AttemptedMoves)
	}
	if !reflect.DeepEqual(engine.chains[0], chain) {
		t.Errorf("Caged chain moved: %v", engine.chains[0])
	}
}

func TestEngine_VacatedSiteExceptionRequiresSingleOccupancy(t *testing.T) {
	chain := Chain{{X: 1, Y: 1}, {X: 2, Y: 1}}
	engine := cagedEngine(t, 10, chain, nil)

	// With a second segment parked on the vacating site the exception
	// must not apply.
	engine.occupied.increment(Site{X: 2, Y: 1})
	valid := engine.validDestinations(Site{X: 1, Y: 1}, Site{X: 2, Y: 1})
	for _, s := range valid {
		if s == (Site{X: 2, Y: 1}) {
			t.Error("Vacated site accepted despite double occupancy")
		}
	}
}

func TestEngine_PropagateSlidesChain(t *testing.T) {
	chain := Chain{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 3, Y: 1}}
	engine := cagedEngine(t, 10, chain, nil)

	engine.propagate(0, true, Site{X: 0, Y: 1})

	want := Chain{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 2, Y: 1}}
	if !reflect.DeepEqual(engine.chains[0], want) {
		t.Errorf("Head move produced %v, want %v", engine.chains[0], want)
	}
	if _, occupied := engine.occupied[Site{X: 3, Y: 1}]; occupied {
		t.Error("Vacated tail site still in the ledger")
	}
	if engine.occupied.count(Site{X: 0, Y: 1}) != 1 {
		t.Error("Target site missing from the ledger")
	}
	checkInvariants(t, engine)
}

func TestEngine_HistorySampling(t *testing.T) {
	rt := RuntimeConfig{MaxSteps: 100, StepsPerTick: 10, SampleEvery: 10}
	engine, _ := NewEngine(testConfig(), rt)

	engine.StepN(100)
	samples := engine.History()
	if len(samples) != 10 {
		t.Fatalf("Expected 10 samples, got %d", len(samples))
	}
	if samples[0].Step != 10 {
		t.Errorf("Expected first sample at sweep 10, got %d", samples[0].Step)
	}
	if samples[len(samples)-1].Step != 100 {
		t.Errorf("Expected last sample at sweep 100, got %d", samples[len(samples)-1].Step)
	}
}

func TestEngine_UpdateRuntime(t *testing.T) {
	engine, _ := NewEngine(testConfig(), testRuntime())

	if err := engine.UpdateRuntime(RuntimeConfig{MaxSteps: -1, StepsPerTick: 1, SampleEvery: 1}); err == nil {
		t.Error("Expected error for invalid runtime config")
	}

	rt := RuntimeConfig{MaxSteps: 5000, StepsPerTick: 50, SampleEvery: 25}
	if err := engine.UpdateRuntime(rt); err != nil {
		t.Fatalf("UpdateRuntime failed: %v", err)
	}
	if got := engine.Runtime(); got != rt {
		t.Errorf("Runtime = %+v, want %+v", got, rt)
	}
}

func TestEngine_RunAndStop(t *testing.T) {
	rt := RuntimeConfig{MaxSteps: 50, StepsPerTick: 10, SampleEvery: 10}
	engine, _ := NewEngine(testConfig(), rt)

	engine.Run(time.Millisecond)
	if !engine.IsRunning() {
		t.Error("Expected IsRunning after Run")
	}

	deadline := time.Now().Add(2 * time.Second)
	for engine.Steps() < 50 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := engine.Steps(); got != 50 {
		t.Fatalf("Expected 50 sweeps after background run, got %d", got)
	}

	// The loop stops itself at the budget.
	deadline = time.Now().Add(time.Second)
	for engine.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if engine.IsRunning() {
		t.Error("Expected run loop to stop at the sweep budget")
	}
}

func TestEngine_RunIsRestartable(t *testing.T) {
	rt := RuntimeConfig{MaxSteps: 1000000, StepsPerTick: 1, SampleEvery: 100}
	engine, _ := NewEngine(testConfig(), rt)

	engine.Run(time.Millisecond)
	engine.Stop()
	if engine.IsRunning() {
		t.Error("Expected stopped after Stop")
	}

	engine.Run(time.Millisecond)
	if !engine.IsRunning() {
		t.Error("Expected running after restart")
	}
	engine.Stop()
}

func TestPlaceObstacles_ExactCount(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	obstacles := placeObstacles(rng, 10, 0.25)

	if got := len(obstacles); got != 25 {
		t.Errorf("Expected 25 obstacles, got %d", got)
	}
	for s := range obstacles {
		if !inLattice(s, 10) {
			t.Errorf("Obstacle %v outside lattice", s)
		}
	}
}

func TestPlaceObstacles_ZeroConcentration(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	if got := len(placeObstacles(rng, 10, 0)); got != 0 {
		t.Errorf("Expected no obstacles, got %d", got)
	}
}
