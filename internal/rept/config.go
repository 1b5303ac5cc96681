package rept

// SimulationConfig describes the structural parameters of a
// simulation. Changing any of these requires a full Reset: the
// obstacle field, the chain population, the occupancy ledger and the
// initial-configuration snapshot are regenerated together.
type SimulationConfig struct {
	// LatticeSize is the side length L of the periodic L×L lattice.
	LatticeSize int `json:"lattice_size"`

	// NumChains is the requested population size M.
	NumChains int `json:"num_chains"`

	// ChainLength is the number of segments N per chain.
	ChainLength int `json:"chain_length"`

	// ObstacleConcentration is the quenched obstacle density in
	// [0, 1); floor(L² · concentration) sites are blocked.
	ObstacleConcentration float64 `json:"obstacle_concentration"`

	// Seed seeds the engine RNG. Zero means seed from the clock;
	// any other value gives a reproducible run.
	Seed int64 `json:"seed,omitempty"`

	// GrowthRetries bounds the grow-or-retry attempts per chain
	// slot. Zero means DefaultGrowthRetries.
	GrowthRetries int `json:"growth_retries,omitempty"`

	// RequireFullPopulation makes initialization fail when a chain
	// slot exhausts its retry budget. When false the population may
	// come up smaller than NumChains; PopulationSize reports the
	// actual count.
	RequireFullPopulation bool `json:"require_full_population,omitempty"`
}

// RuntimeConfig holds the parameters that may change between sweeps
// without regenerating geometry.
type RuntimeConfig struct {
	// MaxSteps is the sweep budget. Step is a no-op once the sweep
	// counter reaches it.
	MaxSteps int64 `json:"max_steps"`

	// StepsPerTick is how many sweeps a background Run performs per
	// ticker fire.
	StepsPerTick int `json:"steps_per_tick"`

	// SampleEvery is the sweep interval at which a history sample is
	// recorded and a stats event emitted.
	SampleEvery int64 `json:"sample_every"`
}

const (
	// DefaultGrowthRetries is the grow-or-retry budget per chain slot.
	DefaultGrowthRetries = 200

	DefaultMaxSteps     = 50000
	DefaultStepsPerTick = 100
	DefaultSampleEvery  = 100
)

// DefaultSimulationConfig mirrors the stock lab parameters.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		LatticeSize:           50,
		NumChains:             15,
		ChainLength:           20,
		ObstacleConcentration: 0.12,
		GrowthRetries:         DefaultGrowthRetries,
	}
}

// DefaultRuntimeConfig returns the stock runtime parameters.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		MaxSteps:     DefaultMaxSteps,
		StepsPerTick: DefaultStepsPerTick,
		SampleEvery:  DefaultSampleEvery,
	}
}
