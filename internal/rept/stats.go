package rept

import "math"

// Stats is the instantaneous ensemble-averaged statistics record.
// Everything except the autocorrelation terms is recomputed from the
// current chain geometry on every call; autocorrelation additionally
// uses the initial-configuration snapshot captured at reset.
type Stats struct {
	Steps           int64 `json:"steps"`
	SuccessfulMoves int64 `json:"successful_moves"`
	AttemptedMoves  int64 `json:"attempted_moves"`

	// RMSEndToEnd is sqrt(<R²>); MeanEndToEnd is <|R|>. The two are
	// numerically distinct and both are reported.
	RMSEndToEnd  float64 `json:"rms_end_to_end"`
	MeanEndToEnd float64 `json:"mean_end_to_end"`

	// RadiusOfGyration is sqrt(<Rg²>); MeanRadiusOfGyration is <Rg>.
	RadiusOfGyration     float64 `json:"radius_of_gyration"`
	MeanRadiusOfGyration float64 `json:"mean_radius_of_gyration"`

	// Autocorrelation is <R(t)·R(0)> normalized by <R(0)²>; it equals
	// 1 immediately after initialization. RawAutocorrelation is the
	// unnormalized ensemble average of the dot product.
	Autocorrelation    float64 `json:"autocorrelation"`
	RawAutocorrelation float64 `json:"raw_autocorrelation"`

	// AcceptanceRatio is successful moves over attempted moves, 0
	// before any attempt.
	AcceptanceRatio float64 `json:"acceptance_ratio"`

	PopulationSize int  `json:"population_size"`
	IsFinished     bool `json:"is_finished"`
}

// computeStats derives the statistics record from the current
// geometry. Callers must hold at least the engine read lock. The
// function reads but never mutates simulation state, so repeated
// calls without an intervening sweep yield identical results.
func (e *Engine) computeStats() Stats {
	stats := Stats{
		Steps:           e.steps,
		SuccessfulMoves: e.successfulMoves,
		AttemptedMoves:  e.attemptedMoves,
		Autocorrelation: 1.0,
		PopulationSize:  len(e.chains),
		IsFinished:      e.steps >= e.runtime.MaxSteps,
	}
	if e.attemptedMoves > 0 {
		stats.AcceptanceRatio = float64(e.successfulMoves) / float64(e.attemptedMoves)
	}
	if len(e.chains) == 0 {
		return stats
	}

	L := e.cfg.LatticeSize
	var sumR2, sumR, sumRg2, sumRg, sumDot float64

	for idx, chain := range e.chains {
		r := chain.EndToEnd(L)
		r2 := float64(r.SqMagnitude())
		sumR2 += r2
		sumR += math.Sqrt(r2)

		rg2 := chain.GyrationSq(L)
		sumRg2 += rg2
		sumRg += math.Sqrt(rg2)

		sumDot += float64(r.Dot(e.initialR0[idx]))
	}

	m := float64(len(e.chains))
	stats.RMSEndToEnd = math.Sqrt(sumR2 / m)
	stats.MeanEndToEnd = sumR / m
	stats.RadiusOfGyration = math.Sqrt(sumRg2 / m)
	stats.MeanRadiusOfGyration = sumRg / m
	stats.RawAutocorrelation = sumDot / m

	// The normalization denominator is captured once at reset and
	// never recomputed, so the normalized value is exactly 1 at t=0.
	initialAvgR2 := e.initialR0SqSum / m
	if initialAvgR2 != 0 {
		stats.Autocorrelation = stats.RawAutocorrelation / initialAvgR2
	} else {
		stats.Autocorrelation = 0
	}

	return stats
}
