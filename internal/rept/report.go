package rept

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatReport renders a human-readable markdown summary of a run:
// the structural parameters followed by the current statistics
// record. Presentation layers serve it as-is or hand it to the
// narration client as context.
func FormatReport(cfg SimulationConfig, stats Stats) string {
	var b strings.Builder

	b.WriteString("# Reptation Simulation Report\n\n")

	b.WriteString("## Parameters\n\n")
	fmt.Fprintf(&b, "- Lattice: %d x %d (periodic)\n", cfg.LatticeSize, cfg.LatticeSize)
	fmt.Fprintf(&b, "- Chains: %d, length %d\n", cfg.NumChains, cfg.ChainLength)
	fmt.Fprintf(&b, "- Obstacle concentration: %.1f%%\n", cfg.ObstacleConcentration*100)
	b.WriteString("\n")

	b.WriteString("## Results\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Sweeps completed | %s |\n", humanize.Comma(stats.Steps))
	fmt.Fprintf(&b, "| Attempted moves | %s |\n", humanize.Comma(stats.AttemptedMoves))
	fmt.Fprintf(&b, "| Accepted moves | %s |\n", humanize.Comma(stats.SuccessfulMoves))
	fmt.Fprintf(&b, "| Acceptance ratio | %.2f%% |\n", stats.AcceptanceRatio*100)
	fmt.Fprintf(&b, "| Population size | %d |\n", stats.PopulationSize)
	fmt.Fprintf(&b, "| RMS end-to-end distance | %.3f |\n", stats.RMSEndToEnd)
	fmt.Fprintf(&b, "| Mean end-to-end distance | %.3f |\n", stats.MeanEndToEnd)
	fmt.Fprintf(&b, "| Radius of gyration (RMS) | %.3f |\n", stats.RadiusOfGyration)
	fmt.Fprintf(&b, "| Radius of gyration (mean) | %.3f |\n", stats.MeanRadiusOfGyration)
	fmt.Fprintf(&b, "| Autocorrelation (normalized) | %.4f |\n", stats.Autocorrelation)
	fmt.Fprintf(&b, "| Autocorrelation (raw) | %.2f |\n", stats.RawAutocorrelation)

	if stats.IsFinished {
		b.WriteString("\nRun complete: the sweep budget has been reached.\n")
	}

	return b.String()
}
