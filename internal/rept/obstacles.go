package rept

import "math/rand"

// placeObstacles fills the quenched obstacle field by rejection
// sampling over the L×L grid until exactly floor(L²·concentration)
// distinct sites are blocked. ValidateConfig guarantees the target
// count leaves at least one free site, so the loop terminates.
func placeObstacles(rng *rand.Rand, L int, concentration float64) map[Site]struct{} {
	target := int(float64(L*L) * concentration)
	obstacles := make(map[Site]struct{}, target)
	for len(obstacles) < target {
		s := Site{X: rng.Intn(L), Y: rng.Intn(L)}
		if _, dup := obstacles[s]; dup {
			continue
		}
		obstacles[s] = struct{}{}
	}
	return obstacles
}
