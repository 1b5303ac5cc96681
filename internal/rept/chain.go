package rept

// Chain is an ordered sequence of lattice sites. Index 0 is the head
// end, index len-1 the tail end. Consecutive sites are always
// lattice-adjacent under periodic boundaries; every accepted move
// preserves that invariant and the chain length.
type Chain []Site

// EndToEnd returns the unwrapped end-to-end displacement of the
// chain: the sum of minimum-image bond deltas from head to tail.
// The result is the true physical displacement, independent of how
// many times the chain has wrapped around the torus.
func (c Chain) EndToEnd(L int) Vec {
	var r Vec
	for i := 0; i < len(c)-1; i++ {
		d := bondDelta(c[i], c[i+1], L)
		r.X += d.X
		r.Y += d.Y
	}
	return r
}

// unwrapped reconstructs the chain's coordinate sequence in unwrapped
// space, with segment 0 at the local origin.
func (c Chain) unwrapped(L int) []Vec {
	out := make([]Vec, len(c))
	var cur Vec
	for i := 0; i < len(c)-1; i++ {
		d := bondDelta(c[i], c[i+1], L)
		cur.X += d.X
		cur.Y += d.Y
		out[i+1] = cur
	}
	return out
}

// GyrationSq returns the squared radius of gyration: the mean squared
// distance of every segment from the centroid of the unwrapped
// coordinate sequence.
func (c Chain) GyrationSq(L int) float64 {
	if len(c) == 0 {
		return 0
	}
	pos := c.unwrapped(L)

	var sumX, sumY float64
	for _, p := range pos {
		sumX += float64(p.X)
		sumY += float64(p.Y)
	}
	meanX := sumX / float64(len(pos))
	meanY := sumY / float64(len(pos))

	var rg2 float64
	for _, p := range pos {
		dx := float64(p.X) - meanX
		dy := float64(p.Y) - meanY
		rg2 += dx*dx + dy*dy
	}
	return rg2 / float64(len(pos))
}

// clone returns an independent copy of the chain.
func (c Chain) clone() Chain {
	out := make(Chain, len(c))
	copy(out, c)
	return out
}
