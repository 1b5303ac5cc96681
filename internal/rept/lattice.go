package rept

// Site is a lattice position. Coordinates are always in [0, L).
// Site is comparable and is the canonical key for the occupancy
// ledger and the obstacle set.
type Site struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Vec is an unwrapped displacement on the lattice. Bond deltas are
// always ±1 per axis, so unwrapped sums stay integral.
type Vec struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Dot returns the dot product of two displacement vectors.
func (v Vec) Dot(o Vec) int {
	return v.X*o.X + v.Y*o.Y
}

// SqMagnitude returns |v|².
func (v Vec) SqMagnitude() int {
	return v.X*v.X + v.Y*v.Y
}

// Neighbors returns the four lattice-adjacent sites of s under
// periodic wraparound on an L×L lattice. This is the sole adjacency
// definition: two sites are adjacent iff one is a neighbor of the
// other.
func Neighbors(s Site, L int) [4]Site {
	return [4]Site{
		{X: (s.X + 1) % L, Y: s.Y},
		{X: (s.X - 1 + L) % L, Y: s.Y},
		{X: s.X, Y: (s.Y + 1) % L},
		{X: s.X, Y: (s.Y - 1 + L) % L},
	}
}

// Adjacent reports whether a and b are lattice-adjacent under
// periodic boundaries.
func Adjacent(a, b Site, L int) bool {
	for _, n := range Neighbors(a, L) {
		if n == b {
			return true
		}
	}
	return false
}

// bondDelta returns the minimum-image displacement from a to b.
// Legal bonds span exactly one lattice hop, so any raw delta with
// magnitude > 1 crossed the periodic seam and is corrected by L.
func bondDelta(a, b Site, L int) Vec {
	dx := b.X - a.X
	dy := b.Y - a.Y
	if dx > 1 {
		dx -= L
	} else if dx < -1 {
		dx += L
	}
	if dy > 1 {
		dy -= L
	} else if dy < -1 {
		dy += L
	}
	return Vec{X: dx, Y: dy}
}
