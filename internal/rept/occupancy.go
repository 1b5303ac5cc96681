package rept

// occupancy is the multiset of chain segments per site. It counts
// segments rather than tracking presence because a reptation move
// must distinguish "occupied only by the segment about to vacate"
// from "occupied by anything else".
type occupancy map[Site]int

func (o occupancy) increment(s Site) {
	o[s]++
}

// decrement removes one segment from s. A count reaching zero removes
// the key entirely, so the key set always equals the set of sites
// holding at least one segment.
func (o occupancy) decrement(s Site) {
	if o[s] <= 1 {
		delete(o, s)
	} else {
		o[s]--
	}
}

func (o occupancy) count(s Site) int {
	return o[s]
}

// total returns the number of placed segments across all sites.
func (o occupancy) total() int {
	n := 0
	for _, c := range o {
		n += c
	}
	return n
}
