package track

import "math"

// bestMatch finds a query descriptor's nearest neighbour in refs by L1
// distance and returns its index with the distance. The match is accepted
// as unique only when best*uniqueness <= secondBest; an ambiguous match,
// or an empty reference set, yields index -1. The returned distance is the
// best distance found regardless of uniqueness.
func bestMatch(d *Descriptor, refs []Keypoint, uniqueness float32) (int, float32) {
	bestIdx := -1
	best := float32(math.MaxFloat32)
	var second float32
	for i := range refs {
		dist := L1Dist(d, &refs[i].Desc)
		if dist < best {
			bestIdx = i
			second = best
			best = dist
		} else if dist < second {
			second = dist
		}
	}
	if bestIdx >= 0 && best*uniqueness <= second {
		return bestIdx, best
	}
	return -1, best
}
