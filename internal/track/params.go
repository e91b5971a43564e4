package track

// Params holds the tuning constants for the tracking engine. Zero fields
// are filled in by applyDefaults when a Session is constructed, so a
// partially populated struct from config is safe to pass.
type Params struct {
	// Uniqueness is the multiplier used to reject ambiguous descriptor
	// matches: a best match is accepted only if best*Uniqueness does not
	// exceed the second-best distance.
	Uniqueness float32

	// MaxDiff is the maximum acceptable descriptor L1 distance for a
	// correspondence.
	MaxDiff float32

	// MinMatches is the minimum number of correspondences required to
	// attempt a transform estimate.
	MinMatches int

	// MaxMatches caps the correspondence list; worse matches are evicted.
	MaxMatches int

	// ModelCapacity bounds the per-surface model keypoint set. Insertion
	// beyond the capacity overwrites the oldest entry.
	ModelCapacity int

	// MinSeedKeypoints is the number of frame keypoints that must fall
	// inside a seed region for surface creation to succeed.
	MinSeedKeypoints int

	// MaxSurfaces bounds the number of concurrently tracked surfaces.
	MaxSurfaces int

	// MaxSkew and MaxScaleRatio are the plausibility bounds applied to
	// estimated transforms.
	MaxSkew       float64
	MaxScaleRatio float64
}

// DefaultParams returns the engine defaults.
func DefaultParams() Params {
	return Params{
		Uniqueness:       3.5,
		MaxDiff:          2.0,
		MinMatches:       5,
		MaxMatches:       256,
		ModelCapacity:    512,
		MinSeedKeypoints: 10,
		MaxSurfaces:      32,
		MaxSkew:          1000,
		MaxScaleRatio:    1000,
	}
}

func (p *Params) applyDefaults() {
	def := DefaultParams()
	if p.Uniqueness == 0 {
		p.Uniqueness = def.Uniqueness
	}
	if p.MaxDiff == 0 {
		p.MaxDiff = def.MaxDiff
	}
	if p.MinMatches == 0 {
		p.MinMatches = def.MinMatches
	}
	if p.MaxMatches == 0 {
		p.MaxMatches = def.MaxMatches
	}
	if p.ModelCapacity == 0 {
		p.ModelCapacity = def.ModelCapacity
	}
	if p.MinSeedKeypoints == 0 {
		p.MinSeedKeypoints = def.MinSeedKeypoints
	}
	if p.MaxSurfaces == 0 {
		p.MaxSurfaces = def.MaxSurfaces
	}
	if p.MaxSkew == 0 {
		p.MaxSkew = def.MaxSkew
	}
	if p.MaxScaleRatio == 0 {
		p.MaxScaleRatio = def.MaxScaleRatio
	}
}
