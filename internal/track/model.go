package track

// modelSet is the evolving reference keypoint collection defining what a
// tracked surface looks like. It is a fixed-capacity ring: once full, the
// write cursor overwrites the oldest entry.
type modelSet struct {
	pts    []Keypoint
	cursor int
	cap    int
}

func newModelSet(capacity int) modelSet {
	return modelSet{pts: make([]Keypoint, 0, capacity), cap: capacity}
}

func (m *modelSet) len() int { return len(m.pts) }

// insert writes a keypoint at the ring cursor, growing until capacity and
// overwriting the oldest slot afterwards.
func (m *modelSet) insert(kp Keypoint) {
	if len(m.pts) < m.cap {
		m.pts = append(m.pts, kp)
	} else {
		m.pts[m.cursor] = kp
	}
	m.cursor = (m.cursor + 1) % m.cap
}

// refresh replaces the stored descriptor of entry i with the incoming
// one, compensating for gradual appearance drift.
func (m *modelSet) refresh(i int, d *Descriptor) {
	m.pts[i].Desc = *d
}

// maintainModel evolves the surface's model after a successful estimate:
// current-frame keypoints inside the tracked region that match a keypoint
// from the previous frame's candidate set are promoted into the model
// (mapped to model space, written at the ring cursor); the rest that match
// neither model nor candidates become the next frame's candidate set.
// Matches against the model itself were already refreshed while building
// correspondences and are skipped here.
func (s *Surface) maintainModel(frame []Keypoint, p *Params) {
	next := make([]Keypoint, 0, len(s.candidates))
	for i := range frame {
		mx, my := s.inv.Apply(frame[i].X, frame[i].Y)
		if !s.window.Contains(mx, my) {
			continue
		}
		if _, dist := bestMatch(&frame[i].Desc, s.model.pts, p.Uniqueness); dist <= p.MaxDiff {
			continue
		}
		ci, cdist := bestMatch(&frame[i].Desc, s.candidates, p.Uniqueness)
		if ci >= 0 && cdist <= p.MaxDiff {
			// Seen in two consecutive frames: promote into the model.
			kp := frame[i]
			kp.X, kp.Y = mx, my
			s.model.insert(kp)
			continue
		}
		if len(next) < p.ModelCapacity {
			next = append(next, frame[i])
		}
	}
	s.candidates = next
}
