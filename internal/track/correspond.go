package track

// insertSorted places c into list keeping it ascending by distance,
// evicting the worst entry when the list is already at capacity. Returns
// the (possibly unchanged) list.
func insertSorted(list []Correspondence, c Correspondence, capacity int) []Correspondence {
	if len(list) == capacity {
		if c.Dist >= list[len(list)-1].Dist {
			return list
		}
		list = list[:len(list)-1]
	}
	i := len(list)
	for i > 0 && c.Dist < list[i-1].Dist {
		i--
	}
	list = append(list, Correspondence{})
	copy(list[i+1:], list[i:])
	list[i] = c
	return list
}

// buildCorrespondences matches current-frame keypoints against the
// surface's model set and returns the best correspondences sorted
// ascending by distance, capped at MaxMatches.
//
// The search is windowed first: only frame keypoints whose position maps
// inside the seed region under the current inverse transform are
// considered. If that yields fewer than MinMatches correspondences the
// windowed result is discarded and the whole frame is searched, which
// recovers tracking after large unpredicted motion.
//
// Matched model keypoints have their stored descriptor refreshed with the
// incoming one during the windowed pass; this side effect happens whether
// or not the frame ultimately tracks.
func (s *Surface) buildCorrespondences(frame []Keypoint, p *Params) []Correspondence {
	var windowed []Keypoint
	if s.hasTransform {
		for i := range frame {
			mx, my := s.inv.Apply(frame[i].X, frame[i].Y)
			if s.window.Contains(mx, my) {
				windowed = append(windowed, frame[i])
			}
		}
	}

	corrs := s.matchAgainstModel(windowed, p, true)
	if len(corrs) < p.MinMatches {
		corrs = s.matchAgainstModel(frame, p, false)
	}
	return corrs
}

func (s *Surface) matchAgainstModel(candidates []Keypoint, p *Params, refresh bool) []Correspondence {
	corrs := make([]Correspondence, 0, p.MaxMatches)
	for i := range candidates {
		mi, dist := bestMatch(&candidates[i].Desc, s.model.pts, p.Uniqueness)
		if mi < 0 {
			continue
		}
		if dist < p.MaxDiff {
			corrs = insertSorted(corrs, Correspondence{
				ModelX: s.model.pts[mi].X,
				ModelY: s.model.pts[mi].Y,
				FrameX: candidates[i].X,
				FrameY: candidates[i].Y,
				Dist:   dist,
			}, p.MaxMatches)
		}
		if refresh {
			s.model.refresh(mi, &candidates[i].Desc)
		}
	}
	return corrs
}
