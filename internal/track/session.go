package track

import (
	"context"
	"fmt"
	"sync"
)

// Status is the lifecycle state of a tracked surface.
type Status string

const (
	// StatusCreated means the surface is seeded but no update has run yet.
	StatusCreated Status = "created"
	// StatusTracking means the most recent update produced a valid transform.
	StatusTracking Status = "tracking"
	// StatusLost means the most recent update failed; the last good
	// transform is retained.
	StatusLost Status = "lost"
)

// FrameSource produces RGB frames on demand. AcquireFrame blocks for at
// most the source's configured wait and fails with a timeout or interrupt
// error instead of blocking indefinitely.
type FrameSource interface {
	AcquireFrame(ctx context.Context) (*Frame, error)
}

// FeatureDetector returns the local-feature keypoints of a frame.
type FeatureDetector interface {
	DetectFeatures(frame *Frame) ([]Keypoint, error)
}

// RegionDetector returns candidate planar regions of a frame as ellipses.
type RegionDetector interface {
	DetectRegions(frame *Frame) ([]Ellipse, error)
}

// Surface is one tracked planar surface.
type Surface struct {
	handle int
	seed   Ellipse // region supplied at creation, kept for reference
	window Ellipse // seed expressed in model space, used for containment

	fwd          Affine
	inv          Affine
	hasTransform bool

	model      modelSet
	candidates []Keypoint

	status  Status
	lastErr error // nil after a successful update
}

// Handle returns the surface's opaque identifier.
func (s *Surface) Handle() int { return s.handle }

// Seed returns the region the surface was created from.
func (s *Surface) Seed() Ellipse { return s.seed }

// UpdateResult reports the outcome of one surface's per-frame update.
type UpdateResult struct {
	Status  Status
	Err     error // nil on success
	Matches int   // correspondences used for the estimate
}

// Session owns the fixed-capacity table of tracked surfaces and runs the
// per-frame update across all of them. Detector outputs are computed at
// most once per frame and shared by every surface.
//
// A Session is safe for concurrent use; surface creation and release are
// serialized against the update pass by the session lock.
type Session struct {
	params   Params
	camera   FrameSource
	features FeatureDetector
	regions  RegionDetector

	mu       sync.Mutex
	surfaces []*Surface // fixed slot table, nil = free

	// Per-frame cache, invalidated at the start of each UpdateAll.
	frame          *Frame
	keypoints      []Keypoint
	regionList     []Ellipse
	keypointsValid bool
	regionsValid   bool
}

// NewSession builds a Session around the three collaborators. Zero fields
// in params fall back to the engine defaults.
func NewSession(params Params, camera FrameSource, features FeatureDetector, regions RegionDetector) *Session {
	params.applyDefaults()
	return &Session{
		params:   params,
		camera:   camera,
		features: features,
		regions:  regions,
		surfaces: make([]*Surface, params.MaxSurfaces),
	}
}

// Params returns the session's effective tuning constants.
func (s *Session) Params() Params { return s.params }

// CreateSurface seeds a new tracked surface from a region of the current
// frame and returns its handle. It fails when no frame has been processed
// yet, when fewer than MinSeedKeypoints keypoints fall inside the region,
// or when the surface table is full.
func (s *Session) CreateSurface(region Ellipse) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kps, err := s.frameKeypointsLocked()
	if err != nil {
		return 0, err
	}

	slot := -1
	for i, sf := range s.surfaces {
		if sf == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		return 0, ErrNoSurfaceCapacity
	}

	surf := &Surface{
		handle: slot,
		seed:   region,
		window: region.normalized(),
		model:  newModelSet(s.params.ModelCapacity),
		status: StatusCreated,
	}

	// Store seed keypoints in model space: translated to the ellipse
	// centre and scaled by the mean semi-axis.
	norm := region.NormScale()
	if norm == 0 {
		norm = 1
	}
	for i := range kps {
		if !region.Contains(kps[i].X, kps[i].Y) {
			continue
		}
		kp := kps[i]
		kp.X = (kp.X - region.X) / norm
		kp.Y = (kp.Y - region.Y) / norm
		surf.model.insert(kp)
	}
	if surf.model.len() < s.params.MinSeedKeypoints {
		return 0, fmt.Errorf("%w: %d inside region, need %d",
			ErrInsufficientSeedKeypoints, surf.model.len(), s.params.MinSeedKeypoints)
	}

	s.surfaces[slot] = surf
	return slot, nil
}

// ReleaseSurface destroys a surface and frees its handle for reuse.
// Releasing an unknown handle is reported, not fatal.
func (s *Session) ReleaseSurface(handle int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if handle < 0 || handle >= len(s.surfaces) || s.surfaces[handle] == nil {
		return ErrInvalidHandle
	}
	s.surfaces[handle] = nil
	return nil
}

// UpdateAll pulls one frame, refreshes the per-frame detector cache and
// updates every active surface, returning the per-surface outcomes.
// Acquisition failures (timeout, interrupt) abort the frame without
// touching surface state; the caller decides whether to retry.
func (s *Session) UpdateAll(ctx context.Context) (map[int]UpdateResult, error) {
	frame, err := s.camera.AcquireFrame(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.frame = frame
	s.keypointsValid = false
	s.regionsValid = false

	results := make(map[int]UpdateResult)
	active := false
	for _, sf := range s.surfaces {
		if sf != nil {
			active = true
			break
		}
	}
	if !active {
		return results, nil
	}

	kps, err := s.frameKeypointsLocked()
	if err != nil {
		return nil, fmt.Errorf("detect features: %w", err)
	}

	for _, sf := range s.surfaces {
		if sf == nil {
			continue
		}
		results[sf.handle] = s.updateSurface(sf, kps)
	}
	return results, nil
}

// updateSurface runs one surface through the correspondence → estimate →
// model-maintenance pipeline. A failed update leaves the previous
// transform intact and marks the surface lost.
func (s *Session) updateSurface(sf *Surface, kps []Keypoint) UpdateResult {
	corrs := sf.buildCorrespondences(kps, &s.params)
	if len(corrs) < s.params.MinMatches {
		sf.status = StatusLost
		sf.lastErr = ErrInsufficientMatches
		return UpdateResult{Status: StatusLost, Err: ErrInsufficientMatches, Matches: len(corrs)}
	}

	fwd, err := EstimateAffine(corrs, s.params.MaxSkew, s.params.MaxScaleRatio)
	if err != nil {
		sf.status = StatusLost
		sf.lastErr = err
		return UpdateResult{Status: StatusLost, Err: err, Matches: len(corrs)}
	}
	inv, err := fwd.Inverse()
	if err != nil {
		sf.status = StatusLost
		sf.lastErr = ErrImplausibleTransform
		return UpdateResult{Status: StatusLost, Err: ErrImplausibleTransform, Matches: len(corrs)}
	}

	sf.fwd = fwd
	sf.inv = inv
	sf.hasTransform = true
	sf.status = StatusTracking
	sf.lastErr = nil

	sf.maintainModel(kps, &s.params)

	return UpdateResult{Status: StatusTracking, Matches: len(corrs)}
}

// Transform returns the forward affine transform of a surface, mapping
// model-space points into the current frame.
func (s *Session) Transform(handle int) (Affine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.surfaceLocked(handle)
	if err != nil {
		return Affine{}, err
	}
	if !sf.hasTransform {
		return Affine{}, ErrNotTracking
	}
	return sf.fwd, nil
}

// TransformPoint maps a model-space point into the current frame.
func (s *Session) TransformPoint(handle int, x, y float64) (float64, float64, error) {
	t, err := s.Transform(handle)
	if err != nil {
		return 0, 0, err
	}
	tx, ty := t.Apply(x, y)
	return tx, ty, nil
}

// UntransformPoint maps a current-frame point back into model space.
func (s *Session) UntransformPoint(handle int, x, y float64) (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.surfaceLocked(handle)
	if err != nil {
		return 0, 0, err
	}
	if !sf.hasTransform {
		return 0, 0, ErrNotTracking
	}
	tx, ty := sf.inv.Apply(x, y)
	return tx, ty, nil
}

// SurfaceStatus describes one active surface.
type SurfaceStatus struct {
	Handle       int
	Seed         Ellipse
	Status       Status
	LastErr      error
	ModelSize    int
	HasTransform bool
	Transform    Affine
}

// Status returns the current state of one surface.
func (s *Session) Status(handle int) (SurfaceStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.surfaceLocked(handle)
	if err != nil {
		return SurfaceStatus{}, err
	}
	return statusOf(sf), nil
}

// Statuses returns the state of every active surface keyed by handle.
func (s *Session) Statuses() map[int]SurfaceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]SurfaceStatus)
	for _, sf := range s.surfaces {
		if sf != nil {
			out[sf.handle] = statusOf(sf)
		}
	}
	return out
}

func statusOf(sf *Surface) SurfaceStatus {
	return SurfaceStatus{
		Handle:       sf.handle,
		Seed:         sf.seed,
		Status:       sf.status,
		LastErr:      sf.lastErr,
		ModelSize:    sf.model.len(),
		HasTransform: sf.hasTransform,
		Transform:    sf.fwd,
	}
}

// ModelCentroid returns the component-wise mean of the surface's model
// descriptors. It summarizes what the surface currently looks like and
// is stored with events for similarity search.
func (s *Session) ModelCentroid(handle int) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.surfaceLocked(handle)
	if err != nil {
		return nil, err
	}
	n := sf.model.len()
	if n == 0 {
		return nil, nil
	}
	centroid := make([]float32, DescriptorLen)
	for i := range sf.model.pts {
		for c := 0; c < DescriptorLen; c++ {
			centroid[c] += sf.model.pts[i].Desc[c]
		}
	}
	inv := 1 / float32(n)
	for c := range centroid {
		centroid[c] *= inv
	}
	return centroid, nil
}

// ActiveCount returns the number of tracked surfaces.
func (s *Session) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sf := range s.surfaces {
		if sf != nil {
			n++
		}
	}
	return n
}

// Keypoints returns the cached keypoint list of the current frame,
// computing it on first use.
func (s *Session) Keypoints() ([]Keypoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameKeypointsLocked()
}

// Regions returns the cached region list of the current frame, computing
// it on first use.
func (s *Session) Regions() ([]Ellipse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, ErrNoFrame
	}
	if !s.regionsValid {
		regions, err := s.regions.DetectRegions(s.frame)
		if err != nil {
			return nil, fmt.Errorf("detect regions: %w", err)
		}
		s.regionList = regions
		s.regionsValid = true
	}
	return s.regionList, nil
}

func (s *Session) surfaceLocked(handle int) (*Surface, error) {
	if handle < 0 || handle >= len(s.surfaces) || s.surfaces[handle] == nil {
		return nil, ErrInvalidHandle
	}
	return s.surfaces[handle], nil
}

func (s *Session) frameKeypointsLocked() ([]Keypoint, error) {
	if s.frame == nil {
		return nil, ErrNoFrame
	}
	if !s.keypointsValid {
		kps, err := s.features.DetectFeatures(s.frame)
		if err != nil {
			return nil, fmt.Errorf("detect features: %w", err)
		}
		s.keypoints = kps
		s.keypointsValid = true
	}
	return s.keypoints, nil
}
