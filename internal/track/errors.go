package track

import "errors"

// Error taxonomy for surface creation and per-frame updates. Per-surface
// update failures are recovered locally and surface in the status map;
// creation and query failures are returned to the caller.
var (
	// ErrNoFrame is returned when an operation needs detector output but
	// no camera frame has been processed yet.
	ErrNoFrame = errors.New("track: no frame processed yet")

	// ErrInvalidHandle is returned for a handle that does not name an
	// active surface.
	ErrInvalidHandle = errors.New("track: invalid surface handle")

	// ErrInsufficientSeedKeypoints is returned by CreateSurface when
	// fewer than MinSeedKeypoints frame keypoints fall inside the region.
	ErrInsufficientSeedKeypoints = errors.New("track: too few keypoints inside seed region")

	// ErrNoSurfaceCapacity is returned by CreateSurface when all surface
	// slots are occupied.
	ErrNoSurfaceCapacity = errors.New("track: surface table full")

	// ErrInsufficientMatches marks an update that found fewer than
	// MinMatches correspondences.
	ErrInsufficientMatches = errors.New("track: too few matching keypoints")

	// ErrImplausibleTransform marks an update whose estimated transform
	// failed the skew or scale-ratio plausibility bounds.
	ErrImplausibleTransform = errors.New("track: transform outside plausible affine bounds")

	// ErrNotTracking is returned when a transform is requested for a
	// surface that has never produced a successful estimate.
	ErrNotTracking = errors.New("track: surface has no valid transform yet")
)
