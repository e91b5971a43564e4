package dto

// CreateSurfaceRequest registers a new surface from a detected region.
type CreateSurfaceRequest struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	A     float64 `json:"a" binding:"required,gt=0"`
	B     float64 `json:"b" binding:"required,gt=0"`
	Angle float64 `json:"angle"`
}

// TransformResponse carries the current model-to-frame mapping, both as
// the six affine parameters and as a column-major 4x4 matrix ready for
// rendering pipelines.
type TransformResponse struct {
	M11 float64     `json:"m11"`
	M12 float64     `json:"m12"`
	M21 float64     `json:"m21"`
	M22 float64     `json:"m22"`
	TX  float64     `json:"tx"`
	TY  float64     `json:"ty"`
	GL  [16]float64 `json:"gl"`
}

type SurfaceResponse struct {
	Handle    int                `json:"handle"`
	Status    string             `json:"status"`
	ModelSize int                `json:"model_size"`
	Error     string             `json:"error,omitempty"`
	Transform *TransformResponse `json:"transform,omitempty"`
}

type SurfaceListResponse struct {
	Surfaces []SurfaceResponse `json:"surfaces"`
}

// PointRequest is a point in model or frame coordinates, depending on
// the endpoint direction.
type PointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// Inverse maps a frame point back into model space.
	Inverse bool `json:"inverse,omitempty"`
}

type PointResponse struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// KeypointResponse is one detected frame keypoint.
type KeypointResponse struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Scale       float64 `json:"scale"`
	Orientation float64 `json:"orientation"`
	Score       float32 `json:"score,omitempty"`
}

// RegionResponse is one detected candidate region.
type RegionResponse struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	A     float64 `json:"a"`
	B     float64 `json:"b"`
	Angle float64 `json:"angle"`
}
