package track

import "math"

// DescriptorLen is the number of components in a keypoint descriptor.
const DescriptorLen = 128

// Descriptor is a fixed-length local-feature descriptor vector.
type Descriptor [DescriptorLen]float32

// L1Dist returns the sum of absolute component-wise differences between
// two descriptors.
func L1Dist(a, b *Descriptor) float32 {
	var sum float32
	for i := 0; i < DescriptorLen; i++ {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}

// Keypoint is a localized image feature with a descriptor, produced by the
// feature-detector collaborator or stored inside a surface model.
type Keypoint struct {
	X           float64    `json:"x"`
	Y           float64    `json:"y"`
	Scale       float64    `json:"scale"`
	Orientation float64    `json:"orientation"`
	Score       float32    `json:"score,omitempty"`
	Desc        Descriptor `json:"-"`
}

// Ellipse describes a candidate planar region by its centroid and
// elliptical extent, as reported by the region-detector collaborator.
type Ellipse struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	A     float64 `json:"a"` // semi-major axis
	B     float64 `json:"b"` // semi-minor axis
	Angle float64 `json:"angle"`
}

// Contains reports whether the point (px, py) lies inside the ellipse.
// The detector reports the rotation relative to the major axis, so the
// angle sign flips when the axes are swapped.
func (e Ellipse) Contains(px, py float64) bool {
	x := px - e.X
	y := py - e.Y
	beta := e.Angle
	if e.A <= e.B {
		beta = -beta
	}
	sinb := math.Sin(beta)
	cosb := math.Cos(beta)
	rx := cosb*x - sinb*y
	ry := sinb*x + cosb*y
	return rx*rx/(e.A*e.A*4)+ry*ry/(e.B*e.B*4) < 1
}

// NormScale returns the model-space normalization factor derived from the
// ellipse extent. Seed keypoints are divided by this at surface creation.
func (e Ellipse) NormScale() float64 {
	return (e.A + e.B) / 2
}

// normalized returns the ellipse expressed in the model space it defines:
// centred at the origin and scaled by NormScale.
func (e Ellipse) normalized() Ellipse {
	s := e.NormScale()
	if s == 0 {
		s = 1
	}
	return Ellipse{X: 0, Y: 0, A: e.A / s, B: e.B / s, Angle: e.Angle}
}

// Frame is one RGB camera frame. Pix is packed RGB24, 3*Width*Height bytes.
type Frame struct {
	Pix    []byte
	Width  int
	Height int
}
