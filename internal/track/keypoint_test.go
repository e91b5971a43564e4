package track

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestL1Dist(t *testing.T) {
	var a, b Descriptor

	assert.Equal(t, float32(0), L1Dist(&a, &b))

	a[0] = 1.5
	a[70] = -2
	b[70] = 1
	assert.InDelta(t, 4.5, L1Dist(&a, &b), 1e-6)
	assert.Equal(t, L1Dist(&a, &b), L1Dist(&b, &a))
}

func TestEllipseContains(t *testing.T) {
	e := Ellipse{X: 10, Y: 20, A: 3, B: 2}

	assert.True(t, e.Contains(10, 20))
	// The containment field extends to twice the semi-axes.
	assert.True(t, e.Contains(15.9, 20))
	assert.False(t, e.Contains(16.1, 20))
	assert.True(t, e.Contains(10, 23.9))
	assert.False(t, e.Contains(10, 24.1))
}

func TestEllipseContainsRotated(t *testing.T) {
	// Quarter turn: the long axis now runs along y.
	e := Ellipse{X: 0, Y: 0, A: 4, B: 1, Angle: math.Pi / 2}

	assert.True(t, e.Contains(0, 7.9))
	assert.False(t, e.Contains(7.9, 0))

	// Swapped axes flip the reported angle's sign; the same physical
	// region must keep the same membership.
	swapped := Ellipse{X: 0, Y: 0, A: 1, B: 4, Angle: math.Pi / 2}
	assert.True(t, swapped.Contains(7.9, 0))
	assert.False(t, swapped.Contains(0, 7.9))
}

func TestNormScale(t *testing.T) {
	e := Ellipse{A: 3, B: 2}
	assert.InDelta(t, 2.5, e.NormScale(), 1e-12)

	n := Ellipse{X: 5, Y: 5, A: 3, B: 2}.normalized()
	assert.Equal(t, 0.0, n.X)
	assert.Equal(t, 0.0, n.Y)
	assert.InDelta(t, 1.2, n.A, 1e-12)
	assert.InDelta(t, 0.8, n.B, 1e-12)
}
