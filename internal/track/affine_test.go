package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffineApplyIdentity(t *testing.T) {
	x, y := Identity().Apply(3.5, -2)
	assert.Equal(t, 3.5, x)
	assert.Equal(t, -2.0, y)
}

func TestAffineInverseRoundTrip(t *testing.T) {
	a := Affine{M11: 1.2, M12: -0.3, TX: 40, M21: 0.25, M22: 0.9, TY: -17}
	inv, err := a.Inverse()
	require.NoError(t, err)

	pts := [][2]float64{{0, 0}, {10, 5}, {-3, 7.5}, {100, -42}}
	for _, p := range pts {
		fx, fy := a.Apply(p[0], p[1])
		bx, by := inv.Apply(fx, fy)
		assert.InDelta(t, p[0], bx, 1e-9)
		assert.InDelta(t, p[1], by, 1e-9)
	}
}

func TestAffineInverseSingular(t *testing.T) {
	a := Affine{M11: 1, M12: 2, M21: 2, M22: 4}
	_, err := a.Inverse()
	assert.Error(t, err)
}

func TestAffineInverseMatchesPseudoInverse(t *testing.T) {
	a := Affine{M11: 0.8, M12: 0.1, TX: -5, M21: -0.2, M22: 1.1, TY: 12}

	inv, err := a.Inverse()
	require.NoError(t, err)
	pinv, err := a.pseudoInverse()
	require.NoError(t, err)

	assert.InDelta(t, inv.M11, pinv.M11, 1e-9)
	assert.InDelta(t, inv.M12, pinv.M12, 1e-9)
	assert.InDelta(t, inv.M21, pinv.M21, 1e-9)
	assert.InDelta(t, inv.M22, pinv.M22, 1e-9)
	assert.InDelta(t, inv.TX, pinv.TX, 1e-9)
	assert.InDelta(t, inv.TY, pinv.TY, 1e-9)
}

func translationCorrs(dx, dy float64) []Correspondence {
	pts := [][2]float64{{0, 0}, {1, 0}, {0, 1}, {-1, 0.5}, {0.7, -0.9}, {1.3, 1.1}}
	corrs := make([]Correspondence, len(pts))
	for i, p := range pts {
		corrs[i] = Correspondence{
			ModelX: p[0], ModelY: p[1],
			FrameX: p[0] + dx, FrameY: p[1] + dy,
		}
	}
	return corrs
}

func TestEstimateAffineTranslation(t *testing.T) {
	got, err := EstimateAffine(translationCorrs(5, -3), 1000, 1000)
	require.NoError(t, err)

	assert.InDelta(t, 1, got.M11, 1e-9)
	assert.InDelta(t, 0, got.M12, 1e-9)
	assert.InDelta(t, 0, got.M21, 1e-9)
	assert.InDelta(t, 1, got.M22, 1e-9)
	assert.InDelta(t, 5, got.TX, 1e-9)
	assert.InDelta(t, -3, got.TY, 1e-9)
}

func TestEstimateAffineRecoversKnownTransform(t *testing.T) {
	want := Affine{M11: 1.1, M12: -0.2, TX: 30, M21: 0.15, M22: 0.95, TY: -8}
	pts := [][2]float64{{0, 0}, {2, 0}, {0, 2}, {-1, 1}, {3, -2}, {1.5, 2.5}}
	corrs := make([]Correspondence, len(pts))
	for i, p := range pts {
		fx, fy := want.Apply(p[0], p[1])
		corrs[i] = Correspondence{ModelX: p[0], ModelY: p[1], FrameX: fx, FrameY: fy}
	}

	got, err := EstimateAffine(corrs, 1000, 1000)
	require.NoError(t, err)
	assert.InDelta(t, want.M11, got.M11, 1e-9)
	assert.InDelta(t, want.M12, got.M12, 1e-9)
	assert.InDelta(t, want.M21, got.M21, 1e-9)
	assert.InDelta(t, want.M22, got.M22, 1e-9)
	assert.InDelta(t, want.TX, got.TX, 1e-9)
	assert.InDelta(t, want.TY, got.TY, 1e-9)
}

func TestEstimateAffineTooFewPoints(t *testing.T) {
	_, err := EstimateAffine(translationCorrs(1, 1)[:2], 1000, 1000)
	assert.ErrorIs(t, err, ErrInsufficientMatches)
}

func TestEstimateAffineImplausible(t *testing.T) {
	// A strong one-sided shear trips the skew bound when it is tight.
	shear := Affine{M11: 1, M12: 2, M21: 0, M22: 1}
	pts := [][2]float64{{0, 0}, {2, 0}, {0, 2}, {-1, 1}, {3, -2}, {1.5, 2.5}}
	corrs := make([]Correspondence, len(pts))
	for i, p := range pts {
		fx, fy := shear.Apply(p[0], p[1])
		corrs[i] = Correspondence{ModelX: p[0], ModelY: p[1], FrameX: fx, FrameY: fy}
	}

	_, err := EstimateAffine(corrs, 1.0, 1000)
	assert.ErrorIs(t, err, ErrImplausibleTransform)

	// The default bounds let the same transform through.
	_, err = EstimateAffine(corrs, 1000, 1000)
	assert.NoError(t, err)
}

func TestParams6Order(t *testing.T) {
	a := Affine{M11: 1, M12: 2, M21: 3, M22: 4, TX: 5, TY: 6}
	assert.Equal(t, [6]float64{1, 2, 3, 4, 5, 6}, a.Params6())
}

func TestMat4ColumnMajor(t *testing.T) {
	a := Affine{M11: 1.5, M12: 0.5, M21: -0.5, M22: 2, TX: 10, TY: 20}
	m := a.Mat4()

	// Column 0 holds the x basis vector, column 3 the translation.
	assert.Equal(t, 1.5, m[0])
	assert.Equal(t, -0.5, m[1])
	assert.Equal(t, 0.5, m[4])
	assert.Equal(t, 2.0, m[5])
	assert.Equal(t, 10.0, m[12])
	assert.Equal(t, 20.0, m[13])
	assert.Equal(t, 1.0, m[15])

	// Mapping a homogeneous point through the matrix matches Apply.
	x, y := a.Apply(3, 4)
	assert.InDelta(t, x, m[0]*3+m[4]*4+m[12], 1e-12)
	assert.InDelta(t, y, m[1]*3+m[5]*4+m[13], 1e-12)
}
