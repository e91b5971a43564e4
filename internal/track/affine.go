package track

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Affine is a 2-D affine transform stored as the top two rows of its
// homogeneous 3x3 matrix; the bottom row is implicitly [0 0 1].
//
//	| M11 M12 TX |
//	| M21 M22 TY |
//	|  0   0   1 |
type Affine struct {
	M11, M12, TX float64
	M21, M22, TY float64
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{M11: 1, M22: 1}
}

// Apply maps a point through the transform.
func (a Affine) Apply(x, y float64) (float64, float64) {
	return a.M11*x + a.M12*y + a.TX, a.M21*x + a.M22*y + a.TY
}

// Inverse returns the closed-form inverse of the affine transform.
// Fails when the linear part is singular.
func (a Affine) Inverse() (Affine, error) {
	det := a.M11*a.M22 - a.M12*a.M21
	if math.Abs(det) < 1e-12 {
		return Affine{}, fmt.Errorf("affine inverse: singular matrix (det=%g)", det)
	}
	inv := Affine{
		M11: a.M22 / det,
		M12: -a.M12 / det,
		M21: -a.M21 / det,
		M22: a.M11 / det,
	}
	inv.TX = -(inv.M11*a.TX + inv.M12*a.TY)
	inv.TY = -(inv.M21*a.TX + inv.M22*a.TY)
	return inv, nil
}

// pseudoInverse inverts the homogeneous 3x3 via the Moore-Penrose
// pseudo-inverse, the way the transform used to be inverted before the
// closed form replaced it. Kept for cross-checking in tests: the two
// diverge on near-singular matrices.
func (a Affine) pseudoInverse() (Affine, error) {
	m := mat.NewDense(3, 3, []float64{
		a.M11, a.M12, a.TX,
		a.M21, a.M22, a.TY,
		0, 0, 1,
	})
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDThin) {
		return Affine{}, fmt.Errorf("affine pseudo-inverse: SVD failed")
	}
	rank := svd.Rank(1e-12)
	if rank == 0 {
		return Affine{}, fmt.Errorf("affine pseudo-inverse: zero-rank matrix")
	}
	var pinv mat.Dense
	svd.SolveTo(&pinv, eye3(), rank)
	return Affine{
		M11: pinv.At(0, 0), M12: pinv.At(0, 1), TX: pinv.At(0, 2),
		M21: pinv.At(1, 0), M22: pinv.At(1, 1), TY: pinv.At(1, 2),
	}, nil
}

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// Params6 returns the six affine parameters in estimator order
// [m1, m2, m3, m4, tx, ty].
func (a Affine) Params6() [6]float64 {
	return [6]float64{a.M11, a.M12, a.M21, a.M22, a.TX, a.TY}
}

// Mat4 returns the transform as a column-major 4x4 matrix suitable for
// handing straight to a GL-style renderer.
func (a Affine) Mat4() [16]float64 {
	return [16]float64{
		a.M11, a.M21, 0, 0,
		a.M12, a.M22, 0, 0,
		0, 0, 1, 0,
		a.TX, a.TY, 0, 1,
	}
}

// Correspondence pairs a model-space point with the frame-space point it
// was matched to, together with the descriptor match distance.
type Correspondence struct {
	ModelX, ModelY float64
	FrameX, FrameY float64
	Dist           float32
}

// EstimateAffine solves the overdetermined 2n x 6 linear system mapping
// model points to frame points in the least-squares sense and validates
// the result against the skew and scale-ratio plausibility bounds.
// Requires at least 3 correspondences to constrain the 6 parameters;
// callers enforce their own higher minimum.
func EstimateAffine(corrs []Correspondence, maxSkew, maxScaleRatio float64) (Affine, error) {
	n := len(corrs)
	if n < 3 {
		return Affine{}, ErrInsufficientMatches
	}

	// Each correspondence contributes two rows:
	//   u = m1*x + m2*y + tx
	//   v = m3*x + m4*y + ty
	a := mat.NewDense(2*n, 6, nil)
	b := mat.NewVecDense(2*n, nil)
	for i, c := range corrs {
		a.Set(2*i, 0, c.ModelX)
		a.Set(2*i, 1, c.ModelY)
		a.Set(2*i, 4, 1)
		b.SetVec(2*i, c.FrameX)

		a.Set(2*i+1, 2, c.ModelX)
		a.Set(2*i+1, 3, c.ModelY)
		a.Set(2*i+1, 5, 1)
		b.SetVec(2*i+1, c.FrameY)
	}

	var qr mat.QR
	qr.Factorize(a)
	var p mat.VecDense
	if err := qr.SolveVecTo(&p, false, b); err != nil {
		return Affine{}, fmt.Errorf("affine solve: %w", err)
	}

	t := Affine{
		M11: p.AtVec(0), M12: p.AtVec(1),
		M21: p.AtVec(2), M22: p.AtVec(3),
		TX: p.AtVec(4), TY: p.AtVec(5),
	}

	// The skew bound does not separate a large positive shear on one axis
	// from a cancelling negative shear on the other.
	if math.Abs(t.M12+t.M21) > maxSkew {
		return Affine{}, ErrImplausibleTransform
	}
	if math.Abs(t.M11-t.M22) > maxScaleRatio {
		return Affine{}, ErrImplausibleTransform
	}

	return t, nil
}
