package detect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phylony/mar-library/internal/track"
)

// maskFrom lays out a w*h mask from rows of '1' and '0' runes.
func maskFrom(rows []string) ([]bool, int, int) {
	h := len(rows)
	w := len(rows[0])
	mask := make([]bool, w*h)
	for y, row := range rows {
		for x, r := range row {
			mask[y*w+x] = r == '1'
		}
	}
	return mask, w, h
}

func TestLabelComponents(t *testing.T) {
	mask, w, h := maskFrom([]string{
		"1100010",
		"1100010",
		"0000000",
		"0011100",
	})

	comps := labelComponents(mask, w, h)
	require.Len(t, comps, 3)

	sizes := make([]int, len(comps))
	for i, c := range comps {
		sizes[i] = len(c)
	}
	assert.ElementsMatch(t, []int{4, 2, 3}, sizes)
}

func TestLabelComponentsDiagonalNotConnected(t *testing.T) {
	mask, w, h := maskFrom([]string{
		"10",
		"01",
	})
	comps := labelComponents(mask, w, h)
	assert.Len(t, comps, 2)
}

func TestLabelComponentsEmpty(t *testing.T) {
	mask, w, h := maskFrom([]string{"000", "000"})
	assert.Empty(t, labelComponents(mask, w, h))
}

func TestFitEllipseSquareBlob(t *testing.T) {
	// A filled axis-aligned square has equal eigenvalues, so the fitted
	// ellipse is a circle at the square's centre.
	const w = 20
	var comp []int
	for y := 5; y < 15; y++ {
		for x := 5; x < 15; x++ {
			comp = append(comp, y*w+x)
		}
	}

	e := fitEllipse(comp, w)
	assert.InDelta(t, 9.5, e.X, 1e-9)
	assert.InDelta(t, 9.5, e.Y, 1e-9)
	assert.InDelta(t, e.A, e.B, 1e-9)
	assert.Greater(t, e.A, 0.0)
}

func TestFitEllipseElongatedBlob(t *testing.T) {
	// A horizontal bar: the major axis aligns with x and the orientation
	// angle is zero.
	const w = 40
	var comp []int
	for y := 10; y < 14; y++ {
		for x := 2; x < 34; x++ {
			comp = append(comp, y*w+x)
		}
	}

	e := fitEllipse(comp, w)
	assert.InDelta(t, 17.5, e.X, 1e-9)
	assert.InDelta(t, 11.5, e.Y, 1e-9)
	assert.Greater(t, e.A, e.B)
	assert.InDelta(t, 0, e.Angle, 1e-9)

	// Moments of a uniform bar of width n give variance (n*n-1)/12.
	wantA := 2 * math.Sqrt((32*32-1)/12.0)
	assert.InDelta(t, wantA, e.A, 1e-9)
}

func TestNMSKeypoints(t *testing.T) {
	kps := []track.Keypoint{
		{X: 10, Y: 10, Score: 0.9},
		{X: 12, Y: 10, Score: 0.5}, // within radius of the first, suppressed
		{X: 30, Y: 10, Score: 0.7},
		{X: 10, Y: 30, Score: 0.8},
	}

	out := nmsKeypoints(kps, 4)
	require.Len(t, out, 3)
	// Sorted by descending score, suppressed point gone.
	assert.InDelta(t, 0.9, out[0].Score, 1e-6)
	assert.InDelta(t, 0.8, out[1].Score, 1e-6)
	assert.InDelta(t, 0.7, out[2].Score, 1e-6)
}

func TestNMSKeypointsEmpty(t *testing.T) {
	assert.Empty(t, nmsKeypoints(nil, 4))
}

func TestFrameToGrayCHW(t *testing.T) {
	// 2x2 frame: white, black, pure red, pure green.
	frame := &track.Frame{
		Width:  2,
		Height: 2,
		Pix: []byte{
			255, 255, 255, 0, 0, 0,
			255, 0, 0, 0, 255, 0,
		},
	}

	gray := frameToGrayCHW(frame, 2, 2)
	require.Len(t, gray, 4)
	assert.InDelta(t, 1.0, gray[0], 1e-6)
	assert.InDelta(t, 0.0, gray[1], 1e-6)
	assert.InDelta(t, 0.299, gray[2], 1e-6)
	assert.InDelta(t, 0.587, gray[3], 1e-6)
}

func TestFrameToGrayCHWResize(t *testing.T) {
	// 4x2 frame downsampled to 2x1 picks the nearest source pixel.
	frame := &track.Frame{
		Width:  4,
		Height: 2,
		Pix:    make([]byte, 4*2*3),
	}
	// Left half black, right half white.
	for x := 2; x < 4; x++ {
		for y := 0; y < 2; y++ {
			i := (y*4 + x) * 3
			frame.Pix[i], frame.Pix[i+1], frame.Pix[i+2] = 255, 255, 255
		}
	}

	gray := frameToGrayCHW(frame, 2, 1)
	require.Len(t, gray, 2)
	assert.InDelta(t, 0.0, gray[0], 1e-6)
	assert.InDelta(t, 1.0, gray[1], 1e-6)
}
