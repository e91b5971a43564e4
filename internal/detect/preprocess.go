package detect

import "github.com/phylony/mar-library/internal/track"

// frameToGrayCHW converts a packed RGB24 frame to a [1, targetH, targetW]
// grayscale float tensor scaled to [0, 1], with nearest-neighbour resize.
func frameToGrayCHW(frame *track.Frame, targetW, targetH int) []float32 {
	data := make([]float32, targetH*targetW)
	for y := 0; y < targetH; y++ {
		srcY := y * frame.Height / targetH
		for x := 0; x < targetW; x++ {
			srcX := x * frame.Width / targetW
			i := (srcY*frame.Width + srcX) * 3
			r := float32(frame.Pix[i])
			g := float32(frame.Pix[i+1])
			b := float32(frame.Pix[i+2])
			// ITU-R BT.601 luma
			data[y*targetW+x] = (0.299*r + 0.587*g + 0.114*b) / 255.0
		}
	}
	return data
}
