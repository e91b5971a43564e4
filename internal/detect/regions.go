package detect

import (
	"fmt"
	"math"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/phylony/mar-library/internal/track"
)

const (
	regInputW = 320
	regInputH = 240
)

// RegionDetector runs a binary segmentation model and fits an ellipse to
// each connected component of the mask. Model input is a
// [1, 1, 240, 320] grayscale tensor; output is a per-pixel foreground
// probability of the same spatial size.
type RegionDetector struct {
	session     *ort.AdvancedSession
	inputTensor *ort.Tensor[float32]
	maskTensor  *ort.Tensor[float32]
	threshold   float32
	minArea     float64
	maxArea     float64
}

func NewRegionDetector(modelPath string, threshold float32, minArea, maxArea float64, opts *ort.SessionOptions) (*RegionDetector, error) {
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, regInputH, regInputW))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	maskTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, regInputH, regInputW))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create mask tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"image"},
		[]string{"mask"},
		[]ort.Value{inputTensor},
		[]ort.Value{maskTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		maskTensor.Destroy()
		return nil, fmt.Errorf("create region session: %w", err)
	}

	return &RegionDetector{
		session:     session,
		inputTensor: inputTensor,
		maskTensor:  maskTensor,
		threshold:   threshold,
		minArea:     minArea,
		maxArea:     maxArea,
	}, nil
}

// DetectRegions segments the frame and returns one ellipse per connected
// foreground component within the area bounds, in frame coordinates.
func (d *RegionDetector) DetectRegions(frame *track.Frame) ([]track.Ellipse, error) {
	copy(d.inputTensor.GetData(), frameToGrayCHW(frame, regInputW, regInputH))

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run region model: %w", err)
	}

	probs := d.maskTensor.GetData()
	mask := make([]bool, len(probs))
	for i, p := range probs {
		mask[i] = p >= d.threshold
	}

	comps := labelComponents(mask, regInputW, regInputH)

	sx := float64(frame.Width) / float64(regInputW)
	sy := float64(frame.Height) / float64(regInputH)
	areaScale := sx * sy

	var regions []track.Ellipse
	for _, comp := range comps {
		if float64(len(comp))*areaScale < d.minArea || float64(len(comp))*areaScale > d.maxArea {
			continue
		}
		e := fitEllipse(comp, regInputW)
		e.X *= sx
		e.Y *= sy
		e.A *= sx
		e.B *= sy
		regions = append(regions, e)
	}
	return regions, nil
}

func (d *RegionDetector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.maskTensor != nil {
		d.maskTensor.Destroy()
	}
}

// labelComponents finds 4-connected components of the mask with an
// iterative flood fill. Each component is the list of its pixel indices.
func labelComponents(mask []bool, w, h int) [][]int {
	visited := make([]bool, len(mask))
	var comps [][]int
	var stack []int

	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}
		var comp []int
		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, i)

			x := i % w
			y := i / w
			if x > 0 && mask[i-1] && !visited[i-1] {
				visited[i-1] = true
				stack = append(stack, i-1)
			}
			if x < w-1 && mask[i+1] && !visited[i+1] {
				visited[i+1] = true
				stack = append(stack, i+1)
			}
			if y > 0 && mask[i-w] && !visited[i-w] {
				visited[i-w] = true
				stack = append(stack, i-w)
			}
			if y < h-1 && mask[i+w] && !visited[i+w] {
				visited[i+w] = true
				stack = append(stack, i+w)
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

// fitEllipse derives an ellipse from the image moments of a component:
// centroid from the first moments, axes and orientation from the
// eigendecomposition of the second central moments.
func fitEllipse(comp []int, w int) track.Ellipse {
	n := float64(len(comp))
	var mx, my float64
	for _, i := range comp {
		mx += float64(i % w)
		my += float64(i / w)
	}
	mx /= n
	my /= n

	var mu20, mu02, mu11 float64
	for _, i := range comp {
		dx := float64(i%w) - mx
		dy := float64(i/w) - my
		mu20 += dx * dx
		mu02 += dy * dy
		mu11 += dx * dy
	}
	mu20 /= n
	mu02 /= n
	mu11 /= n

	common := math.Sqrt(math.Pow(mu20-mu02, 2)/4 + mu11*mu11)
	l1 := (mu20+mu02)/2 + common
	l2 := (mu20+mu02)/2 - common
	if l2 < 0 {
		l2 = 0
	}

	return track.Ellipse{
		X:     mx,
		Y:     my,
		A:     2 * math.Sqrt(l1),
		B:     2 * math.Sqrt(l2),
		Angle: 0.5 * math.Atan2(2*mu11, mu20-mu02),
	}
}
