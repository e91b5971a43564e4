package detect

import (
	"fmt"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/phylony/mar-library/internal/track"
)

const (
	featInputW = 640
	featInputH = 480

	// The detector head works on 8x8 cells. Channel 64 of the score
	// tensor is the "no keypoint" dustbin.
	cellSize   = 8
	scoreChans = 65
	nmsRadius  = 4
)

// FeatureDetector runs a SuperPoint-style keypoint and descriptor model
// using ONNX Runtime. Model input is a [1, 1, 480, 640] grayscale tensor;
// outputs are cell scores [1, 65, 60, 80] and raw descriptors
// [1, 128, 60, 80].
type FeatureDetector struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	scoreTensor  *ort.Tensor[float32]
	descTensor   *ort.Tensor[float32]
	threshold    float32
	maxKeypoints int
}

// NewFeatureDetector loads the keypoint ONNX model.
// opts may be nil (ORT defaults) or a pre-configured *ort.SessionOptions.
func NewFeatureDetector(modelPath string, threshold float32, maxKeypoints int, opts *ort.SessionOptions) (*FeatureDetector, error) {
	hc := featInputH / cellSize
	wc := featInputW / cellSize

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, featInputH, featInputW))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	scoreTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, scoreChans, int64(hc), int64(wc)))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create score tensor: %w", err)
	}

	descTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, track.DescriptorLen, int64(hc), int64(wc)))
	if err != nil {
		inputTensor.Destroy()
		scoreTensor.Destroy()
		return nil, fmt.Errorf("create descriptor tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"image"},
		[]string{"semi", "desc"},
		[]ort.Value{inputTensor},
		[]ort.Value{scoreTensor, descTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		scoreTensor.Destroy()
		descTensor.Destroy()
		return nil, fmt.Errorf("create feature session: %w", err)
	}

	return &FeatureDetector{
		session:      session,
		inputTensor:  inputTensor,
		scoreTensor:  scoreTensor,
		descTensor:   descTensor,
		threshold:    threshold,
		maxKeypoints: maxKeypoints,
	}, nil
}

// DetectFeatures runs the model on a frame and returns keypoints in
// frame pixel coordinates with unit-norm descriptors.
func (d *FeatureDetector) DetectFeatures(frame *track.Frame) ([]track.Keypoint, error) {
	copy(d.inputTensor.GetData(), frameToGrayCHW(frame, featInputW, featInputH))

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run feature model: %w", err)
	}

	kps := d.decodeScores()
	kps = nmsKeypoints(kps, nmsRadius)
	if len(kps) > d.maxKeypoints {
		kps = kps[:d.maxKeypoints]
	}
	d.attachDescriptors(kps)

	// Back to frame coordinates.
	sx := float64(frame.Width) / float64(featInputW)
	sy := float64(frame.Height) / float64(featInputH)
	for i := range kps {
		kps[i].X *= sx
		kps[i].Y *= sy
	}
	return kps, nil
}

// decodeScores applies a per-cell softmax over the 65 score channels,
// drops the dustbin, and collects pixels above threshold.
func (d *FeatureDetector) decodeScores() []track.Keypoint {
	hc := featInputH / cellSize
	wc := featInputW / cellSize
	semi := d.scoreTensor.GetData()

	var kps []track.Keypoint
	cell := make([]float64, scoreChans)
	for cy := 0; cy < hc; cy++ {
		for cx := 0; cx < wc; cx++ {
			maxLogit := math.Inf(-1)
			for c := 0; c < scoreChans; c++ {
				v := float64(semi[(c*hc+cy)*wc+cx])
				cell[c] = v
				if v > maxLogit {
					maxLogit = v
				}
			}
			var sum float64
			for c := 0; c < scoreChans; c++ {
				cell[c] = math.Exp(cell[c] - maxLogit)
				sum += cell[c]
			}
			for c := 0; c < scoreChans-1; c++ {
				score := float32(cell[c] / sum)
				if score < d.threshold {
					continue
				}
				kps = append(kps, track.Keypoint{
					X:           float64(cx*cellSize + c%cellSize),
					Y:           float64(cy*cellSize + c/cellSize),
					Scale:       1,
					Orientation: 0,
					Score:       score,
				})
			}
		}
	}
	return kps
}

// attachDescriptors samples the coarse descriptor grid at each keypoint's
// cell and L2-normalizes.
func (d *FeatureDetector) attachDescriptors(kps []track.Keypoint) {
	hc := featInputH / cellSize
	wc := featInputW / cellSize
	desc := d.descTensor.GetData()

	for i := range kps {
		cx := int(kps[i].X) / cellSize
		cy := int(kps[i].Y) / cellSize
		if cx >= wc {
			cx = wc - 1
		}
		if cy >= hc {
			cy = hc - 1
		}
		var norm float64
		for c := 0; c < track.DescriptorLen; c++ {
			v := desc[(c*hc+cy)*wc+cx]
			kps[i].Desc[c] = v
			norm += float64(v) * float64(v)
		}
		norm = math.Sqrt(norm)
		if norm > 0 {
			inv := float32(1 / norm)
			for c := 0; c < track.DescriptorLen; c++ {
				kps[i].Desc[c] *= inv
			}
		}
	}
}

// nmsKeypoints keeps the highest-scoring keypoint within radius pixels.
func nmsKeypoints(kps []track.Keypoint, radius float64) []track.Keypoint {
	if len(kps) == 0 {
		return kps
	}
	sort.Slice(kps, func(i, j int) bool { return kps[i].Score > kps[j].Score })

	r2 := radius * radius
	keep := kps[:0]
	for _, kp := range kps {
		ok := true
		for j := range keep {
			dx := kp.X - keep[j].X
			dy := kp.Y - keep[j].Y
			if dx*dx+dy*dy < r2 {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, kp)
		}
	}
	return keep
}

func (d *FeatureDetector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.scoreTensor != nil {
		d.scoreTensor.Destroy()
	}
	if d.descTensor != nil {
		d.descTensor.Destroy()
	}
}
