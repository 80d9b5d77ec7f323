package inference

import (
	"fmt"
	"sort"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// detector wraps an ONNX Runtime session for the SCRFD-style face
// detector: three stride levels (8, 16, 32), each producing scores,
// bbox regressions, and 5-point landmark offsets over a 2-anchor grid.
type detector struct {
	session   *ort.DynamicAdvancedSession
	inputName string
	// outputOrder gives, for each of the 9 expected outputs, its
	// resolved position in the session's actual output list. Resolved at
	// load time by name pattern, falling back to the positional layout
	// {score0,bbox0,kps0,score1,bbox1,kps1,score2,bbox2,kps2} unless
	// every slot matches a name.
	outputOrder [9]int
	outputNames []string
}

var strides = [3]int{8, 16, 32}

// newDetector loads the detector model and resolves its input/output
// tensor names.
func newDetector(modelPath string) (*detector, error) {
	inputInfo, outputInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect detector model %s: %w", modelPath, err)
	}
	if len(inputInfo) == 0 {
		return nil, fmt.Errorf("detector model %s exposes no inputs", modelPath)
	}
	if len(outputInfo) < 9 {
		return nil, fmt.Errorf("detector model %s exposes %d outputs, want >= 9", modelPath, len(outputInfo))
	}

	outputNames := make([]string, len(outputInfo))
	for i, info := range outputInfo {
		outputNames[i] = info.Name
	}

	order := resolveDetectorOutputOrder(outputNames)

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{inputInfo[0].Name}, outputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("create detector session for %s: %w", modelPath, err)
	}

	return &detector{
		session:     session,
		inputName:   inputInfo[0].Name,
		outputOrder: order,
		outputNames: outputNames,
	}, nil
}

// resolveDetectorOutputOrder matches output tensor names against the
// conventional score/bbox/kps naming per stride. If any slot is
// unmatched, the whole mapping falls back to the positional layout
// {score0=0, bbox0=1, kps0=2, score1=3, ...}.
func resolveDetectorOutputOrder(names []string) [9]int {
	var order [9]int
	for i := range order {
		order[i] = i
	}

	kinds := [3]string{"score", "bbox", "kps"}
	matched := true
	for s := 0; s < 3; s++ {
		for k := 0; k < 3; k++ {
			slot := s*3 + k
			idx := findOutputByName(names, kinds[k], s)
			if idx < 0 {
				matched = false
				continue
			}
			order[slot] = idx
		}
	}
	if !matched {
		for i := range order {
			order[i] = i
		}
	}
	return order
}

func findOutputByName(names []string, kind string, strideIdx int) int {
	stride := strides[strideIdx]
	for i, n := range names {
		lower := strings.ToLower(n)
		if strings.Contains(lower, kind) && strings.Contains(lower, fmt.Sprintf("%d", stride)) {
			return i
		}
	}
	return -1
}

// rawDetection is one anchor-grid candidate before NMS.
type rawDetection struct {
	box        BoundingBox
	confidence float32
}

// Detect runs the detector over a letterboxed frame and returns
// detections in original-frame coordinates above the confidence
// threshold, after non-max suppression.
func (d *detector) Detect(gray []byte, width, height int) ([]BoundingBox, error) {
	lb := letterboxGray(gray, width, height, DetectorInputSize, 127.5, 128.0)

	inputShape := ort.NewShape(1, 3, int64(DetectorInputSize), int64(DetectorInputSize))
	inputTensor, err := ort.NewTensor(inputShape, lb.Data)
	if err != nil {
		return nil, fmt.Errorf("build detector input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.ArbitraryTensor, len(d.outputNames))
	if err := d.session.Run([]ort.ArbitraryTensor{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("run detector session: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	var candidates []rawDetection
	for s := 0; s < 3; s++ {
		scoreT, ok := outputs[d.outputOrder[s*3+0]].(*ort.Tensor[float32])
		if !ok {
			continue
		}
		bboxT, ok := outputs[d.outputOrder[s*3+1]].(*ort.Tensor[float32])
		if !ok {
			continue
		}
		kpsT, ok := outputs[d.outputOrder[s*3+2]].(*ort.Tensor[float32])
		if !ok {
			continue
		}

		candidates = append(candidates, decodeStride(strides[s], scoreT.GetData(), bboxT.GetData(), kpsT.GetData(), lb)...)
	}

	return nonMaxSuppress(candidates), nil
}

// decodeStride decodes one stride level's anchor grid into candidate
// detections above the confidence threshold, in original-frame
// coordinates.
func decodeStride(stride int, scores, bboxes, kps []float32, lb letterboxResult) []rawDetection {
	gridSize := DetectorInputSize / stride
	const anchorsPerCell = 2

	var out []rawDetection
	idx := 0
	for cy := 0; cy < gridSize; cy++ {
		for cx := 0; cx < gridSize; cx++ {
			for a := 0; a < anchorsPerCell; a++ {
				if idx >= len(scores) {
					return out
				}
				conf := scores[idx]
				if conf <= DetectionConfidenceThreshold {
					idx++
					continue
				}

				anchorX := float32(cx * stride)
				anchorY := float32(cy * stride)

				bOff := idx * 4
				kOff := idx * 10
				if bOff+4 > len(bboxes) || kOff+10 > len(kps) {
					idx++
					continue
				}

				centerX := anchorX + bboxes[bOff+0]*float32(stride)
				centerY := anchorY + bboxes[bOff+1]*float32(stride)
				w := bboxes[bOff+2] * float32(stride)
				h := bboxes[bOff+3] * float32(stride)

				x1, y1 := unletterboxPoint(centerX-w/2, centerY-h/2, lb)
				x2, y2 := unletterboxPoint(centerX+w/2, centerY+h/2, lb)

				var landmarks [5][2]float32
				for p := 0; p < 5; p++ {
					lx := anchorX + kps[kOff+p*2+0]*float32(stride)
					ly := anchorY + kps[kOff+p*2+1]*float32(stride)
					landmarks[p][0], landmarks[p][1] = unletterboxPoint(lx, ly, lb)
				}

				out = append(out, rawDetection{
					box: BoundingBox{
						X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1,
						Confidence: conf,
						Landmarks:  landmarks,
					},
					confidence: conf,
				})
				idx++
			}
		}
	}
	return out
}

func nonMaxSuppress(candidates []rawDetection) []BoundingBox {
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].confidence > candidates[j].confidence
	})

	kept := make([]bool, len(candidates))
	var result []BoundingBox

	for i := range candidates {
		if kept[i] {
			continue
		}
		kept[i] = true
		result = append(result, candidates[i].box)

		for j := i + 1; j < len(candidates); j++ {
			if kept[j] {
				continue
			}
			if iou(candidates[i].box, candidates[j].box) > NMSIoUThreshold {
				kept[j] = true // suppressed
			}
		}
	}
	return result
}

func iou(a, b BoundingBox) float32 {
	ax1, ay1, ax2, ay2 := a.X, a.Y, a.X+a.Width, a.Y+a.Height
	bx1, by1, bx2, by2 := b.X, b.Y, b.X+b.Width, b.Y+b.Height

	ix1, iy1 := maxf(ax1, bx1), maxf(ay1, by1)
	ix2, iy2 := minf(ax2, bx2), minf(ay2, by2)

	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.Width*a.Height + b.Width*b.Height - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func (d *detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
}
