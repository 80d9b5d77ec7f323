package inference

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// Engine owns the loaded detector and recognizer sessions. It is not
// safe for concurrent use — callers must run it on a single dedicated
// goroutine/OS thread, per the daemon's worker model.
type Engine struct {
	det *detector
	rec *recognizer
}

// environmentRefs counts Engine instances sharing the process-wide ORT
// environment, so the last one to close tears it down.
var environmentRefs int

// Load initializes the ONNX Runtime environment (once per process) and
// loads the detector and recognizer models from the given paths.
func Load(detectorPath, recognizerPath string) (*Engine, error) {
	if environmentRefs == 0 {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime environment: %w", err)
		}
	}
	environmentRefs++

	det, err := newDetector(detectorPath)
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	rec, err := newRecognizer(recognizerPath)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load recognizer: %w", err)
	}

	return &Engine{det: det, rec: rec}, nil
}

// Result is one detect->align->embed outcome for a single frame.
type Result struct {
	Box       BoundingBox
	Embedding Embedding
}

// DetectAlignEmbed runs the full per-frame pipeline. Per spec's failure
// taxonomy: zero detections returns (nil, nil) — "no face detected", not
// an error; more than one detection also returns (nil, nil) — treated
// as no usable detection for this frame (ambiguous), not a failure.
func (e *Engine) DetectAlignEmbed(gray []byte, width, height int) (*Result, error) {
	boxes, err := e.det.Detect(gray, width, height)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	if len(boxes) != 1 {
		return nil, nil
	}

	box := boxes[0]
	aligned := alignFace(gray, width, height, box.Landmarks)

	embedding, err := e.rec.Embed(aligned)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	return &Result{Box: box, Embedding: embedding}, nil
}

// Close releases the ONNX Runtime sessions and, if this was the last
// live Engine, the process-wide environment.
func (e *Engine) Close() {
	if e.det != nil {
		e.det.Close()
	}
	if e.rec != nil {
		e.rec.Close()
	}

	environmentRefs--
	if environmentRefs <= 0 {
		environmentRefs = 0
		_ = ort.DestroyEnvironment()
	}
}
