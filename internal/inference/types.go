// Package inference implements the detection/alignment/recognition/
// matching pipeline (C3): ONNX Runtime-backed face detector and
// recognizer, similarity-transform alignment, and constant-time
// embedding comparison.
package inference

// BoundingBox is a detected face in original-frame pixel coordinates.
type BoundingBox struct {
	X, Y, Width, Height float32
	Confidence          float32
	// Landmarks holds five points in order: left eye, right eye, nose
	// tip, left mouth corner, right mouth corner.
	Landmarks [5][2]float32
}

// EmbeddingSize is the fixed output dimensionality of the recognizer.
const EmbeddingSize = 512

// ModelVersion tags every embedding extracted by this build's recognizer.
const ModelVersion = "w600k_r50"

// Embedding is a 512-D L2-normalized feature vector.
type Embedding struct {
	Vector       [EmbeddingSize]float32
	ModelVersion string
}

// DetectionConfidenceThreshold is the strict lower bound (exclusive) for
// a detection to be kept.
const DetectionConfidenceThreshold = 0.5

// NMSIoUThreshold is the IoU cutoff for non-max suppression.
const NMSIoUThreshold = 0.4

// DetectorInputSize is the fixed square input the detector operates on.
const DetectorInputSize = 640

// RecognizerInputSize is the fixed square input the recognizer operates on.
const RecognizerInputSize = 112
