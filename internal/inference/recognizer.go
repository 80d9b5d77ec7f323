package inference

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// recognizer wraps an ONNX Runtime session for the ArcFace-style face
// embedder: 112x112 input, 512-D raw output, L2-normalized immediately
// after inference.
type recognizer struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
}

func newRecognizer(modelPath string) (*recognizer, error) {
	inputInfo, outputInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect recognizer model %s: %w", modelPath, err)
	}
	if len(inputInfo) == 0 || len(outputInfo) == 0 {
		return nil, fmt.Errorf("recognizer model %s missing input/output tensors", modelPath)
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputInfo[0].Name},
		[]string{outputInfo[0].Name},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create recognizer session for %s: %w", modelPath, err)
	}

	return &recognizer{
		session:    session,
		inputName:  inputInfo[0].Name,
		outputName: outputInfo[0].Name,
	}, nil
}

// Embed runs the recognizer over an aligned 112x112 grayscale crop and
// returns the L2-normalized embedding.
func (r *recognizer) Embed(aligned []byte) (Embedding, error) {
	data := grayToRecognizerInput(aligned)

	inputShape := ort.NewShape(1, 3, int64(RecognizerInputSize), int64(RecognizerInputSize))
	inputTensor, err := ort.NewTensor(inputShape, data)
	if err != nil {
		return Embedding{}, fmt.Errorf("build recognizer input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.ArbitraryTensor, 1)
	if err := r.session.Run([]ort.ArbitraryTensor{inputTensor}, outputs); err != nil {
		return Embedding{}, fmt.Errorf("run recognizer session: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	outT, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return Embedding{}, fmt.Errorf("recognizer output has unexpected tensor type")
	}

	raw := outT.GetData()
	if len(raw) < EmbeddingSize {
		return Embedding{}, fmt.Errorf("recognizer output has %d dims, want %d", len(raw), EmbeddingSize)
	}

	return L2Normalize(raw[:EmbeddingSize], ModelVersion), nil
}

func (r *recognizer) Close() {
	if r.session != nil {
		r.session.Destroy()
	}
}
