package inference

import (
	"math"
	"testing"
)

func TestSolveSimilarityIdentity(t *testing.T) {
	transform := solveSimilarity(canonicalLandmarks, canonicalLandmarks)
	for _, pt := range canonicalLandmarks {
		x, y := transform.apply(pt[0], pt[1])
		if math.Abs(float64(x-pt[0])) > 1e-2 || math.Abs(float64(y-pt[1])) > 1e-2 {
			t.Fatalf("identity mapping mismatch: got (%f,%f) want (%f,%f)", x, y, pt[0], pt[1])
		}
	}
}

func TestInvertRoundTrips(t *testing.T) {
	src := [5][2]float32{
		{100, 100}, {140, 100}, {120, 120}, {105, 140}, {135, 140},
	}
	transform := solveSimilarity(src, canonicalLandmarks)
	inv := transform.invert()

	for _, pt := range canonicalLandmarks {
		x, y := inv.apply(pt[0], pt[1])
		fx, fy := transform.apply(x, y)
		if math.Abs(float64(fx-pt[0])) > 0.5 || math.Abs(float64(fy-pt[1])) > 0.5 {
			t.Fatalf("round-trip mismatch: got (%f,%f) want (%f,%f)", fx, fy, pt[0], pt[1])
		}
	}
}

func TestLetterboxAlreadySizedFrameKeepsCenterPixels(t *testing.T) {
	size := DetectorInputSize
	gray := make([]byte, size*size)
	for i := range gray {
		gray[i] = 128
	}

	result := letterboxGray(gray, size, size, size, 127.5, 128.0)
	planeSize := size * size
	center := (size/2)*size + size/2
	expected := (float32(128) - 127.5) / 128.0

	if math.Abs(float64(result.Data[center]-expected)) > 1e-3 {
		t.Fatalf("center pixel changed under no-op letterbox: got %f want %f", result.Data[center], expected)
	}
	if result.PadX != 0 || result.PadY != 0 {
		t.Fatalf("already-square input should have zero padding, got padX=%f padY=%f", result.PadX, result.PadY)
	}
	_ = planeSize
}
