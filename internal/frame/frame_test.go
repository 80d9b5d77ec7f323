package frame

import "testing"

func TestIsDarkAllZero(t *testing.T) {
	gray := make([]byte, 100)
	if !isDark(gray) {
		t.Fatal("all-zero frame should be marked dark")
	}
}

func TestIsDarkExactly95PercentNotDark(t *testing.T) {
	// Threshold is strictly greater than 95%: exactly 95% must not be dark.
	gray := make([]byte, 100)
	for i := 0; i < 95; i++ {
		gray[i] = 0
	}
	for i := 95; i < 100; i++ {
		gray[i] = 200
	}
	if isDark(gray) {
		t.Fatal("exactly 95%% in bucket 0 must not be marked dark")
	}
}

func TestIsDarkJustOverThreshold(t *testing.T) {
	gray := make([]byte, 100)
	for i := 0; i < 96; i++ {
		gray[i] = 0
	}
	for i := 96; i < 100; i++ {
		gray[i] = 200
	}
	if !isDark(gray) {
		t.Fatal("96%% in bucket 0 must be marked dark")
	}
}

func TestToGray8Grey8Passthrough(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	out := toGray8(raw, FormatGrey8, 2, 2)
	for i, v := range raw {
		if out[i] != v {
			t.Fatalf("grey8 passthrough mismatch at %d: got %d want %d", i, out[i], v)
		}
	}
}

func TestToGray8YUYVExtractsLuma(t *testing.T) {
	// Y0 U Y1 V for a 2x1 frame.
	raw := []byte{10, 128, 20, 128}
	out := toGray8(raw, FormatYUYV, 2, 1)
	if out[0] != 10 || out[1] != 20 {
		t.Fatalf("yuyv luma extraction wrong: %v", out)
	}
}

func TestToGray8Y16KeepsHighByte(t *testing.T) {
	// Little-endian samples: low byte then high byte.
	raw := []byte{0x00, 0x80, 0xFF, 0x01}
	out := toGray8(raw, FormatY16, 2, 1)
	if out[0] != 0x80 || out[1] != 0x01 {
		t.Fatalf("y16 high-byte extraction wrong: %v", out)
	}
}

func TestClaheUniformFrameStaysUniform(t *testing.T) {
	width, height := 16, 16
	gray := make([]byte, width*height)
	for i := range gray {
		gray[i] = 100
	}
	out := clahe(gray, width, height)
	for i, v := range out {
		if v != out[0] {
			t.Fatalf("uniform input should remain uniform after CLAHE, pixel %d=%d first=%d", i, v, out[0])
		}
	}
}
