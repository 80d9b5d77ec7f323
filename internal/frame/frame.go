// Package frame implements the capture pipeline (C1): device open with
// format negotiation, streaming capture, conversion to 8-bit grayscale,
// dark-frame rejection, and contrast enhancement.
package frame

import (
	"time"

	"github.com/vladimirvivien/go4vl/v4l2"
)

// PixelFormat is one of the three formats the pipeline accepts at
// device-open time.
type PixelFormat int

const (
	// FormatGrey8 is 8-bit grayscale, passed through unchanged.
	FormatGrey8 PixelFormat = iota
	// FormatYUYV is 4:2:2 packed luma/chroma; the luma plane is every
	// other byte.
	FormatYUYV
	// FormatY16 is 16-bit little-endian grayscale; the high byte of each
	// sample is kept.
	FormatY16
)

func (p PixelFormat) String() string {
	switch p {
	case FormatGrey8:
		return "grey8"
	case FormatYUYV:
		return "yuyv"
	case FormatY16:
		return "y16"
	default:
		return "unknown"
	}
}

// fourCCToFormat maps the driver-negotiated FourCC to one of the three
// supported PixelFormat values. Any other FourCC is rejected.
func fourCCToFormat(fcc v4l2.FourCCType) (PixelFormat, bool) {
	switch fcc {
	case v4l2.PixelFmtGrey:
		return FormatGrey8, true
	case v4l2.PixelFmtYUYV:
		return FormatYUYV, true
	case v4l2.PixelFmtY16:
		return FormatY16, true
	default:
		return 0, false
	}
}

// Frame is a captured camera frame after conversion to 8-bit grayscale
// and, unless dark, contrast enhancement.
type Frame struct {
	Data      []byte // length == Width*Height
	Width     int
	Height    int
	Timestamp time.Time
	Sequence  uint32
	IsDark    bool
}
