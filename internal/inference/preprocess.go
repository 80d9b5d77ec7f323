package inference

// letterboxResult carries the resized/padded CHW tensor plus the scale
// and offsets needed to map detections back to original-frame
// coordinates.
type letterboxResult struct {
	Data   []float32 // 1x3xSxS, NCHW
	Scale  float32   // originalPixels * scale == letterboxedPixels
	PadX   float32
	PadY   float32
}

// letterboxGray resizes a grayscale plane to fit inside an SxS canvas
// while preserving aspect ratio, pads the borders with 127.5, replicates
// the single channel into three, and normalizes by (p-mean)/std using
// half-pixel-aligned bilinear sampling:
//
//	src = (dst + 0.5) * invScale - 0.5
func letterboxGray(gray []byte, width, height, size int, mean, std float32) letterboxResult {
	scale := float32(size) / float32(width)
	if s := float32(size) / float32(height); s < scale {
		scale = s
	}

	scaledW := int(float32(width)*scale + 0.5)
	scaledH := int(float32(height)*scale + 0.5)
	if scaledW > size {
		scaledW = size
	}
	if scaledH > size {
		scaledH = size
	}

	padX := float32(size-scaledW) / 2
	padY := float32(size-scaledH) / 2

	data := make([]float32, 3*size*size)
	planeSize := size * size
	invScale := 1 / scale

	padValue := (127.5 - mean) / std

	for i := range data {
		data[i] = padValue
	}

	for dy := 0; dy < scaledH; dy++ {
		// Sample position in the resized image, then map back to source
		// pixel space with half-pixel alignment.
		srcYf := (float32(dy)+0.5)*invScale - 0.5
		for dx := 0; dx < scaledW; dx++ {
			srcXf := (float32(dx)+0.5)*invScale - 0.5
			v := bilinearGray(gray, width, height, srcXf, srcYf)
			norm := (float32(v) - mean) / std

			py := int(padY) + dy
			px := int(padX) + dx
			if py < 0 || py >= size || px < 0 || px >= size {
				continue
			}
			idx := py*size + px
			data[idx] = norm
			data[planeSize+idx] = norm
			data[2*planeSize+idx] = norm
		}
	}

	return letterboxResult{Data: data, Scale: scale, PadX: padX, PadY: padY}
}

// bilinearGray samples an 8-bit grayscale plane at fractional coordinate
// (x,y), clamping at the borders.
func bilinearGray(gray []byte, width, height int, x, y float32) float32 {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x > float32(width-1) {
		x = float32(width - 1)
	}
	if y > float32(height-1) {
		y = float32(height - 1)
	}

	x0 := int(x)
	y0 := int(y)
	x1 := x0 + 1
	if x1 > width-1 {
		x1 = width - 1
	}
	y1 := y0 + 1
	if y1 > height-1 {
		y1 = height - 1
	}

	fx := x - float32(x0)
	fy := y - float32(y0)

	v00 := float32(gray[y0*width+x0])
	v01 := float32(gray[y0*width+x1])
	v10 := float32(gray[y1*width+x0])
	v11 := float32(gray[y1*width+x1])

	top := v00*(1-fx) + v01*fx
	bot := v10*(1-fx) + v11*fx
	return top*(1-fy) + bot*fy
}

// unletterboxPoint maps a point from letterboxed-canvas coordinates back
// to original-frame pixel coordinates.
func unletterboxPoint(x, y float32, r letterboxResult) (float32, float32) {
	return (x - r.PadX) / r.Scale, (y - r.PadY) / r.Scale
}

// grayToRecognizerInput builds the recognizer's 1x3x112x112 NCHW tensor
// from an aligned 112x112 grayscale crop, replicating the channel and
// normalizing by (p-127.5)/127.5 — a different divisor than the
// detector's preprocessing.
func grayToRecognizerInput(aligned []byte) []float32 {
	size := RecognizerInputSize
	planeSize := size * size
	data := make([]float32, 3*planeSize)
	for i, v := range aligned {
		norm := (float32(v) - 127.5) / 127.5
		data[i] = norm
		data[planeSize+i] = norm
		data[2*planeSize+i] = norm
	}
	return data
}
