package frame

// isDark computes an 8-bucket histogram over a grayscale plane and
// reports whether more than 95% of pixels fall in bucket 0 (values
// 0-31). The threshold is strict: exactly 95% is not dark.
func isDark(gray []byte) bool {
	if len(gray) == 0 {
		return true
	}

	var bucket0 int
	for _, v := range gray {
		if v < 32 {
			bucket0++
		}
	}

	return float64(bucket0)/float64(len(gray)) > 0.95
}

const (
	claheTileSize = 8 // 8x8 tile grid
	claheClip     = 0.02
	histBins      = 256
)

// clahe applies contrast-limited adaptive histogram equalization: the
// frame is split into an 8x8 grid of tiles, each tile gets a clipped
// histogram equalization mapping (clip limit 2% of per-tile pixel
// count), and the result is bilinearly interpolated between the four
// nearest tile mappings to avoid block seams.
func clahe(gray []byte, width, height int) []byte {
	if width == 0 || height == 0 {
		return gray
	}

	tileW := (width + claheTileSize - 1) / claheTileSize
	tileH := (height + claheTileSize - 1) / claheTileSize

	// mappings[ty][tx] is the 256-entry lookup table for tile (tx,ty).
	mappings := make([][][histBins]byte, claheTileSize)
	for ty := 0; ty < claheTileSize; ty++ {
		mappings[ty] = make([][histBins]byte, claheTileSize)
		for tx := 0; tx < claheTileSize; tx++ {
			x0, x1 := tx*tileW, min(width, (tx+1)*tileW)
			y0, y1 := ty*tileH, min(height, (ty+1)*tileH)
			mappings[ty][tx] = tileMapping(gray, width, x0, y0, x1, y1)
		}
	}

	out := make([]byte, len(gray))
	for y := 0; y < height; y++ {
		// Tile coordinate and fractional position within the tile
		// neighborhood, used for bilinear interpolation.
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := clampInt(int(floor(fy)), 0, claheTileSize-1)
		ty1 := clampInt(ty0+1, 0, claheTileSize-1)
		wy := fy - floor(fy)
		if fy < 0 {
			wy = 0
		}

		for x := 0; x < width; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := clampInt(int(floor(fx)), 0, claheTileSize-1)
			tx1 := clampInt(tx0+1, 0, claheTileSize-1)
			wx := fx - floor(fx)
			if fx < 0 {
				wx = 0
			}

			v := gray[y*width+x]

			v00 := float64(mappings[ty0][tx0][v])
			v01 := float64(mappings[ty0][tx1][v])
			v10 := float64(mappings[ty1][tx0][v])
			v11 := float64(mappings[ty1][tx1][v])

			top := v00*(1-wx) + v01*wx
			bot := v10*(1-wx) + v11*wx
			val := top*(1-wy) + bot*wy

			out[y*width+x] = byte(clampInt(int(val+0.5), 0, 255))
		}
	}

	return out
}

// tileMapping builds the clip-limited, equalized lookup table for the
// pixel rectangle [x0,x1)x[y0,y1) of a width-wide grayscale plane.
func tileMapping(gray []byte, width, x0, y0, x1, y1 int) [histBins]byte {
	var hist [histBins]int
	count := 0
	for y := y0; y < y1; y++ {
		row := y * width
		for x := x0; x < x1; x++ {
			hist[gray[row+x]]++
			count++
		}
	}

	if count == 0 {
		var identity [histBins]byte
		for i := range identity {
			identity[i] = byte(i)
		}
		return identity
	}

	clipLimit := int(claheClip*float64(count) + 0.5)
	if clipLimit < 1 {
		clipLimit = 1
	}

	var excess int
	for i := 0; i < histBins; i++ {
		if hist[i] > clipLimit {
			excess += hist[i] - clipLimit
			hist[i] = clipLimit
		}
	}

	redistribute := excess / histBins
	remainder := excess % histBins
	for i := 0; i < histBins; i++ {
		hist[i] += redistribute
		if i < remainder {
			hist[i]++
		}
	}

	var cdf [histBins]byte
	running := 0
	for i := 0; i < histBins; i++ {
		running += hist[i]
		cdf[i] = byte(clampInt(int(float64(running)*255.0/float64(count)+0.5), 0, 255))
	}
	return cdf
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func floor(f float64) float64 {
	i := int(f)
	if f < 0 && float64(i) != f {
		i--
	}
	return float64(i)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
