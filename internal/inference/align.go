package inference

// canonicalLandmarks are the five ArcFace reference points for a
// 112x112 aligned crop.
var canonicalLandmarks = [5][2]float32{
	{38.2946, 51.6963},
	{73.5318, 51.5014},
	{56.0252, 71.7366},
	{41.5493, 92.3655},
	{70.7299, 92.2041},
}

// similarityTransform holds the 4-DOF (uniform scale, rotation,
// translation) mapping src -> dst, represented as
//
//	x' = a*x - b*y + tx
//	y' = b*x + a*y + ty
type similarityTransform struct {
	a, b, tx, ty float32
}

// solveSimilarity fits a 4-DOF similarity transform mapping src points to
// dst points by least squares (10 equations, 4 unknowns), solved via
// Gaussian elimination with partial pivoting on the 4x4 normal-equations
// system A^T A w = A^T b.
func solveSimilarity(src, dst [5][2]float32) similarityTransform {
	// Normal equations accumulator for unknowns [a, b, tx, ty].
	var ata [4][4]float64
	var atb [4]float64

	for i := 0; i < 5; i++ {
		x, y := float64(src[i][0]), float64(src[i][1])
		xp, yp := float64(dst[i][0]), float64(dst[i][1])

		// Row 1: a*x - b*y + tx        = xp
		row1 := [4]float64{x, -y, 1, 0}
		// Row 2: a*y + b*x       + ty  = yp
		row2 := [4]float64{y, x, 0, 1}

		accumulateNormalRow(&ata, &atb, row1, xp)
		accumulateNormalRow(&ata, &atb, row2, yp)
	}

	w := gaussianSolve(ata, atb)
	return similarityTransform{a: float32(w[0]), b: float32(w[1]), tx: float32(w[2]), ty: float32(w[3])}
}

func accumulateNormalRow(ata *[4][4]float64, atb *[4]float64, row [4]float64, rhs float64) {
	for i := 0; i < 4; i++ {
		atb[i] += row[i] * rhs
		for j := 0; j < 4; j++ {
			ata[i][j] += row[i] * row[j]
		}
	}
}

// gaussianSolve solves a 4x4 linear system via Gaussian elimination with
// partial pivoting.
func gaussianSolve(a [4][4]float64, b [4]float64) [4]float64 {
	var m [4][5]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m[i][j] = a[i][j]
		}
		m[i][4] = b[i]
	}

	for col := 0; col < 4; col++ {
		pivot := col
		for r := col + 1; r < 4; r++ {
			if abs64(m[r][col]) > abs64(m[pivot][col]) {
				pivot = r
			}
		}
		m[col], m[pivot] = m[pivot], m[col]

		if abs64(m[col][col]) < 1e-12 {
			continue
		}

		for r := 0; r < 4; r++ {
			if r == col {
				continue
			}
			factor := m[r][col] / m[col][col]
			for c := col; c < 5; c++ {
				m[r][c] -= factor * m[col][c]
			}
		}
	}

	var x [4]float64
	for i := 0; i < 4; i++ {
		if abs64(m[i][i]) < 1e-12 {
			x[i] = 0
			continue
		}
		x[i] = m[i][4] / m[i][i]
	}
	return x
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// invert returns the inverse mapping dst -> src of a similarity
// transform, used to sample the source image while producing an
// aligned crop in canonical (destination) space.
func (t similarityTransform) invert() similarityTransform {
	denom := float64(t.a)*float64(t.a) + float64(t.b)*float64(t.b)
	if denom < 1e-12 {
		return similarityTransform{a: 1}
	}
	invA := float32(float64(t.a) / denom)
	invB := float32(-float64(t.b) / denom)
	// Inverse translation: -R^{-1} * t
	itx := -invA*t.tx + invB*t.ty
	ity := -(invB*t.tx + invA*t.ty)
	return similarityTransform{a: invA, b: invB, tx: itx, ty: ity}
}

func (t similarityTransform) apply(x, y float32) (float32, float32) {
	return t.a*x - t.b*y + t.tx, t.b*x + t.a*y + t.ty
}

// alignFace solves the similarity transform taking the detected
// landmarks to the canonical reference points, then applies its inverse
// with bilinear sampling to produce a 112x112 aligned grayscale crop.
func alignFace(gray []byte, width, height int, landmarks [5][2]float32) []byte {
	transform := solveSimilarity(landmarks, canonicalLandmarks).invert()

	size := RecognizerInputSize
	out := make([]byte, size*size)
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			sx, sy := transform.apply(float32(dx), float32(dy))
			out[dy*size+dx] = byte(clampf(bilinearGray(gray, width, height, sx, sy), 0, 255) + 0.5)
		}
	}
	return out
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
