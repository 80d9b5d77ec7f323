package inference

import (
	"math"
	"testing"
)

func unitEmbedding(seed float32) *Embedding {
	vec := make([]float32, EmbeddingSize)
	for i := range vec {
		vec[i] = seed + float32(i)
	}
	e := L2Normalize(vec, "test")
	return &e
}

func TestL2NormalizeProducesUnitNorm(t *testing.T) {
	e := unitEmbedding(1)
	var sumSq float64
	for _, v := range e.Vector {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit norm, got %f", norm)
	}
}

func TestCosineSimilaritySelfIsOne(t *testing.T) {
	e := unitEmbedding(3)
	sim := CosineSimilarity(e, e)
	if math.Abs(float64(sim)-1) > 1e-5 {
		t.Fatalf("expected self-similarity 1, got %f", sim)
	}
}

func TestCosineSimilarityOrthogonalIsZero(t *testing.T) {
	a := &Embedding{}
	b := &Embedding{}
	a.Vector[0] = 1
	b.Vector[511] = 1
	sim := CosineSimilarity(a, b)
	if sim != 0 {
		t.Fatalf("orthogonal embeddings should have similarity 0, got %f", sim)
	}
}

func TestBestMatchTracksHighestSimilarity(t *testing.T) {
	probe := unitEmbedding(5)
	same := unitEmbedding(5)
	other := unitEmbedding(50)

	result := BestMatch(probe, []*Embedding{other, same})
	if result.BestIndex != 1 {
		t.Fatalf("expected best match at index 1, got %d (sim=%f)", result.BestIndex, result.BestSimilarity)
	}
}

func TestBestMatchEmptyGallery(t *testing.T) {
	probe := unitEmbedding(1)
	result := BestMatch(probe, nil)
	if result.BestIndex != -1 {
		t.Fatalf("expected -1 index for empty gallery, got %d", result.BestIndex)
	}
}

func TestL2NormalizeZeroVectorStaysZero(t *testing.T) {
	vec := make([]float32, EmbeddingSize)
	e := L2Normalize(vec, "test")
	for _, v := range e.Vector {
		if v != 0 {
			t.Fatalf("zero vector should normalize to zero, got %f", v)
		}
	}
}
