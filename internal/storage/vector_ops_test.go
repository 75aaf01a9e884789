package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorRoundTrip(t *testing.T) {
	vector := []float32{0.1, -2.5, 3.14159, 0, math.MaxFloat32}

	blob := EncodeVector(vector)
	require.Len(t, blob, len(vector)*4)

	decoded := DecodeVector(blob)
	assert.Equal(t, vector, decoded)
}

func TestVectorEncodeNil(t *testing.T) {
	assert.Nil(t, EncodeVector(nil))
	assert.Nil(t, DecodeVector(nil))
	assert.Nil(t, DecodeVector([]byte{}))
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors score 1", func(t *testing.T) {
		v := []float32{1, 2, 3}
		assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
	})

	t.Run("orthogonal vectors score 0", func(t *testing.T) {
		a := []float32{1, 0, 0}
		b := []float32{0, 1, 0}
		assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-9)
	})

	t.Run("opposite vectors score -1", func(t *testing.T) {
		a := []float32{1, 1}
		b := []float32{-1, -1}
		assert.InDelta(t, -1.0, CosineSimilarity(a, b), 1e-9)
	})

	t.Run("zero vector scores 0 without dividing by zero", func(t *testing.T) {
		a := []float32{0, 0, 0}
		b := []float32{1, 2, 3}
		assert.Equal(t, 0.0, CosineSimilarity(a, b))
		assert.Equal(t, 0.0, CosineSimilarity(a, a))
	})

	t.Run("length mismatch scores 0", func(t *testing.T) {
		assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 2}))
	})

	t.Run("result stays within [-1, 1]", func(t *testing.T) {
		a := []float32{3.7, -1.2, 0.004, 99}
		b := []float32{-0.5, 8.1, 2.2, -7}
		score := CosineSimilarity(a, b)
		assert.GreaterOrEqual(t, score, -1.0)
		assert.LessOrEqual(t, score, 1.0)
	})
}

func TestDotProduct(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 5, 6}
	assert.InDelta(t, 32.0, DotProduct(a, b), 1e-9)
	assert.Equal(t, 0.0, DotProduct(a, []float32{1}))
}

func TestEuclideanSimilarity(t *testing.T) {
	t.Run("identical vectors score 1", func(t *testing.T) {
		v := []float32{1, 2, 3}
		assert.InDelta(t, 1.0, EuclideanSimilarity(v, v), 1e-9)
	})

	t.Run("distance 1 scores 0.5", func(t *testing.T) {
		a := []float32{0, 0}
		b := []float32{1, 0}
		assert.InDelta(t, 0.5, EuclideanSimilarity(a, b), 1e-9)
	})

	t.Run("stays in (0, 1]", func(t *testing.T) {
		a := []float32{100, -200}
		b := []float32{-300, 400}
		score := EuclideanSimilarity(a, b)
		assert.Greater(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	})
}

func TestSimilarityFor(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	assert.InDelta(t, CosineSimilarity(a, b), SimilarityFor(MetricCosine)(a, b), 1e-9)
	assert.InDelta(t, DotProduct(a, b), SimilarityFor(MetricDot)(a, b), 1e-9)
	assert.InDelta(t, EuclideanSimilarity(a, b), SimilarityFor(MetricEuclidean)(a, b), 1e-9)

	// Unknown metric falls back to cosine
	assert.InDelta(t, CosineSimilarity(a, b), SimilarityFor("bogus")(a, b), 1e-9)
}
