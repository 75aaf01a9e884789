package storage

import (
	"encoding/binary"
	"math"
)

// Vectors are persisted as raw little-endian float32 byte sequences. The
// collection enforces a single dimension, so no length prefix is stored;
// the blob length is always 4*dimension.

// EncodeVector converts a float32 slice to a byte blob (little-endian).
func EncodeVector(vector []float32) []byte {
	if vector == nil {
		return nil
	}
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// DecodeVector converts a byte blob back to a float32 slice.
func DecodeVector(blob []byte) []float32 {
	if len(blob) == 0 {
		return nil
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// SimilarityFunc scores two equal-length vectors. Higher is more similar
// for every metric this package ships.
type SimilarityFunc func(a, b []float32) float64

// SimilarityFor returns the scoring function for the configured metric.
// Unknown metrics fall back to cosine.
func SimilarityFor(metric SimilarityMetric) SimilarityFunc {
	switch metric {
	case MetricDot:
		return DotProduct
	case MetricEuclidean:
		return EuclideanSimilarity
	default:
		return CosineSimilarity
	}
}

// CosineSimilarity computes dot(a,b) / (|a|*|b|), in [-1, 1]. Returns 0 when
// either norm is zero; never divides by zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// DotProduct computes the raw inner product. Unnormalized: larger magnitude
// vectors score higher, so callers wanting magnitude-insensitive ranking
// must normalize upstream.
func DotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// EuclideanSimilarity maps euclidean distance into (0, 1] via 1/(1+dist).
func EuclideanSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return 1.0 / (1.0 + math.Sqrt(sum))
}
