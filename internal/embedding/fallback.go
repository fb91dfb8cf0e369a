package embedding

import (
	"math"
	"strings"

	"persona-agent/internal/domain"
)

// FallbackEmbedding produces a deterministic local embedding: lowercase,
// strip non-alphanumerics, hash each token into one of 384 buckets with a
// polynomial rolling hash, accumulate per-bucket counts and L2-normalize.
// Identical input always yields an identical vector, which keeps retrieval
// reproducible when the remote model is unavailable.
func FallbackEmbedding(text string) domain.Vector {
	vec := make(domain.Vector, domain.EmbeddingDim)

	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' || r == '\t' || r == '\n' {
			b.WriteRune(r)
		}
	}

	for _, word := range strings.Fields(b.String()) {
		hash := 0
		for _, ch := range word {
			hash = (hash*31 + int(ch)) % domain.EmbeddingDim
		}
		vec[hash]++
	}

	return l2Normalize(vec)
}

// l2Normalize divides the vector by its Euclidean norm. A zero vector is
// returned unchanged.
func l2Normalize(vec domain.Vector) domain.Vector {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// reconcileDimension forces the vector to the index dimension, truncating a
// longer vector and zero-padding a shorter one.
func reconcileDimension(vec []float64) domain.Vector {
	if len(vec) == domain.EmbeddingDim {
		return domain.Vector(vec)
	}
	out := make(domain.Vector, domain.EmbeddingDim)
	copy(out, vec)
	return out
}
