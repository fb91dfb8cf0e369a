package domain

// EmbeddingDim is the fixed dimension of every embedding vector in the
// system; the vector index is built with the same dimension.
const EmbeddingDim = 384

// Vector is a fixed-length, L2-normalized embedding. Lifetime is one
// request; vectors are never persisted by the chat path.
type Vector []float64

// ContextMatch is a single nearest-neighbor result from the vector index.
type ContextMatch struct {
	ID       string
	Score    float64
	Text     string
	Source   string
	Metadata map[string]string
}

// SourceRef is the client-facing citation shape derived from a ContextMatch.
type SourceRef struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
}
