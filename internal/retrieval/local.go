package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/philippgille/chromem-go"

	"persona-agent/internal/domain"
)

// LocalIndex is an in-process vector index backed by a chromem collection.
// It serves keyless local development and tests; embeddings are always
// supplied by the caller, so chromem's own embedding functions are unused.
type LocalIndex struct {
	collection *chromem.Collection
}

// NewLocalIndex creates an empty in-memory collection.
func NewLocalIndex(name string) (*LocalIndex, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("retrieval: collection name must not be empty")
	}
	db := chromem.NewDB()
	collection, err := db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieval: create collection: %w", err)
	}
	return &LocalIndex{collection: collection}, nil
}

// Add stores one document chunk with its precomputed embedding.
func (l *LocalIndex) Add(ctx context.Context, id, text string, vector domain.Vector, metadata map[string]string) error {
	if id == "" {
		return errors.New("retrieval: document id must not be empty")
	}
	return l.collection.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   text,
		Metadata:  metadata,
		Embedding: toFloat32(vector),
	})
}

func (l *LocalIndex) Query(ctx context.Context, vector domain.Vector, topK int) ([]domain.ContextMatch, error) {
	// chromem rejects nResults larger than the collection size.
	if count := l.collection.Count(); topK > count {
		topK = count
	}
	if topK == 0 {
		return []domain.ContextMatch{}, nil
	}

	results, err := l.collection.QueryEmbedding(ctx, toFloat32(vector), topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieval: local query: %w", err)
	}

	out := make([]domain.ContextMatch, 0, len(results))
	for _, res := range results {
		source := res.Metadata["source"]
		out = append(out, domain.ContextMatch{
			ID:       res.ID,
			Score:    float64(res.Similarity),
			Text:     res.Content,
			Source:   source,
			Metadata: res.Metadata,
		})
	}
	return out, nil
}

func toFloat32(vec domain.Vector) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
