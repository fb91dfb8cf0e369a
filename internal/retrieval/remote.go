package retrieval

import (
	"context"
	"errors"
	"fmt"

	"persona-agent/internal/domain"
	"persona-agent/internal/integrations/pinecone"
)

// vectorIndexAPI is the minimal index surface RemoteIndex requires.
// *pinecone.Client satisfies this interface.
type vectorIndexAPI interface {
	Query(ctx context.Context, vector []float64, topK int) ([]pinecone.Match, error)
}

// RemoteIndex adapts the serverless vector index client to the Index
// interface, translating raw match metadata into ContextMatch fields.
type RemoteIndex struct {
	api vectorIndexAPI
}

func NewRemoteIndex(api vectorIndexAPI) (*RemoteIndex, error) {
	if api == nil {
		return nil, errors.New("retrieval: index api must not be nil")
	}
	return &RemoteIndex{api: api}, nil
}

func (r *RemoteIndex) Query(ctx context.Context, vector domain.Vector, topK int) ([]domain.ContextMatch, error) {
	matches, err := r.api.Query(ctx, []float64(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: remote query: %w", err)
	}

	out := make([]domain.ContextMatch, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchToContext(m))
	}
	return out, nil
}

func matchToContext(m pinecone.Match) domain.ContextMatch {
	meta := make(map[string]string, len(m.Metadata))
	for k, v := range m.Metadata {
		switch val := v.(type) {
		case string:
			meta[k] = val
		default:
			meta[k] = fmt.Sprintf("%v", val)
		}
	}
	return domain.ContextMatch{
		ID:       m.ID,
		Score:    m.Score,
		Text:     meta["text"],
		Source:   meta["source"],
		Metadata: meta,
	}
}
