package embedding

import (
	"encoding/json"
	"errors"
	"fmt"
)

// normalizeEmbeddingResponse flattens the feature-extraction response into a
// plain numeric vector. Depending on the model and API revision the body is
// a flat array, an arbitrarily nested array, or an object carrying the
// vector under an "embedding" or "embeddings" key. Any other shape is an
// error.
func normalizeEmbeddingResponse(raw json.RawMessage) ([]float64, error) {
	if len(raw) == 0 {
		return nil, errors.New("embedding: empty response body")
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}

	if obj, ok := decoded.(map[string]any); ok {
		if v, ok := obj["embedding"]; ok {
			decoded = v
		} else if v, ok := obj["embeddings"]; ok {
			decoded = v
		} else {
			return nil, errors.New("embedding: object response has no embedding field")
		}
	}

	flat := flatten(decoded, nil)
	if flat == nil {
		return nil, errors.New("embedding: response is not a numeric array")
	}
	if len(flat) == 0 {
		return nil, errors.New("embedding: response vector is empty")
	}
	return flat, nil
}

// flatten appends every number reachable through nested arrays to acc.
// It returns nil when a non-numeric, non-array leaf is encountered.
func flatten(v any, acc []float64) []float64 {
	switch val := v.(type) {
	case float64:
		return append(acc, val)
	case []any:
		for _, item := range val {
			acc = flatten(item, acc)
			if acc == nil {
				return nil
			}
		}
		if acc == nil {
			acc = []float64{}
		}
		return acc
	default:
		return nil
	}
}
