package embedding

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeEmbeddingResponse_FlatArray(t *testing.T) {
	flat, err := normalizeEmbeddingResponse(json.RawMessage(`[0.1, 0.2, 0.3]`))
	require.NoError(t, err)
	require.Equal(t, []float64{0.1, 0.2, 0.3}, flat)
}

func TestNormalizeEmbeddingResponse_NestedArray(t *testing.T) {
	flat, err := normalizeEmbeddingResponse(json.RawMessage(`[[0.1, 0.2], [0.3]]`))
	require.NoError(t, err)
	require.Equal(t, []float64{0.1, 0.2, 0.3}, flat)
}

func TestNormalizeEmbeddingResponse_DeeplyNested(t *testing.T) {
	flat, err := normalizeEmbeddingResponse(json.RawMessage(`[[[0.5], [0.6]]]`))
	require.NoError(t, err)
	require.Equal(t, []float64{0.5, 0.6}, flat)
}

func TestNormalizeEmbeddingResponse_ObjectEmbedding(t *testing.T) {
	flat, err := normalizeEmbeddingResponse(json.RawMessage(`{"embedding": [0.1, 0.2]}`))
	require.NoError(t, err)
	require.Equal(t, []float64{0.1, 0.2}, flat)
}

func TestNormalizeEmbeddingResponse_ObjectEmbeddings(t *testing.T) {
	flat, err := normalizeEmbeddingResponse(json.RawMessage(`{"embeddings": [[0.1], [0.2]]}`))
	require.NoError(t, err)
	require.Equal(t, []float64{0.1, 0.2}, flat)
}

func TestNormalizeEmbeddingResponse_ObjectWithoutEmbedding(t *testing.T) {
	_, err := normalizeEmbeddingResponse(json.RawMessage(`{"error": "model loading"}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no embedding field")
}

func TestNormalizeEmbeddingResponse_NonNumericLeaf(t *testing.T) {
	_, err := normalizeEmbeddingResponse(json.RawMessage(`[0.1, "oops"]`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a numeric array")
}

func TestNormalizeEmbeddingResponse_EmptyVector(t *testing.T) {
	_, err := normalizeEmbeddingResponse(json.RawMessage(`[]`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}

func TestNormalizeEmbeddingResponse_EmptyBody(t *testing.T) {
	_, err := normalizeEmbeddingResponse(nil)
	require.Error(t, err)
}

func TestNormalizeEmbeddingResponse_MalformedJSON(t *testing.T) {
	_, err := normalizeEmbeddingResponse(json.RawMessage(`not-json`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode")
}
