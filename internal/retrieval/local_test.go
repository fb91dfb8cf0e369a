package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"persona-agent/internal/domain"
)

func TestNewLocalIndex_EmptyName(t *testing.T) {
	_, err := NewLocalIndex("  ")
	require.Error(t, err)
}

func TestLocalIndex_AddAndQuery(t *testing.T) {
	idx, err := NewLocalIndex("portfolio")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, "a", "go services", domain.Vector{1, 0, 0}, map[string]string{"source": "resume.txt"}))
	require.NoError(t, idx.Add(ctx, "b", "watercolor painting", domain.Vector{0, 1, 0}, map[string]string{"source": "hobbies.md"}))

	matches, err := idx.Query(ctx, domain.Vector{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "a", matches[0].ID)
	require.Equal(t, "go services", matches[0].Text)
	require.Equal(t, "resume.txt", matches[0].Source)
	require.InDelta(t, 1.0, matches[0].Score, 1e-5)
}

func TestLocalIndex_QueryClampsTopK(t *testing.T) {
	idx, err := NewLocalIndex("portfolio")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, "a", "only doc", domain.Vector{1, 0, 0}, nil))

	matches, err := idx.Query(ctx, domain.Vector{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestLocalIndex_QueryEmptyCollection(t *testing.T) {
	idx, err := NewLocalIndex("portfolio")
	require.NoError(t, err)

	matches, err := idx.Query(context.Background(), domain.Vector{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestLocalIndex_AddValidatesID(t *testing.T) {
	idx, err := NewLocalIndex("portfolio")
	require.NoError(t, err)
	require.Error(t, idx.Add(context.Background(), "", "text", domain.Vector{1}, nil))
}
