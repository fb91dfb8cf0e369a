package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"persona-agent/internal/integrations/pinecone"
)

type fakeIndexAPI struct {
	matches []pinecone.Match
	err     error
}

func (f *fakeIndexAPI) Query(_ context.Context, _ []float64, _ int) ([]pinecone.Match, error) {
	return f.matches, f.err
}

func TestNewRemoteIndex_NilAPI(t *testing.T) {
	_, err := NewRemoteIndex(nil)
	require.Error(t, err)
}

func TestRemoteIndex_Query(t *testing.T) {
	api := &fakeIndexAPI{matches: []pinecone.Match{
		{
			ID:    "a",
			Score: 0.91,
			Metadata: map[string]any{
				"text":   "worked on distributed systems",
				"source": "resume.txt",
				"chunk":  float64(3),
			},
		},
	}}
	idx, err := NewRemoteIndex(api)
	require.NoError(t, err)

	matches, err := idx.Query(context.Background(), queryVector(), 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	require.Equal(t, "a", m.ID)
	require.InDelta(t, 0.91, m.Score, 1e-9)
	require.Equal(t, "worked on distributed systems", m.Text)
	require.Equal(t, "resume.txt", m.Source)
	require.Equal(t, "3", m.Metadata["chunk"], "non-string metadata is stringified")
}

func TestRemoteIndex_QueryError(t *testing.T) {
	api := &fakeIndexAPI{err: errors.New("boom")}
	idx, err := NewRemoteIndex(api)
	require.NoError(t, err)

	_, err = idx.Query(context.Background(), queryVector(), 3)
	require.Error(t, err)
	require.ErrorContains(t, err, "boom")
}
