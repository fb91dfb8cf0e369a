package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"persona-agent/internal/domain"
)

type fakeIndex struct {
	matches []domain.ContextMatch
	err     error
	gotTopK int
}

func (f *fakeIndex) Query(_ context.Context, _ domain.Vector, topK int) ([]domain.ContextMatch, error) {
	f.gotTopK = topK
	return f.matches, f.err
}

func queryVector() domain.Vector {
	return domain.Vector{0.1, 0.2, 0.3}
}

func TestNewSearcher_NilIndex(t *testing.T) {
	_, err := NewSearcher(nil)
	require.Error(t, err)
}

func TestSearch_FiltersBelowThreshold(t *testing.T) {
	idx := &fakeIndex{matches: []domain.ContextMatch{
		{ID: "a", Score: 0.90},
		{ID: "b", Score: 0.50},
		{ID: "c", Score: 0.70},
	}}
	s, err := NewSearcher(idx)
	require.NoError(t, err)

	matches, err := s.Search(context.Background(), queryVector(), 3)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "a", matches[0].ID)
	require.Equal(t, "c", matches[1].ID)
}

func TestSearch_SortsDescendingAndCapsTopK(t *testing.T) {
	idx := &fakeIndex{matches: []domain.ContextMatch{
		{ID: "low", Score: 0.70},
		{ID: "high", Score: 0.95},
		{ID: "mid", Score: 0.80},
	}}
	s, err := NewSearcher(idx)
	require.NoError(t, err)

	matches, err := s.Search(context.Background(), queryVector(), 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "high", matches[0].ID)
	require.Equal(t, "mid", matches[1].ID)
}

func TestSearch_OverFetchesCapped(t *testing.T) {
	idx := &fakeIndex{}
	s, err := NewSearcher(idx)
	require.NoError(t, err)

	_, err = s.Search(context.Background(), queryVector(), 3)
	require.NoError(t, err)
	require.Equal(t, 6, idx.gotTopK, "fetch twice topK")

	_, err = s.Search(context.Background(), queryVector(), 8)
	require.NoError(t, err)
	require.Equal(t, 10, idx.gotTopK, "fetch is capped")
}

func TestSearch_DefaultTopK(t *testing.T) {
	idx := &fakeIndex{}
	s, err := NewSearcher(idx)
	require.NoError(t, err)

	_, err = s.Search(context.Background(), queryVector(), 0)
	require.NoError(t, err)
	require.Equal(t, 6, idx.gotTopK)
}

func TestSearch_CustomMinScore(t *testing.T) {
	idx := &fakeIndex{matches: []domain.ContextMatch{
		{ID: "a", Score: 0.40},
		{ID: "b", Score: 0.30},
	}}
	s, err := NewSearcher(idx, WithMinScore(0.35))
	require.NoError(t, err)

	matches, err := s.Search(context.Background(), queryVector(), 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "a", matches[0].ID)
}

func TestSearch_BackendFailureDegradesToEmpty(t *testing.T) {
	idx := &fakeIndex{err: errors.New("connection refused")}
	s, err := NewSearcher(idx)
	require.NoError(t, err)

	matches, err := s.Search(context.Background(), queryVector(), 3)
	require.NoError(t, err)
	require.Empty(t, matches)
	require.NotNil(t, matches, "degraded result is an empty slice, not nil")
}

func TestSearch_StrictModeSurfacesFailure(t *testing.T) {
	backendErr := errors.New("connection refused")
	idx := &fakeIndex{err: backendErr}
	s, err := NewSearcher(idx, WithStrictFailures())
	require.NoError(t, err)

	_, err = s.Search(context.Background(), queryVector(), 3)
	require.ErrorIs(t, err, backendErr)
}

type codedError struct{ code int }

func (e *codedError) Error() string       { return "coded" }
func (e *codedError) HTTPStatusCode() int { return e.code }

func TestClassifyFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"canceled", context.Canceled, "timeout"},
		{"unauthorized", &codedError{401}, "authentication"},
		{"forbidden", &codedError{403}, "authentication"},
		{"not found", &codedError{404}, "index_not_found"},
		{"rate limited", &codedError{429}, "rate_limited"},
		{"server error", &codedError{500}, "upstream"},
		{"plain", errors.New("boom"), "network"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, classifyFailure(tc.err))
		})
	}
}
