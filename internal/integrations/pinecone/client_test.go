package pinecone

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	val string
	err error
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	return f.val, f.err
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, "/persona-agent", "https://idx.svc.pinecone.io")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")

	_, err = NewClient(&fakeGetter{}, " ", "https://idx.svc.pinecone.io")
	require.Error(t, err)
	require.Contains(t, err.Error(), "prefix")

	_, err = NewClient(&fakeGetter{}, "/persona-agent", " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "host")
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		&fakeGetter{val: `{"token":"pc-test"}`},
		"/persona-agent",
		srv.URL,
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func TestQuery_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "pc-test", r.Header.Get("Api-Key"))
		reqBody, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Contains(t, string(reqBody), `"topK":5`)
		require.Contains(t, string(reqBody), `"includeMetadata":true`)
		require.Contains(t, string(reqBody), `"includeValues":false`)
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{
			"matches": [
				{"id": "a", "score": 0.91, "metadata": {"text": "chunk a", "source": "resume.txt"}},
				{"id": "b", "score": 0.72, "metadata": {"text": "chunk b", "source": "projects.md"}}
			]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	matches, err := c.Query(context.Background(), []float64{0.1, 0.2}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "a", matches[0].ID)
	require.InDelta(t, 0.91, matches[0].Score, 1e-9)
	require.Equal(t, "chunk a", matches[0].Metadata["text"])
}

func TestQuery_Validation(t *testing.T) {
	c := newTestClient(t, httptest.NewServer(http.NotFoundHandler()))

	_, err := c.Query(context.Background(), nil, 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "vector")

	_, err = c.Query(context.Background(), []float64{0.1}, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "topK")
}

func TestQuery_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		_, _ = w.Write([]byte(`{"message":"invalid api key"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Query(context.Background(), []float64{0.1}, 3)
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 401, statusErr.HTTPStatusCode())
}

func TestUpsert_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vectors/upsert", r.URL.Path)
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"upsertedCount": 2}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	count, err := c.Upsert(context.Background(), []Vector{
		{ID: "a", Values: []float64{0.1}},
		{ID: "b", Values: []float64{0.2}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestUpsert_Empty(t *testing.T) {
	c := newTestClient(t, httptest.NewServer(http.NotFoundHandler()))
	_, err := c.Upsert(context.Background(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}

func TestDescribeIndexStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/describe_index_stats", r.URL.Path)
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"dimension": 384, "totalVectorCount": 120}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	stats, err := c.DescribeIndexStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 384, stats.Dimension)
	require.Equal(t, 120, stats.TotalVectorCount)
}
