package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"persona-agent/internal/domain"
)

const (
	defaultMinScore = 0.65
	maxFetchK       = 10
)

// Index is a vector index backend able to return nearest neighbors for an
// embedding. Implemented by RemoteIndex (serverless HTTP index) and
// LocalIndex (in-process chromem collection).
type Index interface {
	Query(ctx context.Context, vector domain.Vector, topK int) ([]domain.ContextMatch, error)
}

// httpStatusCoder exposes the upstream HTTP status carried by integration
// errors, used only for log classification.
type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Searcher applies the retrieval policy on top of an Index: over-fetching,
// score-threshold filtering, descending ordering and top-K capping.
//
// In the default degrade mode any backend failure is logged with a
// classified reason and swallowed into an empty result, so the chat flow
// stays available. In strict mode failures are returned to the caller.
type Searcher struct {
	index    Index
	minScore float64
	strict   bool
	logger   *slog.Logger
}

type Option func(*Searcher)

func WithMinScore(score float64) Option {
	return func(s *Searcher) {
		if score > 0 {
			s.minScore = score
		}
	}
}

// WithStrictFailures makes backend failures surface to the caller instead
// of degrading to an empty result.
func WithStrictFailures() Option {
	return func(s *Searcher) {
		s.strict = true
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSearcher(index Index, opts ...Option) (*Searcher, error) {
	if index == nil {
		return nil, errors.New("retrieval: index must not be nil")
	}
	s := &Searcher{
		index:    index,
		minScore: defaultMinScore,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search returns at most topK matches with score >= the configured
// threshold, ordered by descending score. The backend is asked for more
// neighbors than topK to improve post-filter yield.
func (s *Searcher) Search(ctx context.Context, vector domain.Vector, topK int) ([]domain.ContextMatch, error) {
	if topK <= 0 {
		topK = 3
	}
	fetchK := topK * 2
	if fetchK > maxFetchK {
		fetchK = maxFetchK
	}

	matches, err := s.index.Query(ctx, vector, fetchK)
	if err != nil {
		s.logger.Error("vector index query failed",
			"reason", classifyFailure(err),
			"err", err,
		)
		if s.strict {
			return nil, err
		}
		return []domain.ContextMatch{}, nil
	}

	filtered := make([]domain.ContextMatch, 0, len(matches))
	for _, m := range matches {
		if m.Score >= s.minScore {
			filtered = append(filtered, m)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})
	if len(filtered) > topK {
		filtered = filtered[:topK]
	}
	return filtered, nil
}

// classifyFailure maps a backend error to a stable log label. The label
// never reaches the caller; retrieval failures degrade to empty results.
func classifyFailure(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	var statusErr httpStatusCoder
	if errors.As(err, &statusErr) {
		switch statusErr.HTTPStatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return "authentication"
		case http.StatusNotFound:
			return "index_not_found"
		case http.StatusTooManyRequests:
			return "rate_limited"
		}
		return "upstream"
	}
	return "network"
}
