package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"persona-agent/internal/domain"
)

const (
	defaultModel       = "sentence-transformers/all-MiniLM-L6-v2"
	defaultMaxInputLen = 512
	defaultTimeout     = 10 * time.Second
)

// FeatureExtractor is the remote embedding surface the provider depends on.
// *huggingface.Client satisfies this interface.
type FeatureExtractor interface {
	FeatureExtraction(ctx context.Context, model, input string) (json.RawMessage, error)
}

// httpStatusCoder distinguishes definite upstream rejections from transient
// transport failures when deciding whether a retry is worthwhile.
type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Provider turns text into a fixed-length L2-normalized vector. Embed never
// fails: when the remote model is unreachable, times out, or returns a
// malformed body, the deterministic local fallback is used instead.
type Provider struct {
	extractor   FeatureExtractor
	model       string
	maxInputLen int
	timeout     time.Duration
	logger      *slog.Logger

	cacheEnabled bool
	cache        sync.Map // normalized text -> domain.Vector
}

type Option func(*Provider)

func WithModel(model string) Option {
	return func(p *Provider) {
		if strings.TrimSpace(model) != "" {
			p.model = model
		}
	}
}

func WithMaxInputLen(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.maxInputLen = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithCache enables the process-wide read-through memoization of embeddings
// keyed by normalized input text. Only remote results are stored. Best
// effort only; entries are never evicted.
func WithCache() Option {
	return func(p *Provider) {
		p.cacheEnabled = true
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvider creates a Provider. A nil extractor is allowed and routes
// every call straight to the local fallback, which keeps the pipeline
// usable without a remote embedding key.
func NewProvider(extractor FeatureExtractor, opts ...Option) *Provider {
	p := &Provider{
		extractor:   extractor,
		model:       defaultModel,
		maxInputLen: defaultMaxInputLen,
		timeout:     defaultTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Embed returns the embedding for text. The result always has exactly
// domain.EmbeddingDim entries and unit L2 norm, except that the embedding
// of empty input is the zero vector.
func (p *Provider) Embed(ctx context.Context, text string) domain.Vector {
	clean := domain.TruncateRunes(strings.TrimSpace(text), p.maxInputLen)
	if clean == "" {
		return FallbackEmbedding("")
	}

	cacheKey := strings.ToLower(clean)
	if p.cacheEnabled {
		if v, ok := p.cache.Load(cacheKey); ok {
			return cloneVector(v.(domain.Vector))
		}
	}

	vec := p.remoteEmbed(ctx, clean)
	if vec == nil {
		// Fallback vectors are never cached, so the remote model is
		// tried again once it recovers.
		return FallbackEmbedding(clean)
	}

	if p.cacheEnabled {
		p.cache.Store(cacheKey, cloneVector(vec))
	}
	return vec
}

// remoteEmbed attempts the remote model, retrying once on a transient
// transport failure. It returns nil when the caller should fall back.
func (p *Provider) remoteEmbed(ctx context.Context, input string) domain.Vector {
	if p.extractor == nil {
		return nil
	}

	for attempt := 1; attempt <= 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		raw, err := p.extractor.FeatureExtraction(callCtx, p.model, input)
		cancel()
		if err != nil {
			if attempt == 1 && isTransient(err) {
				p.logger.Warn("embedding attempt failed, retrying", "model", p.model, "err", err)
				continue
			}
			p.logger.Warn("remote embedding failed, using fallback", "model", p.model, "err", err)
			return nil
		}

		flat, err := normalizeEmbeddingResponse(raw)
		if err != nil {
			p.logger.Warn("malformed embedding response, using fallback", "model", p.model, "err", err)
			return nil
		}
		return l2Normalize(reconcileDimension(flat))
	}
	return nil
}

// isTransient reports whether the failure is a timeout or transport error
// rather than a definite upstream rejection.
func isTransient(err error) bool {
	var statusErr httpStatusCoder
	if errors.As(err, &statusErr) {
		return false
	}
	return true
}

func cloneVector(v domain.Vector) domain.Vector {
	out := make(domain.Vector, len(v))
	copy(out, v)
	return out
}
