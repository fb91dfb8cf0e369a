package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"persona-agent/internal/domain"
	"persona-agent/internal/integrations/pinecone"
)

const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 100
	defaultBatchSize    = 32
)

// Document is one source file to be chunked and indexed.
type Document struct {
	// Source is the attribution label stored with every chunk, typically
	// the file name.
	Source string
	// Type classifies the document (resume, project, bio).
	Type string
	Text string
}

// Embedder produces the vector stored alongside each chunk.
type Embedder interface {
	Embed(ctx context.Context, text string) domain.Vector
}

// Upserter is the index write surface. *pinecone.Client satisfies this
// interface.
type Upserter interface {
	Upsert(ctx context.Context, vectors []pinecone.Vector) (int, error)
}

// Ingester chunks documents and writes them to the vector index in batches.
type Ingester struct {
	embedder  Embedder
	upserter  Upserter
	chunkSize int
	overlap   int
	batchSize int
	logger    *slog.Logger
}

type Option func(*Ingester)

func WithChunking(size, overlap int) Option {
	return func(i *Ingester) {
		if size > 0 {
			i.chunkSize = size
		}
		if overlap >= 0 && overlap < i.chunkSize {
			i.overlap = overlap
		}
	}
}

func WithBatchSize(n int) Option {
	return func(i *Ingester) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingester) {
		if logger != nil {
			i.logger = logger
		}
	}
}

func New(embedder Embedder, upserter Upserter, opts ...Option) (*Ingester, error) {
	if embedder == nil {
		return nil, errors.New("ingest: embedder must not be nil")
	}
	if upserter == nil {
		return nil, errors.New("ingest: upserter must not be nil")
	}
	ing := &Ingester{
		embedder:  embedder,
		upserter:  upserter,
		chunkSize: defaultChunkSize,
		overlap:   defaultChunkOverlap,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing, nil
}

// Run ingests all documents and returns the total number of chunks the
// index acknowledged.
func (i *Ingester) Run(ctx context.Context, docs []Document) (int, error) {
	var batch []pinecone.Vector
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		count, err := i.upserter.Upsert(ctx, batch)
		if err != nil {
			return fmt.Errorf("ingest: upsert batch: %w", err)
		}
		total += count
		batch = batch[:0]
		return nil
	}

	for _, doc := range docs {
		chunks := SplitText(doc.Text, i.chunkSize, i.overlap)
		i.logger.Info("ingesting document", "source", doc.Source, "chunks", len(chunks))
		for n, chunk := range chunks {
			vector := i.embedder.Embed(ctx, chunk)
			if len(vector) == 0 {
				return total, fmt.Errorf("ingest: empty embedding for %s chunk %d", doc.Source, n)
			}
			batch = append(batch, pinecone.Vector{
				ID:     uuid.NewString(),
				Values: []float64(vector),
				Metadata: map[string]any{
					"text":         chunk,
					"source":       doc.Source,
					"chunk":        n,
					"documentType": doc.Type,
				},
			})
			if len(batch) >= i.batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// SplitText cuts text into overlapping chunks of at most size bytes,
// preferring sentence boundaries near the cut point so chunks stay
// readable.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunk := strings.TrimSpace(text[start:])
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		// Prefer ending the chunk at a sentence boundary in the back
		// half of the window.
		cut := end
		if idx := lastBoundary(text[start:end]); idx > size/2 {
			cut = start + idx
		}
		chunk := strings.TrimSpace(text[start:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// lastBoundary returns the index just past the last sentence terminator in
// s, or -1 when none exists.
func lastBoundary(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	return -1
}
