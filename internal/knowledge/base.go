// Package knowledge stores embedded chunks of uploaded documents and answers
// similarity queries over them.
package knowledge

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/document"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dyike/BrokerGo/internal/storage/sqlite"
)

const DefaultTopK = 4

// ChunkStore persists chunks and their vectors.
type ChunkStore interface {
	InsertChunks(ctx context.Context, chunks []sqlite.Chunk) error
	Chunks(ctx context.Context) ([]sqlite.Chunk, error)
	DeleteChunksBySource(ctx context.Context, source string) (int64, error)
	ClearChunks(ctx context.Context) error
	Sources(ctx context.Context) ([]string, error)
}

var _ ChunkStore = (*sqlite.Store)(nil)

// Match is a search hit.
type Match struct {
	Source  string
	Page    int
	Content string
	Score   float64
}

type Base struct {
	store    ChunkStore
	embedder Embedder
	splitter document.Transformer
	topK     int
	logger   *zap.Logger
}

type Option func(*Base)

// WithSplitter replaces the default 1000/200 recursive splitter.
func WithSplitter(t document.Transformer) Option {
	return func(b *Base) {
		if t != nil {
			b.splitter = t
		}
	}
}

func WithTopK(k int) Option {
	return func(b *Base) {
		if k > 0 {
			b.topK = k
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(b *Base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func New(store ChunkStore, embedder Embedder, opts ...Option) *Base {
	b := &Base{
		store:    store,
		embedder: embedder,
		topK:     DefaultTopK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.splitter == nil {
		// The defaults are always a valid config.
		b.splitter, _ = NewSplitter(context.Background(), DefaultChunkSize, DefaultChunkOverlap)
	}
	return b
}

// AddFile indexes the document at path under its base name. Chunks from an
// earlier upload with the same name are replaced. It returns the number of
// chunks stored.
func (b *Base) AddFile(ctx context.Context, path string) (int, error) {
	source := filepath.Base(path)
	pages, err := extractPages(path)
	if err != nil {
		return 0, err
	}

	if b.splitter == nil {
		return 0, fmt.Errorf("%s: no splitter configured", source)
	}

	var chunks []sqlite.Chunk
	for _, page := range pages {
		texts, err := splitPage(ctx, b.splitter, source, page)
		if err != nil {
			return 0, fmt.Errorf("split %s page %d: %w", source, page.Number, err)
		}
		for _, text := range texts {
			chunks = append(chunks, sqlite.Chunk{
				ID:      uuid.NewString(),
				Source:  source,
				Page:    page.Number,
				Content: text,
			})
		}
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%s: no extractable text", source)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := b.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", source, err)
	}
	if len(vecs) != len(chunks) {
		return 0, fmt.Errorf("embed %s: got %d vectors for %d chunks", source, len(vecs), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = vecs[i]
	}

	if _, err := b.store.DeleteChunksBySource(ctx, source); err != nil {
		return 0, err
	}
	if err := b.store.InsertChunks(ctx, chunks); err != nil {
		return 0, err
	}
	b.logger.Info("document indexed",
		zap.String("source", source),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// Search returns up to k chunks most similar to query. k <= 0 uses the
// configured default. An empty knowledge base yields no matches.
func (b *Base) Search(ctx context.Context, query string, k int) ([]Match, error) {
	if k <= 0 {
		k = b.topK
	}
	chunks, err := b.store.Chunks(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	qv, err := b.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches := make([]Match, 0, len(chunks))
	for _, c := range chunks {
		matches = append(matches, Match{
			Source:  c.Source,
			Page:    c.Page,
			Content: c.Content,
			Score:   cosine(qv, c.Embedding),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (b *Base) DeleteSource(ctx context.Context, name string) (int64, error) {
	n, err := b.store.DeleteChunksBySource(ctx, filepath.Base(name))
	if err != nil {
		return 0, err
	}
	b.logger.Info("document removed", zap.String("source", name), zap.Int64("chunks", n))
	return n, nil
}

func (b *Base) Clear(ctx context.Context) error {
	return b.store.ClearChunks(ctx)
}

func (b *Base) Sources(ctx context.Context) ([]string, error) {
	return b.store.Sources(ctx)
}

// cosine is 0 for vectors of different length or zero norm.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
