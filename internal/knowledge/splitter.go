package knowledge

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Paragraph breaks first, then line breaks, then words.
var chunkSeparators = []string{"\n\n", "\n", " "}

// NewSplitter builds the recursive transformer that cuts page text into
// overlapping chunks. Sizes are counted in runes. Out-of-range values fall
// back to the defaults.
func NewSplitter(ctx context.Context, size, overlap int) (document.Transformer, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   size,
		OverlapSize: overlap,
		Separators:  chunkSeparators,
		LenFunc:     utf8.RuneCountInString,
		KeepType:    recursive.KeepTypeEnd,
	})
}

// splitPage runs one page through the transformer and drops blank chunks.
func splitPage(ctx context.Context, t document.Transformer, source string, page Page) ([]string, error) {
	docs, err := t.Transform(ctx, []*schema.Document{{
		ID:       source,
		Content:  page.Text,
		MetaData: map[string]any{"source": source, "page": page.Number},
	}})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		if text := strings.TrimSpace(d.Content); text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}
