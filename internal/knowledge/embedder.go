package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Embedder turns text into vectors. Documents and queries are embedded with
// different task types.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

const (
	embedBatchSize  = 100
	embedAttempts   = 3
	rateLimitWait   = 10 * time.Second
	taskRetrieveDoc = "RETRIEVAL_DOCUMENT"
	taskRetrieveQry = "RETRIEVAL_QUERY"
)

type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	retryWait time.Duration
	logger    *zap.Logger
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required for embeddings")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiEmbedder{client: client, model: model, retryWait: rateLimitWait, logger: logger}, nil
}

func (g *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		vecs, err := g.embed(ctx, texts[start:end], taskRetrieveDoc)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (g *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.embed(ctx, []string{text}, taskRetrieveQry)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (g *GeminiEmbedder) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	var resp *genai.EmbedContentResponse
	err := withRateLimitRetry(ctx, embedAttempts, g.retryWait, g.logger, func() error {
		var err error
		resp, err = g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{TaskType: task})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// withRateLimitRetry retries fn while it fails with a rate limit error.
// Other errors are returned at once.
func withRateLimitRetry(ctx context.Context, attempts int, wait time.Duration, logger *zap.Logger, fn func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil || !isRateLimited(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		logger.Warn("embedding rate limited, retrying",
			zap.Int("attempt", attempt), zap.Duration("wait", wait))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
