package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/dyike/BrokerGo/models"
)

const (
	systemInstruction = "You are a helpful financial analyst assistant."

	extractionPrompt = `You are an expert financial analyst and data extraction specialist. Analyze the attached interim or quarterly financial statement and convert its key data points into the JSON structure you have been given.

1. Read the income statement, balance sheet, cash flow statement and notes.
2. Populate every field of the structure. Use 0 for figures that are not disclosed.
3. For "signal" and "status" fields interpret the data, e.g. "Strong top-line growth" or "Negative - profitability compressed".
4. Cite the source page number inside string values where possible.
5. Summarise buy signals and sell/hold risks in investment_decision_factors.`
)

var ErrFileProcessing = errors.New("uploaded file failed processing")

// Extractor turns a report PDF into FinancialReportAnalysis JSON.
type Extractor interface {
	Extract(ctx context.Context, pdfPath string) (json.RawMessage, error)
}

// GeminiExtractor uploads the PDF to the Gemini Files API and asks the model
// for a response constrained to the analysis schema.
type GeminiExtractor struct {
	client       *genai.Client
	model        string
	schema       *genai.Schema
	pollInterval time.Duration
	logger       *zap.Logger
}

func NewGeminiExtractor(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	schema, err := SchemaFor(reflect.TypeOf(models.FinancialReportAnalysis{}))
	if err != nil {
		return nil, fmt.Errorf("build analysis schema: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiExtractor{
		client:       client,
		model:        model,
		schema:       schema,
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func (g *GeminiExtractor) Extract(ctx context.Context, pdfPath string) (_ json.RawMessage, err error) {
	file, err := g.client.Files.UploadFromPath(ctx, pdfPath, &genai.UploadFileConfig{
		MIMEType:    "application/pdf",
		DisplayName: filepath.Base(pdfPath),
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filepath.Base(pdfPath), err)
	}
	g.logger.Debug("report uploaded", zap.String("file", file.Name), zap.String("display_name", file.DisplayName))
	defer func() {
		// The upload is removed even when ctx is already done.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if _, delErr := g.client.Files.Delete(cleanupCtx, file.Name, nil); delErr != nil {
			g.logger.Warn("delete uploaded report failed", zap.String("file", file.Name), zap.Error(delErr))
		}
	}()

	if file, err = g.waitActive(ctx, file); err != nil {
		return nil, err
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			genai.NewPartFromURI(file.URI, file.MIMEType),
			genai.NewPartFromText(extractionPrompt),
		},
	}}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
		Temperature:       genai.Ptr(float32(0.1)),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    g.schema,
	})
	if err != nil {
		return nil, fmt.Errorf("generate analysis: %w", err)
	}

	text := stripMarkdownFences(resp.Text())
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("model returned invalid json for %s", filepath.Base(pdfPath))
	}
	return json.RawMessage(text), nil
}

func (g *GeminiExtractor) waitActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.pollInterval):
		}
		latest, err := g.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("poll uploaded file: %w", err)
		}
		file = latest
	}
	if file.State == genai.FileStateFailed {
		return nil, fmt.Errorf("%w: %s", ErrFileProcessing, file.Name)
	}
	return file, nil
}
