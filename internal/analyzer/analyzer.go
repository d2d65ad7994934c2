// Package analyzer extracts structured financials from quarterly report
// PDFs and persists them as JSON files and store rows.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/dyike/BrokerGo/models"
)

// ReportSaver is the write side of the analysis store.
type ReportSaver interface {
	SaveReport(ctx context.Context, report models.Report) error
}

type Analyzer struct {
	extractor Extractor
	store     ReportSaver
	outputDir string
	logger    *zap.Logger
}

func New(extractor Extractor, store ReportSaver, outputDir string, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{extractor: extractor, store: store, outputDir: outputDir, logger: logger}
}

// Result describes one analysed report.
type Result struct {
	Source     string
	Symbol     string
	OutputPath string
	Analysis   models.FinancialReportAnalysis
}

// AnalyzePDF extracts pdfPath, writes the JSON next to the other analyses
// and saves it to the store. A failed store write is logged, not returned,
// since the file on disk is still usable.
func (a *Analyzer) AnalyzePDF(ctx context.Context, pdfPath string) (*Result, error) {
	a.logger.Info("analyzing report", zap.String("pdf", filepath.Base(pdfPath)))

	raw, err := a.extractor.Extract(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(pdfPath), err)
	}

	res := &Result{Source: pdfPath, Symbol: SymbolFromFileName(pdfPath)}
	if err := json.Unmarshal(raw, &res.Analysis); err != nil {
		return nil, fmt.Errorf("decode analysis of %s: %w", filepath.Base(pdfPath), err)
	}

	info := res.Analysis.CompanyInfo
	fileName := AnalysisFileName(res.Symbol, info.ReportEndDate)
	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create analysis dir: %w", err)
	}
	res.OutputPath = filepath.Join(a.outputDir, fileName)

	pretty, err := json.MarshalIndent(json.RawMessage(raw), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("format analysis: %w", err)
	}
	if err := os.WriteFile(res.OutputPath, pretty, 0o644); err != nil {
		return nil, fmt.Errorf("write analysis: %w", err)
	}
	a.logger.Info("analysis saved", zap.String("path", res.OutputPath))

	if a.store != nil {
		report := models.Report{
			Symbol:   res.Symbol,
			Year:     YearFromDate(info.ReportEndDate),
			Quarter:  QuarterOf(info.ReportPeriod, info.ReportEndDate),
			FileName: fileName,
			Content:  raw,
		}
		if err := a.store.SaveReport(ctx, report); err != nil {
			a.logger.Warn("save analysis to store failed", zap.String("file", fileName), zap.Error(err))
		}
	}
	return res, nil
}

// AnalyzeDir analyses every PDF below dir, restricted to symbols when any
// are given. Per-file failures are logged and skipped.
func (a *Analyzer) AnalyzeDir(ctx context.Context, dir string, symbols []string) ([]Result, error) {
	pdfs, err := FindPDFs(dir, symbols)
	if err != nil {
		return nil, err
	}
	a.logger.Info("reports to analyze", zap.Int("count", len(pdfs)), zap.String("dir", dir))

	var results []Result
	for _, pdf := range pdfs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := a.AnalyzePDF(ctx, pdf)
		if err != nil {
			a.logger.Error("analysis failed", zap.String("pdf", pdf), zap.Error(err))
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

// FindPDFs lists PDFs below dir in lexical order. With symbols, only files
// whose symbol prefix equals one of them, or extends one with ".", are kept.
func FindPDFs(dir string, symbols []string) ([]string, error) {
	var pdfs []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		if len(symbols) > 0 && !matchesSymbol(SymbolFromFileName(path), symbols) {
			return nil
		}
		pdfs = append(pdfs, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(pdfs)
	return pdfs, nil
}

func matchesSymbol(fileSymbol string, symbols []string) bool {
	fileSymbol = strings.ToUpper(fileSymbol)
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if fileSymbol == s || strings.HasPrefix(fileSymbol, s+".") {
			return true
		}
	}
	return false
}
