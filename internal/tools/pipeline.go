package tools

import (
	"context"

	"go.uber.org/zap"

	"github.com/dyike/BrokerGo/internal/analyzer"
	"github.com/dyike/BrokerGo/internal/scraper"
)

type PipelineResult struct {
	Symbols  []string
	PDFs     int
	Analyzed int
}

// ReportPipeline downloads report PDFs with a Scraper and feeds them to an
// Analyzer.
type ReportPipeline struct {
	Scraper  *scraper.Scraper
	Analyzer *analyzer.Analyzer
	Logger   *zap.Logger
}

// Run scrapes symbols (every normal share when empty) for years and
// analyses the PDFs of the scraped symbols.
func (p *ReportPipeline) Run(ctx context.Context, symbols, years []string) (*PipelineResult, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sc := p.Scraper.WithTargetYears(years)
	run, err := sc.Run(ctx, symbols)
	if err != nil {
		return nil, err
	}
	for sym, ferr := range run.Failed {
		logger.Warn("scrape failed for symbol", zap.String("symbol", sym), zap.Error(ferr))
	}

	pdfs, err := analyzer.FindPDFs(sc.ReportsDir(), run.Symbols)
	if err != nil {
		return nil, err
	}
	res := &PipelineResult{Symbols: run.Symbols, PDFs: len(pdfs)}
	if len(pdfs) == 0 {
		return res, nil
	}
	results, err := p.Analyzer.AnalyzeDir(ctx, sc.ReportsDir(), run.Symbols)
	res.Analyzed = len(results)
	return res, err
}
