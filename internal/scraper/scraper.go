// Package scraper downloads the CSE daily trade summary and companies'
// quarterly report PDFs.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/dyike/BrokerGo/internal/tradesummary"
)

var DefaultTargetYears = []string{"2025", "2024"}

type Options struct {
	// OutputDir holds tradesummary/ and quartly_reports/.
	OutputDir   string
	TargetYears []string
	// Columns is used to pick normal shares when Run gets no symbols.
	Columns tradesummary.Columns
}

// PDFDownloader fetches a single report.
type PDFDownloader interface {
	Download(ctx context.Context, rawURL, dest string) error
}

type Scraper struct {
	opts       Options
	pages      Pages
	downloader PDFDownloader
	logger     *zap.Logger
	now        func() time.Time
}

func New(opts Options, pages Pages, downloader PDFDownloader, logger *zap.Logger) *Scraper {
	if len(opts.TargetYears) == 0 {
		opts.TargetYears = DefaultTargetYears
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		opts:       opts,
		pages:      pages,
		downloader: downloader,
		logger:     logger,
		now:        time.Now,
	}
}

// WithTargetYears returns a scraper sharing s's browser and downloader that
// keeps reports of years instead.
func (s *Scraper) WithTargetYears(years []string) *Scraper {
	if len(years) == 0 {
		return s
	}
	c := *s
	c.opts.TargetYears = years
	return &c
}

func (s *Scraper) TradeSummaryDir() string {
	return filepath.Join(s.opts.OutputDir, "tradesummary")
}

func (s *Scraper) ReportsDir() string {
	return filepath.Join(s.opts.OutputDir, "quartly_reports")
}

// TradeSummary downloads today's trade summary and returns its path.
func (s *Scraper) TradeSummary(ctx context.Context) (string, error) {
	dir := s.TradeSummaryDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create trade summary dir: %w", err)
	}
	name := s.now().In(tradesummary.ColomboLocation).Format(time.DateOnly) + tradesummary.CSVFileSuffix
	dest := filepath.Join(dir, name)

	s.logger.Info("downloading trade summary", zap.String("dest", dest))
	if err := s.pages.DownloadTradeSummary(ctx, dest); err != nil {
		return "", fmt.Errorf("trade summary: %w", err)
	}
	return dest, nil
}

// CompanyReports downloads the quarterly reports of symbol for the target
// years and returns the saved paths. Individual failed downloads are
// logged and skipped.
func (s *Scraper) CompanyReports(ctx context.Context, symbol string) ([]string, error) {
	s.logger.Info("processing company reports", zap.String("symbol", symbol))

	html, pageURL, err := s.pages.QuarterlyReportsHTML(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("reports page for %s: %w", symbol, err)
	}
	links, err := ParseReportLinks(html, pageURL)
	if err != nil {
		return nil, err
	}
	wanted := FilterByYears(links, s.opts.TargetYears)
	s.logger.Info("report links found",
		zap.String("symbol", symbol),
		zap.Int("links", len(links)),
		zap.Int("in_target_years", len(wanted)))

	dir := filepath.Join(s.ReportsDir(), CompanyDirName(symbol))
	var saved []string
	for i, link := range wanted {
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		dest := filepath.Join(dir, ReportFileName(symbol, i+1, link.URL))
		if err := s.downloader.Download(ctx, link.URL, dest); err != nil {
			s.logger.Warn("report download failed", zap.String("url", link.URL), zap.Error(err))
			continue
		}
		saved = append(saved, dest)
	}
	s.logger.Info("company reports done", zap.String("symbol", symbol), zap.Int("downloaded", len(saved)))
	return saved, nil
}

// RunResult summarises a scrape.
type RunResult struct {
	TradeSummaryPath string
	Symbols          []string
	Reports          map[string][]string
	Failed           map[string]error
}

// Run downloads the trade summary, then the reports of symbols. Without
// symbols every normal share in the trade summary is processed, highest
// volume first. A symbol that fails does not stop the run.
func (s *Scraper) Run(ctx context.Context, symbols []string) (*RunResult, error) {
	res := &RunResult{
		Reports: make(map[string][]string),
		Failed:  make(map[string]error),
	}

	csvPath, err := s.TradeSummary(ctx)
	if err != nil {
		s.logger.Error("trade summary download failed", zap.Error(err))
	} else {
		res.TradeSummaryPath = csvPath
	}

	res.Symbols = symbols
	if len(symbols) == 0 {
		if csvPath == "" {
			return res, fmt.Errorf("no symbols given and trade summary unavailable: %w", err)
		}
		snap, err := tradesummary.LoadCSVFile(csvPath)
		if err != nil {
			return res, fmt.Errorf("read trade summary: %w", err)
		}
		res.Symbols = tradesummary.NormalShares(snap, s.opts.Columns)
		s.logger.Info("normal shares selected from trade summary", zap.Int("count", len(res.Symbols)))
	}

	for _, symbol := range res.Symbols {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		paths, err := s.CompanyReports(ctx, symbol)
		if len(paths) > 0 {
			res.Reports[symbol] = paths
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, err
			}
			s.logger.Error("company reports failed", zap.String("symbol", symbol), zap.Error(err))
			res.Failed[symbol] = err
		}
	}
	return res, nil
}

// Close releases the browser.
func (s *Scraper) Close() error {
	return s.pages.Close()
}

// TradeSummaryProvider scrapes a fresh trade summary on every Fetch.
type TradeSummaryProvider struct {
	Scraper *Scraper
}

func (p TradeSummaryProvider) Fetch(ctx context.Context) (*tradesummary.Snapshot, error) {
	path, err := p.Scraper.TradeSummary(ctx)
	if err != nil {
		return nil, err
	}
	return tradesummary.LoadCSVFile(path)
}
