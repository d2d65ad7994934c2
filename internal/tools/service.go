// Package tools implements the operations the broker agent can call and
// exposes them as eino tools.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/dyike/BrokerGo/internal/cse"
	"github.com/dyike/BrokerGo/internal/knowledge"
	"github.com/dyike/BrokerGo/internal/tradesummary"
	"github.com/dyike/BrokerGo/models"
)

const (
	DefaultAnalysisYear  = "2025"
	topGainersShown      = 5
	announcementsShown   = 10
	intradaySamplePoints = 20
)

// DefaultReportYears are scraped when the caller names none.
var DefaultReportYears = []string{"2025", "2024"}

var ErrNotConfigured = errors.New("not configured")

// Market is the live market API.
type Market interface {
	MarketStatus(ctx context.Context) (string, error)
	ASPI(ctx context.Context) (cse.Index, error)
	SNP(ctx context.Context) (cse.Index, error)
	TopGainers(ctx context.Context) ([]cse.Record, error)
	CompanyInfo(ctx context.Context, symbol string) (cse.Record, error)
	ChartData(ctx context.Context, symbol string) ([]cse.Record, error)
	Announcements(ctx context.Context) ([]cse.Record, error)
}

// TradeSummaries answers lookups against the daily trade summary.
type TradeSummaries interface {
	Resolve(ctx context.Context, input string) string
	TradeSummary(ctx context.Context, symbols []string) (*tradesummary.Result, error)
	FindCompany(ctx context.Context, query string) (*tradesummary.CompanyMatches, error)
}

type ReportReader interface {
	GetReports(ctx context.Context, symbol, year string) ([]models.Report, error)
}

// Pipeline scrapes report PDFs and analyses them.
type Pipeline interface {
	Run(ctx context.Context, symbols, years []string) (*PipelineResult, error)
}

type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, k int) ([]knowledge.Match, error)
}

// Deps wires a Service. Nil members make the matching operations report
// that they are unavailable.
type Deps struct {
	Market      Market
	Trades      TradeSummaries
	Reports     ReportReader
	Pipeline    Pipeline
	Knowledge   KnowledgeSearcher
	AnalysisDir string
	Logger      *zap.Logger
}

type Service struct {
	deps   Deps
	logger *zap.Logger
}

func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{deps: deps, logger: logger}
}

func unavailable(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotConfigured)
}

// MarketOverview summarises market status, the two indices and the top
// gainers.
func (s *Service) MarketOverview(ctx context.Context) (string, error) {
	if s.deps.Market == nil {
		return "", unavailable("market api")
	}
	status, err := s.deps.Market.MarketStatus(ctx)
	if err != nil {
		return "", err
	}
	aspi, err := s.deps.Market.ASPI(ctx)
	if err != nil {
		return "", err
	}
	snp, err := s.deps.Market.SNP(ctx)
	if err != nil {
		return "", err
	}
	gainers, err := s.deps.Market.TopGainers(ctx)
	if err != nil {
		return "", err
	}

	if status == "" {
		status = "Unknown"
	}
	var b strings.Builder
	b.WriteString("Market Overview:\n")
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "ASPI: %s\n", formatIndex(aspi))
	fmt.Fprintf(&b, "S&P SL20: %s\n", formatIndex(snp))
	fmt.Fprintf(&b, "\nTop Gainers (Top %d):\n", topGainersShown)
	for i, g := range gainers {
		if i == topGainersShown {
			break
		}
		fmt.Fprintf(&b, "- %s: %s (+%s%%)\n", g.String("symbol"), g.String("price"), g.String("changePercentage"))
	}
	return b.String(), nil
}

func formatIndex(idx cse.Index) string {
	return fmt.Sprintf("%.2f (%+.2f / %+.2f%%)", idx.Value, idx.Change, idx.ChangePercentage)
}

// ResolveSymbol never fails; without a trade summary the input is
// normalised and returned.
func (s *Service) ResolveSymbol(ctx context.Context, symbol string) string {
	if s.deps.Trades == nil {
		return strings.ToUpper(strings.TrimSpace(symbol))
	}
	return s.deps.Trades.Resolve(ctx, symbol)
}

func (s *Service) CompanyProfile(ctx context.Context, symbol string) (string, error) {
	if s.deps.Market == nil {
		return "", unavailable("market api")
	}
	full := s.ResolveSymbol(ctx, symbol)
	info, err := s.deps.Market.CompanyInfo(ctx, full)
	if err != nil {
		return "", fmt.Errorf("profile for %s: %w", full, err)
	}
	return fmt.Sprintf("Company Profile for %s:\nName: %s\nLast Traded Price: %s\nChange: %s (%s%%)\nMarket Cap: %s\n",
		full,
		info.String("name"),
		info.String("lastTradedPrice"),
		info.String("change"),
		info.String("changePercentage"),
		info.String("marketCap"),
	), nil
}

// IntradayData returns about twenty evenly spaced points of today's chart.
func (s *Service) IntradayData(ctx context.Context, symbol string) (string, error) {
	if s.deps.Market == nil {
		return "", unavailable("market api")
	}
	full := s.ResolveSymbol(ctx, symbol)
	points, err := s.deps.Market.ChartData(ctx, full)
	if err != nil {
		return "", fmt.Errorf("chart data for %s: %w", full, err)
	}
	if len(points) == 0 {
		return fmt.Sprintf("No intraday data for %s today.", full), nil
	}
	data, err := json.MarshalIndent(samplePoints(points, intradaySamplePoints), "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Intraday Chart Data for %s (Sampled):\n%s", full, data), nil
}

func samplePoints(points []cse.Record, want int) []cse.Record {
	if len(points) <= want {
		return points
	}
	step := len(points) / want
	out := make([]cse.Record, 0, want+1)
	for i := 0; i < len(points); i += step {
		out = append(out, points[i])
	}
	return out
}

func (s *Service) LatestAnnouncements(ctx context.Context) (string, error) {
	if s.deps.Market == nil {
		return "", unavailable("market api")
	}
	items, err := s.deps.Market.Announcements(ctx)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "No recent financial announcements found.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Latest Financial Announcements (Top %d):\n", announcementsShown)
	for i, a := range items {
		if i == announcementsShown {
			break
		}
		fmt.Fprintf(&b, "%d. %s (%s): %s [%s]\n", i+1,
			firstOf(a, "companyName", "name"),
			a.String("symbol"),
			firstOf(a, "fileText", "announcementTitle", "title"),
			firstOf(a, "dateOfAnnouncement", "uploadedDate", "date"))
	}
	return b.String(), nil
}

func firstOf(r cse.Record, keys ...string) string {
	for _, k := range keys {
		if v := r.String(k); v != "" {
			return v
		}
	}
	return ""
}

// MarketTradeSummary renders the trade summary rows for symbols, or the
// top rows by volume when symbols is empty.
func (s *Service) MarketTradeSummary(ctx context.Context, symbols []string) (string, error) {
	if s.deps.Trades == nil {
		return "", unavailable("trade summary")
	}
	res, err := s.deps.Trades.TradeSummary(ctx, symbols)
	if err != nil {
		return "", err
	}
	if len(res.Filters) > 0 {
		if res.Empty() {
			return fmt.Sprintf("Warning: No data found for symbols: %s", strings.Join(res.Filters, ", ")), nil
		}
		return "Market Trade Summary for requested symbols:\n\n" + markdownTable(res.Headers, res.Rows), nil
	}
	if res.Empty() {
		return "Warning: the trade summary is empty.", nil
	}
	return fmt.Sprintf("Market Trade Summary (Top %d by Volume):\n\n%s", res.TopN, markdownTable(res.Headers, res.Rows)), nil
}

func (s *Service) FindCompanyInfo(ctx context.Context, query string) (string, error) {
	if s.deps.Trades == nil {
		return "", unavailable("trade summary")
	}
	matches, err := s.deps.Trades.FindCompany(ctx, query)
	if err != nil {
		return "", err
	}
	if matches.Total == 0 {
		return fmt.Sprintf("Warning: No companies found matching '%s'.", query), nil
	}
	return fmt.Sprintf("Found %d matches for '%s':\n\n%s", matches.Total, query, markdownTable(matchHeaders(matches), matches.Rows)), nil
}

// matchHeaders puts the symbol and name columns first.
func matchHeaders(m *tradesummary.CompanyMatches) []string {
	headers := []string{m.SymbolColumn}
	if m.NameColumn != "" && m.NameColumn != m.SymbolColumn {
		headers = append(headers, m.NameColumn)
	}
	seen := map[string]bool{m.SymbolColumn: true, m.NameColumn: true}
	if len(m.Rows) > 0 {
		var rest []string
		for h := range m.Rows[0] {
			if !seen[h] {
				rest = append(rest, h)
			}
		}
		sort.Strings(rest)
		headers = append(headers, rest...)
	}
	return headers
}

// ScrapeAndAnalyze downloads the reports of symbols for years and runs the
// extraction over them.
func (s *Service) ScrapeAndAnalyze(ctx context.Context, symbols, years []string) (string, error) {
	if s.deps.Pipeline == nil {
		return "", unavailable("report pipeline")
	}
	if len(years) == 0 {
		years = DefaultReportYears
	}
	resolved := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if strings.TrimSpace(sym) == "" {
			continue
		}
		resolved = append(resolved, s.ResolveSymbol(ctx, sym))
	}
	res, err := s.deps.Pipeline.Run(ctx, resolved, years)
	if err != nil {
		return "", fmt.Errorf("scrape and analyze: %w", err)
	}
	if res.PDFs == 0 {
		return "Warning: No PDFs found to analyze after scraping.", nil
	}
	return fmt.Sprintf("Success! Scraped and processed reports. Analyzed %d out of %d documents. Results saved in '%s'.",
		res.Analyzed, res.PDFs, filepath.Base(s.deps.AnalysisDir)), nil
}

// FinancialAnalysis returns stored analyses of symbol for year. The
// database is consulted first, then analysis files on disk. When neither
// has data the reports are scraped and analysed and both are checked again.
func (s *Service) FinancialAnalysis(ctx context.Context, symbol, year string) (string, error) {
	if strings.TrimSpace(year) == "" {
		year = DefaultAnalysisYear
	}
	full := s.ResolveSymbol(ctx, symbol)

	if out, ok := s.storedAnalysis(ctx, full, year); ok {
		return out, nil
	}

	s.logger.Info("no local analysis, scraping reports", zap.String("symbol", full), zap.String("year", year))
	if _, err := s.ScrapeAndAnalyze(ctx, []string{full}, []string{year}); err != nil {
		return "", fmt.Errorf("could not generate analysis: %w", err)
	}
	if out, ok := s.storedAnalysis(ctx, full, year); ok {
		return out, nil
	}
	return fmt.Sprintf("Warning: Scraped reports for %s, but no analysis was generated for %s. The PDF might not have been readable or found.", full, year), nil
}

func (s *Service) storedAnalysis(ctx context.Context, symbol, year string) (string, bool) {
	if s.deps.Reports != nil {
		reports, err := s.deps.Reports.GetReports(ctx, symbol, year)
		if err != nil {
			s.logger.Warn("report store lookup failed", zap.String("symbol", symbol), zap.Error(err))
		} else if len(reports) > 0 {
			parts := make([]string, len(reports))
			for i, r := range reports {
				parts[i] = fmt.Sprintf("--- REPORT: %s (%s %s) ---\n%s", r.FileName, r.Year, r.Quarter, r.Content)
			}
			return fmt.Sprintf("Found %d analysis reports for %s (%s) in database:\n\n%s",
				len(reports), symbol, year, strings.Join(parts, "\n\n")), true
		}
	}

	files := analysisFiles(s.deps.AnalysisDir, symbol, year)
	if len(files) == 0 {
		return "", false
	}
	parts := make([]string, len(files))
	for i, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			parts[i] = fmt.Sprintf("Error reading %s: %v", filepath.Base(f), err)
			continue
		}
		parts[i] = fmt.Sprintf("--- FILE: %s ---\n%s", filepath.Base(f), data)
	}
	return fmt.Sprintf("Found %d analysis reports for %s (%s):\n\n%s",
		len(files), symbol, year, strings.Join(parts, "\n\n")), true
}

// analysisFiles lists JSON files in dir whose name contains symbol
// (case-insensitive) and year.
func analysisFiles(dir, symbol, year string) []string {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	needle := strings.ToLower(symbol)
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".json") {
			continue
		}
		if strings.Contains(strings.ToLower(name), needle) && strings.Contains(name, year) {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out
}

func (s *Service) SearchKnowledgeBase(ctx context.Context, query string) (string, error) {
	if s.deps.Knowledge == nil {
		return "", unavailable("knowledge base")
	}
	matches, err := s.deps.Knowledge.Search(ctx, query, 0)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "No relevant information found in the uploaded documents.", nil
	}
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Source: %s, page %d]\n%s", m.Source, m.Page, m.Content)
	}
	return b.String(), nil
}
