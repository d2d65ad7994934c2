package tools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/BrokerGo/internal/cse"
	"github.com/dyike/BrokerGo/internal/knowledge"
	"github.com/dyike/BrokerGo/internal/tradesummary"
	"github.com/dyike/BrokerGo/models"
)

const tradeCSV = `Company Name,Symbol,Share Volume,Last Trade (Rs.)
JOHN KEELLS HOLDINGS PLC,JKH.N0000,"1,500",195.50
SAMPATH BANK PLC,SAMP.N0000,"20,000",80.00
HATTON NATIONAL BANK PLC,HNB.N0000,800,250.00
HATTON NATIONAL BANK PLC,HNB.X0000,100,200.00
`

func newTrades(t *testing.T) *tradesummary.Service {
	t.Helper()
	snap, err := tradesummary.LoadCSV(strings.NewReader(tradeCSV))
	require.NoError(t, err)
	return tradesummary.NewService(tradesummary.ProviderFunc(func(context.Context) (*tradesummary.Snapshot, error) {
		return snap, nil
	}))
}

type fakeMarket struct {
	infoSymbol string
	chart      []cse.Record
	err        error
}

func (f *fakeMarket) MarketStatus(context.Context) (string, error) { return "Market Closed", f.err }
func (f *fakeMarket) ASPI(context.Context) (cse.Index, error) {
	return cse.Index{Value: 12000.5, Change: 10, ChangePercentage: 0.08}, f.err
}
func (f *fakeMarket) SNP(context.Context) (cse.Index, error) {
	return cse.Index{Value: 3500, Change: -5, ChangePercentage: -0.14}, f.err
}
func (f *fakeMarket) TopGainers(context.Context) ([]cse.Record, error) {
	var out []cse.Record
	for i := 0; i < 7; i++ {
		out = append(out, cse.Record{"symbol": "G" + string(rune('A'+i)), "price": float64(10 + i), "changePercentage": 5.0})
	}
	return out, f.err
}
func (f *fakeMarket) CompanyInfo(_ context.Context, symbol string) (cse.Record, error) {
	f.infoSymbol = symbol
	return cse.Record{"name": "JOHN KEELLS HOLDINGS PLC", "lastTradedPrice": 195.5, "change": 1.5, "changePercentage": 0.77, "marketCap": 2.5e11}, f.err
}
func (f *fakeMarket) ChartData(context.Context, string) ([]cse.Record, error) { return f.chart, f.err }
func (f *fakeMarket) Announcements(context.Context) ([]cse.Record, error) {
	var out []cse.Record
	for i := 0; i < 12; i++ {
		out = append(out, cse.Record{"companyName": "CO", "symbol": "CO.N0000", "fileText": "Interim", "dateOfAnnouncement": "2025-05-01"})
	}
	return out, f.err
}

type fakeReports struct {
	reports map[string][]models.Report
}

func (f *fakeReports) GetReports(_ context.Context, symbol, year string) ([]models.Report, error) {
	return f.reports[symbol+"/"+year], nil
}

type fakePipeline struct {
	calls   int
	symbols []string
	years   []string
	onRun   func()
	err     error
}

func (f *fakePipeline) Run(_ context.Context, symbols, years []string) (*PipelineResult, error) {
	f.calls++
	f.symbols, f.years = symbols, years
	if f.onRun != nil {
		f.onRun()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &PipelineResult{Symbols: symbols, PDFs: 2, Analyzed: 1}, nil
}

type fakeKnowledge struct{ matches []knowledge.Match }

func (f fakeKnowledge) Search(context.Context, string, int) ([]knowledge.Match, error) {
	return f.matches, nil
}

func TestMarketOverview(t *testing.T) {
	s := NewService(Deps{Market: &fakeMarket{}})
	out, err := s.MarketOverview(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "Status: Market Closed")
	assert.Contains(t, out, "ASPI: 12000.50 (+10.00 / +0.08%)")
	assert.Contains(t, out, "S&P SL20: 3500.00 (-5.00 / -0.14%)")
	assert.Equal(t, 5, strings.Count(out, "\n- "))
}

func TestCompanyProfileResolvesSymbol(t *testing.T) {
	market := &fakeMarket{}
	s := NewService(Deps{Market: market, Trades: newTrades(t)})
	out, err := s.CompanyProfile(context.Background(), "jkh")
	require.NoError(t, err)
	assert.Equal(t, "JKH.N0000", market.infoSymbol)
	assert.Contains(t, out, "Company Profile for JKH.N0000")
	assert.Contains(t, out, "Market Cap: 250000000000")
}

func TestIntradayDataSamples(t *testing.T) {
	var chart []cse.Record
	for i := 0; i < 100; i++ {
		chart = append(chart, cse.Record{"p": float64(i)})
	}
	s := NewService(Deps{Market: &fakeMarket{chart: chart}})
	out, err := s.IntradayData(context.Background(), "JKH.N0000")
	require.NoError(t, err)

	_, body, ok := strings.Cut(out, "\n")
	require.True(t, ok)
	var points []map[string]float64
	require.NoError(t, json.Unmarshal([]byte(body), &points))
	assert.Len(t, points, 20)
	assert.Equal(t, 95.0, points[19]["p"])
}

func TestLatestAnnouncementsTopTen(t *testing.T) {
	s := NewService(Deps{Market: &fakeMarket{}})
	out, err := s.LatestAnnouncements(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "10. CO (CO.N0000): Interim [2025-05-01]")
	assert.NotContains(t, out, "11.")
}

func TestMarketTradeSummaryHeaderUsesConfiguredTopN(t *testing.T) {
	snap, err := tradesummary.LoadCSV(strings.NewReader(tradeCSV))
	require.NoError(t, err)
	trades := tradesummary.NewService(tradesummary.ProviderFunc(func(context.Context) (*tradesummary.Snapshot, error) {
		return snap, nil
	}), tradesummary.WithTopN(2))
	s := NewService(Deps{Trades: trades})

	out, err := s.MarketTradeSummary(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Market Trade Summary (Top 2 by Volume):")
	assert.NotContains(t, out, "HNB.X0000")

	trades.Configure(tradesummary.Columns{}, 3)
	out, err = s.MarketTradeSummary(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Market Trade Summary (Top 3 by Volume):")
}

func TestMarketTradeSummary(t *testing.T) {
	s := NewService(Deps{Trades: newTrades(t)})
	ctx := context.Background()

	out, err := s.MarketTradeSummary(ctx, nil)
	require.NoError(t, err)
	// The header names the configured cap, not the row count.
	assert.Contains(t, out, "Top 50 by Volume")
	// Highest volume first.
	assert.Less(t, strings.Index(out, "SAMP.N0000"), strings.Index(out, "JKH.N0000"))

	out, err = s.MarketTradeSummary(ctx, []string{"hnb"})
	require.NoError(t, err)
	assert.Contains(t, out, "requested symbols")
	assert.Contains(t, out, "HNB.N0000")
	assert.Contains(t, out, "HNB.X0000")
	assert.NotContains(t, out, "JKH.N0000")

	out, err = s.MarketTradeSummary(ctx, []string{"ZZZ"})
	require.NoError(t, err)
	assert.Equal(t, "Warning: No data found for symbols: ZZZ", out)
}

func TestFindCompanyInfo(t *testing.T) {
	s := NewService(Deps{Trades: newTrades(t)})
	out, err := s.FindCompanyInfo(context.Background(), "bank")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Found 3 matches for 'bank'"))
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// Heading, blank line, table header, separator, three rows.
	assert.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[2]), "| Symbol"))

	out, err = s.FindCompanyInfo(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Contains(t, out, "No companies found")
}

func TestFinancialAnalysisPrefersStore(t *testing.T) {
	pipeline := &fakePipeline{}
	s := NewService(Deps{
		Trades:   newTrades(t),
		Pipeline: pipeline,
		Reports: &fakeReports{reports: map[string][]models.Report{
			"JKH.N0000/2025": {{Symbol: "JKH.N0000", Year: "2025", Quarter: "Q1", FileName: "a.json", Content: json.RawMessage(`{"x":1}`)}},
		}},
	})
	out, err := s.FinancialAnalysis(context.Background(), "JKH", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 analysis reports for JKH.N0000 (2025) in database")
	assert.Contains(t, out, `{"x":1}`)
	assert.Zero(t, pipeline.calls)
}

func TestFinancialAnalysisReadsFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "JKH.N0000_2025-06-30_analysis.json"), []byte(`{"q":"Q1"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "JKH.N0000_2024-12-31_analysis.json"), []byte(`{}`), 0o644))

	pipeline := &fakePipeline{}
	s := NewService(Deps{Trades: newTrades(t), Pipeline: pipeline, AnalysisDir: dir})
	out, err := s.FinancialAnalysis(context.Background(), "JKH", "2025")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 analysis reports")
	assert.Contains(t, out, "--- FILE: JKH.N0000_2025-06-30_analysis.json ---")
	assert.Zero(t, pipeline.calls)
}

func TestFinancialAnalysisScrapesWhenMissing(t *testing.T) {
	dir := t.TempDir()
	pipeline := &fakePipeline{}
	pipeline.onRun = func() {
		_ = os.WriteFile(filepath.Join(dir, "SAMP.N0000_2024-03-31_analysis.json"), []byte(`{}`), 0o644)
	}
	s := NewService(Deps{Trades: newTrades(t), Pipeline: pipeline, AnalysisDir: dir})

	out, err := s.FinancialAnalysis(context.Background(), "samp", "2024")
	require.NoError(t, err)
	assert.Equal(t, 1, pipeline.calls)
	assert.Equal(t, []string{"SAMP.N0000"}, pipeline.symbols)
	assert.Equal(t, []string{"2024"}, pipeline.years)
	assert.Contains(t, out, "Found 1 analysis reports for SAMP.N0000 (2024)")

	pipeline.onRun = nil
	out, err = s.FinancialAnalysis(context.Background(), "HNB", "2023")
	require.NoError(t, err)
	assert.Contains(t, out, "no analysis was generated")

	pipeline.err = errors.New("browser crashed")
	_, err = s.FinancialAnalysis(context.Background(), "HNB", "2023")
	assert.ErrorContains(t, err, "browser crashed")
}

func TestScrapeAndAnalyzeDefaults(t *testing.T) {
	pipeline := &fakePipeline{}
	s := NewService(Deps{Trades: newTrades(t), Pipeline: pipeline, AnalysisDir: "/tmp/analysis_results"})
	out, err := s.ScrapeAndAnalyze(context.Background(), []string{"jkh", " "}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"JKH.N0000"}, pipeline.symbols)
	assert.Equal(t, DefaultReportYears, pipeline.years)
	assert.Contains(t, out, "Analyzed 1 out of 2 documents")
	assert.Contains(t, out, "'analysis_results'")
}

func TestUnconfiguredDependencies(t *testing.T) {
	s := NewService(Deps{})
	ctx := context.Background()

	_, err := s.MarketOverview(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = s.SearchKnowledgeBase(ctx, "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, "JKH", s.ResolveSymbol(ctx, " jkh "))
}

func TestSearchKnowledgeBase(t *testing.T) {
	s := NewService(Deps{Knowledge: fakeKnowledge{matches: []knowledge.Match{
		{Source: "notes.pdf", Page: 2, Content: "Dividend of Rs. 2 per share."},
	}}})
	out, err := s.SearchKnowledgeBase(context.Background(), "dividend")
	require.NoError(t, err)
	assert.Equal(t, "[Source: notes.pdf, page 2]\nDividend of Rs. 2 per share.", out)

	s = NewService(Deps{Knowledge: fakeKnowledge{}})
	out, err = s.SearchKnowledgeBase(context.Background(), "dividend")
	require.NoError(t, err)
	assert.Contains(t, out, "No relevant information")
}

func TestEinoTools(t *testing.T) {
	s := NewService(Deps{Trades: newTrades(t), Market: &fakeMarket{err: errors.New("api down")}})
	ctx := context.Background()

	byName := make(map[string]tool.InvokableTool)
	for _, bt := range s.EinoTools() {
		info, err := bt.Info(ctx)
		require.NoError(t, err)
		it, ok := bt.(tool.InvokableTool)
		require.True(t, ok)
		byName[info.Name] = it
	}
	assert.Len(t, byName, 10)

	out, err := byName[ToolResolveSymbol].InvokableRun(ctx, `{"symbol":"samp"}`)
	require.NoError(t, err)
	assert.Equal(t, "SAMP.N0000", out)

	out, err = byName[ToolMarketOverview].InvokableRun(ctx, `{}`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Error: get_market_overview failed"))
}
