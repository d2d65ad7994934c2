package cse

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dyike/BrokerGo/internal/tradesummary"
)

func (c *Client) MarketStatus(ctx context.Context) (string, error) {
	var out Record
	if err := c.post(ctx, "marketStatus", nil, &out); err != nil {
		return "", err
	}
	return out.String("status"), nil
}

// Index is an index level such as the ASPI or S&P SL20.
type Index struct {
	Value            float64
	Change           float64
	ChangePercentage float64
}

func indexFrom(r Record) Index {
	var idx Index
	idx.Value, _ = r.Float("value")
	idx.Change, _ = r.Float("change")
	if p, ok := r.Float("changePercentage"); ok {
		idx.ChangePercentage = p
	} else {
		idx.ChangePercentage, _ = r.Float("percentage")
	}
	return idx
}

func (c *Client) ASPI(ctx context.Context) (Index, error) {
	var out Record
	if err := c.post(ctx, "aspiData", nil, &out); err != nil {
		return Index{}, err
	}
	return indexFrom(out), nil
}

func (c *Client) SNP(ctx context.Context) (Index, error) {
	var out Record
	if err := c.post(ctx, "snpData", nil, &out); err != nil {
		return Index{}, err
	}
	return indexFrom(out), nil
}

func (c *Client) list(ctx context.Context, endpoint string, form map[string]string) ([]Record, error) {
	var out []Record
	if err := c.post(ctx, endpoint, form, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) TopGainers(ctx context.Context) ([]Record, error) {
	return c.list(ctx, "topGainers", nil)
}

func (c *Client) TopLosers(ctx context.Context) ([]Record, error) {
	return c.list(ctx, "topLooses", nil)
}

func (c *Client) MostActive(ctx context.Context) ([]Record, error) {
	return c.list(ctx, "mostActiveTrades", nil)
}

// CompanyInfo returns the reqSymbolInfo block for symbol.
func (c *Client) CompanyInfo(ctx context.Context, symbol string) (Record, error) {
	var out struct {
		Info Record `json:"reqSymbolInfo"`
	}
	if err := c.post(ctx, "companyInfoSummery", map[string]string{"symbol": symbol}, &out); err != nil {
		return nil, err
	}
	if len(out.Info) == 0 {
		return nil, fmt.Errorf("cse companyInfoSummery: no data for %s", symbol)
	}
	return out.Info, nil
}

// ChartData returns the intraday price points of symbol.
func (c *Client) ChartData(ctx context.Context, symbol string) ([]Record, error) {
	return c.list(ctx, "chartData", map[string]string{
		"symbol":  symbol,
		"chartId": "1",
		"period":  "1",
	})
}

func (c *Client) Announcements(ctx context.Context) ([]Record, error) {
	var out struct {
		Items []Record `json:"reqFinancialAnnouncemnets"`
	}
	if err := c.post(ctx, "financialAnnouncement", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// tradeSummaryHeaders names the API keys the way the downloaded CSV does so
// column discovery behaves the same for both sources.
var tradeSummaryHeaders = []struct{ key, header string }{
	{"name", "Company Name"},
	{"symbol", "Symbol"},
	{"sharevolume", "Share Volume"},
	{"tradevolume", "Trade Volume"},
	{"turnover", "Turnover (Rs.)"},
	{"previousClose", "Previous Close (Rs.)"},
	{"open", "Open (Rs.)"},
	{"high", "High (Rs.)"},
	{"low", "Low (Rs.)"},
	{"price", "Last Trade (Rs.)"},
	{"change", "Change (Rs.)"},
	{"percentageChange", "Change (%)"},
}

// TradeSummary returns the day's per-symbol statistics as a snapshot.
func (c *Client) TradeSummary(ctx context.Context) (*tradesummary.Snapshot, error) {
	var out struct {
		Items []Record `json:"reqTradeSummery"`
	}
	if err := c.post(ctx, "tradeSummary", nil, &out); err != nil {
		return nil, err
	}
	return snapshotFromRecords(out.Items), nil
}

func snapshotFromRecords(items []Record) *tradesummary.Snapshot {
	known := make(map[string]bool, len(tradeSummaryHeaders))
	present := make(map[string]bool)
	for _, item := range items {
		for k := range item {
			present[k] = true
		}
	}

	type column struct{ key, header string }
	var cols []column
	for _, h := range tradeSummaryHeaders {
		known[h.key] = true
		if present[h.key] {
			cols = append(cols, column{h.key, h.header})
		}
	}
	var extra []string
	for k := range present {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		cols = append(cols, column{k, strings.TrimSpace(k)})
	}

	snap := &tradesummary.Snapshot{FetchedAt: time.Now()}
	for _, col := range cols {
		snap.Headers = append(snap.Headers, col.header)
	}
	for _, item := range items {
		row := make(tradesummary.Row, len(cols))
		for _, col := range cols {
			row[col.header] = item.String(col.key)
		}
		snap.Rows = append(snap.Rows, row)
	}
	return snap
}

// Provider adapts the trade summary endpoint to tradesummary.Provider.
type Provider struct {
	Client *Client
}

func (p Provider) Fetch(ctx context.Context) (*tradesummary.Snapshot, error) {
	return p.Client.TradeSummary(ctx)
}
