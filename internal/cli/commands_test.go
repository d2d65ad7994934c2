package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dyike/BrokerGo/config"
	"github.com/dyike/BrokerGo/internal/cse"
	"github.com/dyike/BrokerGo/internal/scraper"
	"github.com/dyike/BrokerGo/internal/tradesummary"
)

const tradeCSV = `Company Name,Symbol,Share Volume,Last Trade (Rs.)
JOHN KEELLS HOLDINGS PLC,JKH.N0000,"1,500",195.50
SAMPATH BANK PLC,SAMP.N0000,"20,000",80.00
HATTON NATIONAL BANK PLC,HNB.N0000,800,250.00
HATTON NATIONAL BANK PLC,HNB.X0000,100,200.00
`

// writeWorkspace lays out a config file reading trade summaries from disk
// and returns its path.
func writeWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfigWithRoot(root)
	cfg.SnapshotSource = "file"
	cfg.LogLevel = "error"

	require.NoError(t, os.MkdirAll(cfg.TradeSummaryDir(), 0o755))
	csvPath := filepath.Join(cfg.TradeSummaryDir(), "2025-03-14"+tradesummary.CSVFileSuffix)
	require.NoError(t, os.WriteFile(csvPath, []byte(tradeCSV), 0o644))

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(root, "config.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	path := writeWorkspace(t)

	out, err := execute(t, "--config", path, "resolve", "samp")
	require.NoError(t, err)
	assert.Equal(t, "SAMP.N0000\n", out)

	out, err = execute(t, "--config", path, "resolve", "unknown")
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN\n", out)
}

func TestTradesCommand(t *testing.T) {
	path := writeWorkspace(t)

	out, err := execute(t, "--config", path, "trades")
	require.NoError(t, err)
	assert.Contains(t, out, "Market Trade Summary (Top 50 by Volume):")
	assert.Less(t, strings.Index(out, "SAMP.N0000"), strings.Index(out, "JKH.N0000"))

	out, err = execute(t, "--config", path, "trades", "HNB.N0000", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Market Trade Summary for requested symbols:")
	assert.Contains(t, out, "HNB.N0000")
	assert.NotContains(t, out, "SAMP.N0000")

	out, err = execute(t, "--config", path, "trades", "NOPE.N0000")
	require.NoError(t, err)
	assert.Contains(t, out, "Warning: No data found for symbols: NOPE.N0000")
}

func TestFindCommand(t *testing.T) {
	path := writeWorkspace(t)

	out, err := execute(t, "--config", path, "find", "hatton")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 matches for 'hatton':")
	assert.Contains(t, out, "HNB.X0000")
}

func TestConfigCommands(t *testing.T) {
	path := writeWorkspace(t)

	out, err := execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Trade summary")
	assert.Contains(t, out, "(auto)")

	out, err = execute(t, "--config", path, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}

func TestInvalidConfigRejected(t *testing.T) {
	path := writeWorkspace(t)
	var cfg config.Config
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &cfg))
	cfg.SnapshotSource = "ftp"
	data, err = json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = execute(t, "--config", path, "resolve", "samp")
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "brokergo dev\n", out)
}

func TestSnapshotProvider(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	sc := scraper.New(scraper.Options{OutputDir: cfg.DownloadsDir}, nil, nil, nil)
	market := cse.NewClient()
	log := zap.NewNop()

	cfg.SnapshotSource = "file"
	assert.IsType(t, tradesummary.CSVFileProvider{}, snapshotProvider(cfg, sc, market, log))

	cfg.SnapshotSource = "api"
	fallback, ok := snapshotProvider(cfg, sc, market, log).(tradesummary.FallbackProvider)
	require.True(t, ok)
	require.Len(t, fallback.Providers, 2)
	assert.IsType(t, cse.Provider{}, fallback.Providers[0])
	assert.IsType(t, tradesummary.CSVFileProvider{}, fallback.Providers[1])

	cfg.SnapshotSource = "scraper"
	fallback, ok = snapshotProvider(cfg, sc, market, log).(tradesummary.FallbackProvider)
	require.True(t, ok)
	assert.IsType(t, scraper.TradeSummaryProvider{}, fallback.Providers[0])

	cfg.SnapshotCache = true
	assert.IsType(t, &tradesummary.DailyCache{}, snapshotProvider(cfg, sc, market, log))
}

func TestAppConfigureUpdatesLookups(t *testing.T) {
	path := writeWorkspace(t)
	opts := &rootOptions{configPath: path}
	app, _, err := opts.open(context.Background(), true)
	require.NoError(t, err)
	defer app.Close()

	// Keys that need a restart leave the lookups alone.
	app.Configure(config.Reload{TopN: 1, Restart: []string{"http_addr"}})
	res, err := app.trades.TradeSummary(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 4)

	app.Configure(config.Reload{TopN: 1, Lookup: true})
	res, err = app.trades.TradeSummary(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "SAMP.N0000", res.Rows[0]["Symbol"])
}

func TestWatchedConfigUpdatesLookups(t *testing.T) {
	path := writeWorkspace(t)
	opts := &rootOptions{configPath: path}
	app, mgr, err := opts.open(context.Background(), true)
	require.NoError(t, err)
	defer app.Close()
	require.NotNil(t, mgr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, mgr.Watch(ctx, app.Configure))

	cfg := mgr.Get()
	cfg.TradeSummaryN = 2
	require.NoError(t, mgr.Update(cfg))

	out, err := app.lookupTools().MarketTradeSummary(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Market Trade Summary (Top 2 by Volume):")
}
