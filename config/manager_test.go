package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestManagerCreatesAndUpdates(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	path := filepath.Join(dir, "config.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	cfg := mgr.Get()
	if cfg.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("expected data dir rooted at %s, got %s", dir, cfg.DataDir)
	}
	cfg.Columns.Symbol = "Ticker"
	cfg.TradeSummaryN = 20

	data, _ := json.Marshal(cfg)
	if err := mgr.UpdateFromJSON(string(data)); err != nil {
		t.Fatalf("UpdateFromJSON: %v", err)
	}

	updated := mgr.Get()
	if updated.Columns.Symbol != "Ticker" || updated.TradeSummaryN != 20 {
		t.Fatalf("update not applied: %+v", updated)
	}
}

func TestManagerRejectsInvalidUpdate(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	cfg := mgr.Get()
	cfg.TradeSummaryN = 0
	if err := mgr.Update(cfg); err == nil {
		t.Fatalf("expected validation error")
	}
	if mgr.Get().TradeSummaryN != 50 {
		t.Fatalf("invalid config should not be applied")
	}
}

func TestManagerWatchReloads(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir), WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Reload, 1)
	if err := mgr.Watch(ctx, func(r Reload) {
		select {
		case reloaded <- r:
		default:
		}
	}); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	cfg := mgr.Get()
	cfg.Columns.Volume = "Share Volume"
	cfg.TradeSummaryN = 10
	cfg.HTTPAddr = ":9999"
	if err := save(mgr.Path(), cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	select {
	case got := <-reloaded:
		if !got.Lookup || got.Columns.Volume != "Share Volume" || got.TopN != 10 {
			t.Fatalf("expected lookup reload, got %+v", got)
		}
		if len(got.Restart) != 1 || got.Restart[0] != "http_addr" {
			t.Fatalf("expected http_addr to need a restart, got %v", got.Restart)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not fire on config change")
	}
	if mgr.Get().TradeSummaryN != 10 {
		t.Fatalf("reloaded config not stored")
	}
}

func TestManagerWatchIgnoresInvalidFile(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir), WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan Reload, 1)
	if err := mgr.Watch(ctx, func(r Reload) { fired <- r }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(mgr.Path(), []byte(`{"trade_summary_top_n": 0}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case r := <-fired:
		t.Fatalf("invalid config applied: %+v", r)
	case <-time.After(300 * time.Millisecond):
	}
	if mgr.Get().TradeSummaryN != 50 {
		t.Fatalf("previous config not kept")
	}
}

func TestManagerUpdateNotifiesWatcher(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []Reload
	if err := mgr.Watch(ctx, func(r Reload) { got = append(got, r) }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	cfg := mgr.Get()
	if err := mgr.Update(cfg); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("unchanged update should not notify, got %+v", got)
	}

	cfg.Columns.Symbol = "Ticker"
	if err := mgr.Update(cfg); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(got) != 1 || !got[0].Lookup || got[0].Columns.Symbol != "Ticker" || len(got[0].Restart) != 0 {
		t.Fatalf("unexpected notifications %+v", got)
	}
}

func TestDiff(t *testing.T) {
	base := *DefaultConfigWithRoot(t.TempDir())

	tests := []struct {
		name        string
		mutate      func(*Config)
		wantChanged bool
		wantLookup  bool
		wantRestart []string
	}{
		{name: "same", mutate: func(*Config) {}},
		{name: "top n", mutate: func(c *Config) { c.TradeSummaryN = 5 }, wantChanged: true, wantLookup: true},
		{name: "name column", mutate: func(c *Config) { c.Columns.Name = "Company" }, wantChanged: true, wantLookup: true},
		{name: "target years", mutate: func(c *Config) { c.TargetYears = []string{"2021"} }, wantChanged: true, wantRestart: []string{"target_years"}},
		{name: "api key and log level", mutate: func(c *Config) {
			c.GoogleAPIKey = "key"
			c.LogLevel = "debug"
		}, wantChanged: true, wantRestart: []string{"google_api_key", "log_level"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := base
			next.TargetYears = append([]string(nil), base.TargetYears...)
			tt.mutate(&next)
			r, changed := diff(base, next)
			if changed != tt.wantChanged || r.Lookup != tt.wantLookup {
				t.Fatalf("diff() changed=%v lookup=%v, want %v %v", changed, r.Lookup, tt.wantChanged, tt.wantLookup)
			}
			if !reflect.DeepEqual(r.Restart, tt.wantRestart) {
				t.Fatalf("diff() restart = %v, want %v", r.Restart, tt.wantRestart)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	base := DefaultConfigWithRoot(t.TempDir())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "postgres without dsn", mutate: func(c *Config) { c.StoreDriver = "postgres" }, wantErr: true},
		{name: "postgres with dsn", mutate: func(c *Config) {
			c.StoreDriver = "postgres"
			c.PostgresDSN = "host=localhost"
		}},
		{name: "unknown provider", mutate: func(c *Config) { c.LLMProvider = "bard" }, wantErr: true},
		{name: "unknown source", mutate: func(c *Config) { c.SnapshotSource = "ftp" }, wantErr: true},
		{name: "overlap too large", mutate: func(c *Config) { c.KBChunkOverlap = c.KBChunkSize }, wantErr: true},
		{name: "missing data dir", mutate: func(c *Config) { c.DataDir = " " }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TARGET_YEARS", "2023, 2022,,")
	t.Setenv("SNAPSHOT_CACHE", "true")
	t.Setenv("SYMBOL_COLUMN", "Ticker")
	t.Setenv("BROKER_DATA_DIR", "/tmp/broker")

	cfg := DefaultConfigWithRoot(t.TempDir())
	cfg.loadFromEnv()

	if len(cfg.TargetYears) != 2 || cfg.TargetYears[0] != "2023" || cfg.TargetYears[1] != "2022" {
		t.Fatalf("unexpected target years %v", cfg.TargetYears)
	}
	if !cfg.SnapshotCache {
		t.Fatalf("expected snapshot cache enabled")
	}
	if cfg.Columns.Symbol != "Ticker" {
		t.Fatalf("expected symbol column override, got %q", cfg.Columns.Symbol)
	}
	if cfg.DBPath != filepath.Join("/tmp/broker", "broker_agent.db") {
		t.Fatalf("unexpected db path %s", cfg.DBPath)
	}
}
