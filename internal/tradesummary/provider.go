package tradesummary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Provider fetches a fresh trade summary snapshot.
type Provider interface {
	Fetch(ctx context.Context) (*Snapshot, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (*Snapshot, error)

func (f ProviderFunc) Fetch(ctx context.Context) (*Snapshot, error) {
	return f(ctx)
}

// CSVFileSuffix is the suffix of scraped trade summary files.
const CSVFileSuffix = "_trade_summary.csv"

var ErrNoSnapshotFile = errors.New("no trade summary csv found")

// CSVFileProvider loads the most recent <date>_trade_summary.csv in Dir.
type CSVFileProvider struct {
	Dir string
}

func (p CSVFileProvider) Fetch(ctx context.Context) (*Snapshot, error) {
	path, err := LatestCSV(p.Dir)
	if err != nil {
		return nil, err
	}
	return LoadCSVFile(path)
}

// LatestCSV picks the lexically greatest trade summary file name, which is
// the newest since names start with an ISO date.
func LatestCSV(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w in %s", ErrNoSnapshotFile, dir)
		}
		return "", fmt.Errorf("read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), CSVFileSuffix) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoSnapshotFile, dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

func LoadCSVFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trade summary: %w", err)
	}
	defer f.Close()

	snap, err := LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	if info, err := f.Stat(); err == nil {
		snap.FetchedAt = info.ModTime()
	}
	return snap, nil
}

// FallbackProvider tries each provider in order and returns the first
// snapshot fetched without error.
type FallbackProvider struct {
	Providers []Provider
	Logger    *zap.Logger
}

func (p FallbackProvider) Fetch(ctx context.Context) (*Snapshot, error) {
	var errs []error
	for i, provider := range p.Providers {
		snap, err := provider.Fetch(ctx)
		if err == nil {
			return snap, nil
		}
		if p.Logger != nil {
			p.Logger.Warn("trade summary provider failed", zap.Int("index", i), zap.Error(err))
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, errors.New("no trade summary providers configured")
	}
	return nil, errors.Join(errs...)
}
