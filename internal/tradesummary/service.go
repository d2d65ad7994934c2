package tradesummary

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Service runs lookups against snapshots from a Provider. Each call fetches
// its own snapshot; wrap the provider in a DailyCache to share one per day.
type Service struct {
	provider Provider
	logger   *zap.Logger

	mu      sync.RWMutex
	columns Columns
	topN    int
}

type Option func(*Service)

func WithColumns(cols Columns) Option {
	return func(s *Service) { s.columns = cols }
}

func WithTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(provider Provider, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		logger:   zap.NewNop(),
		topN:     DefaultTopN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configure swaps the column mapping and row limit, e.g. on config reload.
func (s *Service) Configure(cols Columns, topN int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns = cols
	if topN > 0 {
		s.topN = topN
	}
}

func (s *Service) settings() (Columns, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.columns, s.topN
}

// Snapshot fetches the current trade summary.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap, err := s.provider.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch trade summary: %w", err)
	}
	return snap, nil
}

// Resolve never fails: fetch errors are logged and the normalised input is
// returned.
func (s *Service) Resolve(ctx context.Context, input string) string {
	cols, _ := s.settings()
	snap, err := s.Snapshot(ctx)
	if err != nil {
		s.logger.Warn("symbol resolution fell back to input", zap.String("input", input), zap.Error(err))
		return ResolveIn(nil, cols, input)
	}
	if _, ok := snap.SymbolColumn(cols); !ok {
		s.logger.Warn("trade summary has no symbol column", zap.Strings("headers", snap.Headers))
	}
	resolved := ResolveIn(snap, cols, input)
	s.logger.Debug("symbol resolved", zap.String("input", input), zap.String("symbol", resolved))
	return resolved
}

// TradeSummary returns the volume-ordered rows matching symbols, or the top
// rows when symbols is empty.
func (s *Service) TradeSummary(ctx context.Context, symbols []string) (*Result, error) {
	cols, topN := s.settings()
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	res := FilterIn(snap, cols, symbols, topN)
	if res.Empty() {
		s.logger.Info("trade summary lookup returned no rows", zap.Strings("symbols", symbols))
	}
	return res, nil
}

// FindCompany searches symbols and company names for query.
func (s *Service) FindCompany(ctx context.Context, query string) (*CompanyMatches, error) {
	cols, _ := s.settings()
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return SearchIn(snap, cols, query, CompanyMatchLimit)
}

// NormalShares lists ".N" symbols of the current snapshot by volume.
func (s *Service) NormalShares(ctx context.Context) ([]string, error) {
	cols, _ := s.settings()
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return NormalShares(snap, cols), nil
}
