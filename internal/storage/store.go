package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dyike/BrokerGo/config"
	"github.com/dyike/BrokerGo/internal/storage/postgres"
	"github.com/dyike/BrokerGo/internal/storage/sqlite"
	"github.com/dyike/BrokerGo/models"
)

// ReportStore persists structured financial analyses keyed by
// (symbol, year, file name).
type ReportStore interface {
	SaveReport(ctx context.Context, report models.Report) error
	GetReports(ctx context.Context, symbol, year string) ([]models.Report, error)
	Close() error
}

var (
	_ ReportStore = (*sqlite.Store)(nil)
	_ ReportStore = (*postgres.Store)(nil)
)

var ErrUnknownDriver = errors.New("unknown store driver")

// OpenReportStore opens the analysis store selected by cfg.StoreDriver.
func OpenReportStore(ctx context.Context, cfg *config.Config) (ReportStore, error) {
	switch strings.ToLower(cfg.StoreDriver) {
	case "", "sqlite":
		return sqlite.Open(cfg.DBPath)
	case "postgres":
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres report store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.StoreDriver)
	}
}
