package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dyike/BrokerGo/config"
	"github.com/dyike/BrokerGo/internal/agents"
	"github.com/dyike/BrokerGo/internal/analyzer"
	"github.com/dyike/BrokerGo/internal/cse"
	"github.com/dyike/BrokerGo/internal/debug"
	"github.com/dyike/BrokerGo/internal/knowledge"
	"github.com/dyike/BrokerGo/internal/logger"
	"github.com/dyike/BrokerGo/internal/scraper"
	"github.com/dyike/BrokerGo/internal/storage"
	"github.com/dyike/BrokerGo/internal/storage/sqlite"
	"github.com/dyike/BrokerGo/internal/tools"
	"github.com/dyike/BrokerGo/internal/tradesummary"
)

const downloadTimeout = 60 * time.Second

// App holds the components shared by the commands. Components that need
// an API key are built on demand.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	store   *sqlite.Store
	reports storage.ReportStore
	market  *cse.Client
	browser *scraper.Browser
	scraper *scraper.Scraper
	trades  *tradesummary.Service

	analyzer *analyzer.Analyzer
	kb       *knowledge.Base

	closers []func() error
}

func newLogger(cfg *config.Config, stderr bool) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		OutputFile:  cfg.LogFile,
		Environment: cfg.Environment,
		Stderr:      stderr,
	})
}

func columnsOf(c config.Columns) tradesummary.Columns {
	return tradesummary.Columns{
		Symbol: c.Symbol,
		Volume: c.Volume,
		Name:   c.Name,
	}
}

// openApp opens the stores and builds the market data side. Nothing here
// talks to the network until a command asks for data.
func openApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	if cfg.SSMParameterPrefix != "" {
		client, err := config.NewSSMClient(ctx)
		if err != nil {
			log.Warn("ssm unavailable, using environment secrets", zap.Error(err))
		} else if err := cfg.ResolveSecrets(ctx, client); err != nil {
			return nil, fmt.Errorf("resolve secrets: %w", err)
		}
	}

	app := &App{cfg: cfg, logger: log}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	app.store = store
	app.closers = append(app.closers, store.Close)

	if cfg.StoreDriver == "postgres" {
		reports, err := storage.OpenReportStore(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.reports = reports
		app.closers = append(app.closers, reports.Close)
	} else {
		app.reports = store
	}

	app.market = cse.NewClient(cse.WithLogger(log.Named("cse")))
	app.browser = scraper.NewBrowser(cfg.Headless, log.Named("browser"))
	app.scraper = scraper.New(scraper.Options{
		OutputDir:   cfg.DownloadsDir,
		TargetYears: cfg.TargetYears,
		Columns:     columnsOf(cfg.Columns),
	}, app.browser, scraper.NewDownloader(downloadTimeout), log.Named("scraper"))
	app.closers = append(app.closers, app.scraper.Close)

	app.trades = tradesummary.NewService(
		snapshotProvider(cfg, app.scraper, app.market, log),
		tradesummary.WithColumns(columnsOf(cfg.Columns)),
		tradesummary.WithTopN(cfg.TradeSummaryN),
		tradesummary.WithLogger(log.Named("tradesummary")),
	)
	return app, nil
}

// snapshotProvider picks the trade summary source. Live sources fall back
// to the newest CSV on disk.
func snapshotProvider(cfg *config.Config, sc *scraper.Scraper, market *cse.Client, log *zap.Logger) tradesummary.Provider {
	var provider tradesummary.Provider = tradesummary.CSVFileProvider{Dir: cfg.TradeSummaryDir()}
	var live tradesummary.Provider
	switch cfg.SnapshotSource {
	case "api":
		live = cse.Provider{Client: market}
	case "scraper":
		live = scraper.TradeSummaryProvider{Scraper: sc}
	}
	if live != nil {
		provider = tradesummary.FallbackProvider{
			Providers: []tradesummary.Provider{live, provider},
			Logger:    log,
		}
	}
	if cfg.SnapshotCache {
		provider = tradesummary.NewDailyCache(provider, log)
	}
	return provider
}

// Configure applies a reloaded config to the parts that can change live.
func (a *App) Configure(r config.Reload) {
	if len(r.Restart) > 0 {
		a.logger.Warn("configuration changed, restart to apply", zap.Strings("keys", r.Restart))
	}
	if !r.Lookup {
		return
	}
	a.trades.Configure(columnsOf(r.Columns), r.TopN)
	a.logger.Info("lookup settings applied",
		zap.String("symbol_column", r.Columns.Symbol),
		zap.String("volume_column", r.Columns.Volume),
		zap.Int("top_n", r.TopN))
}

// Analyzer builds the report analyzer. It needs a Google API key.
func (a *App) Analyzer(ctx context.Context) (*analyzer.Analyzer, error) {
	if a.analyzer != nil {
		return a.analyzer, nil
	}
	extractor, err := analyzer.NewGeminiExtractor(ctx, a.cfg.GoogleAPIKey, a.cfg.ExtractModel, a.logger.Named("extractor"))
	if err != nil {
		return nil, err
	}
	a.analyzer = analyzer.New(extractor, a.reports, a.cfg.AnalysisDir, a.logger.Named("analyzer"))
	return a.analyzer, nil
}

// KnowledgeBase builds the uploaded-document index. It needs a Google API
// key for embeddings.
func (a *App) KnowledgeBase(ctx context.Context) (*knowledge.Base, error) {
	if a.kb != nil {
		return a.kb, nil
	}
	embedder, err := knowledge.NewGeminiEmbedder(ctx, a.cfg.GoogleAPIKey, a.cfg.EmbeddingModel, a.logger.Named("embedder"))
	if err != nil {
		return nil, err
	}
	splitter, err := knowledge.NewSplitter(ctx, a.cfg.KBChunkSize, a.cfg.KBChunkOverlap)
	if err != nil {
		return nil, err
	}
	a.kb = knowledge.New(a.store, embedder,
		knowledge.WithSplitter(splitter),
		knowledge.WithTopK(a.cfg.KBTopK),
		knowledge.WithLogger(a.logger.Named("knowledge")),
	)
	return a.kb, nil
}

// Tools wires the tool service. Operations whose components could not be
// built report themselves unavailable.
func (a *App) Tools(ctx context.Context) *tools.Service {
	deps := tools.Deps{
		Market:      a.market,
		Trades:      a.trades,
		Reports:     a.reports,
		AnalysisDir: a.cfg.AnalysisDir,
		Logger:      a.logger.Named("tools"),
	}
	if an, err := a.Analyzer(ctx); err != nil {
		a.logger.Warn("report analysis disabled", zap.Error(err))
	} else {
		deps.Pipeline = &tools.ReportPipeline{Scraper: a.scraper, Analyzer: an, Logger: a.logger.Named("pipeline")}
	}
	if kb, err := a.KnowledgeBase(ctx); err != nil {
		a.logger.Warn("knowledge base disabled", zap.Error(err))
	} else {
		deps.Knowledge = kb
	}
	return tools.NewService(deps)
}

// Broker builds the chat agent over svc's tools.
func (a *App) Broker(ctx context.Context, svc *tools.Service) (*agents.Broker, error) {
	if err := debug.NewEinoDebugger(a.cfg, a.logger.Named("debug")).Initialize(ctx); err != nil {
		a.logger.Warn("eino debug unavailable", zap.Error(err))
	}
	chatModel, err := agents.NewChatModel(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	return agents.NewBroker(ctx, agents.Config{
		Model:    chatModel,
		Tools:    svc.EinoTools(),
		MaxStep:  a.cfg.MaxStep,
		Sessions: a.store,
		Logger:   a.logger.Named("agent"),
	})
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
