package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyike/BrokerGo/config"
	"github.com/dyike/BrokerGo/internal/mcpserver"
	"github.com/dyike/BrokerGo/internal/server"
	"github.com/dyike/BrokerGo/internal/tools"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

type rootOptions struct {
	configPath string
	debug      bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "brokergo",
		Short: "BrokerGo - CSE broker agent",
		Long: `BrokerGo answers questions about the Colombo Stock Exchange with an LLM agent.
It resolves company names to ticker symbols, reads the daily trade summary,
scrapes and analyses quarterly reports and serves the agent over HTTP or MCP.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Configuration file path (hot-reloaded by serve)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newMCPCmd(opts),
		newChatCmd(opts),
		newScrapeCmd(opts),
		newAnalyzeCmd(opts),
		newResolveCmd(opts),
		newTradesCmd(opts),
		newFindCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfig reads --config when given, creating it from the environment
// defaults on first use. The manager is nil without --config.
func (o *rootOptions) loadConfig() (*config.Config, *config.Manager, error) {
	cfg := config.DefaultConfig()
	var mgr *config.Manager
	if o.configPath != "" {
		var err error
		mgr, err = config.NewManager(config.WithConfigPath(o.configPath), config.WithInitialConfig(cfg))
		if err != nil {
			return nil, nil, err
		}
		loaded := mgr.Get()
		cfg = &loaded
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, mgr, nil
}

// open loads the configuration and builds the App. stderr keeps logs off
// stdout for the MCP transport.
func (o *rootOptions) open(ctx context.Context, stderr bool) (*App, *config.Manager, error) {
	cfg, mgr, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg, stderr)
	if err != nil {
		return nil, nil, err
	}
	app, err := openApp(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return app, mgr, nil
}

// lookupTools serves the trade summary and market operations only, so the
// lookup commands run without LLM credentials.
func (a *App) lookupTools() *tools.Service {
	return tools.NewService(tools.Deps{
		Market: a.market,
		Trades: a.trades,
		Logger: a.logger.Named("tools"),
	})
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat web UI and API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, mgr, err := opts.open(ctx, false)
			if err != nil {
				return err
			}
			defer app.Close()

			if mgr != nil {
				if err := mgr.Watch(ctx, app.Configure); err != nil {
					app.logger.Warn("config hot reload disabled", zap.Error(err))
				}
			}

			svc := app.Tools(ctx)
			broker, err := app.Broker(ctx, svc)
			if err != nil {
				return err
			}
			var kb server.KnowledgeBase
			if app.kb != nil {
				kb = app.kb
			}
			if addr == "" {
				addr = app.cfg.HTTPAddr
			}
			return server.New(broker, kb, app.cfg.UploadDir, app.logger.Named("http")).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to http_addr)")
	return cmd
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the broker tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, _, err := opts.open(ctx, true)
			if err != nil {
				return err
			}
			defer app.Close()
			return mcpserver.New(app.Tools(ctx), Version, app.logger.Named("mcp")).Run(ctx)
		},
	}
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the broker agent in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, _, err := opts.open(ctx, true)
			if err != nil {
				return err
			}
			defer app.Close()

			broker, err := app.Broker(ctx, app.Tools(ctx))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			displayBanner(out)

			sessionID := uuid.NewString()
			for {
				question, err := promptForQuestion()
				if errors.Is(err, errQuit) {
					return nil
				}
				if err != nil {
					return err
				}
				if question == "/reset" {
					if err := broker.Reset(ctx, sessionID); err != nil {
						printError(out, "reset failed: %v", err)
					}
					sessionID = uuid.NewString()
					printSuccess(out, "Started a new conversation.")
					continue
				}

				fmt.Fprint(out, agentStyle.Render("Broker: "))
				_, err = broker.Stream(ctx, sessionID, question, func(chunk string) error {
					_, werr := fmt.Fprint(out, chunk)
					return werr
				})
				fmt.Fprintln(out)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					printError(out, "%v", err)
				}
				fmt.Fprintln(out)
			}
		},
	}
}

func newScrapeCmd(opts *rootOptions) *cobra.Command {
	var years []string
	var yes bool
	cmd := &cobra.Command{
		Use:   "scrape [symbols...]",
		Short: "Download the trade summary and quarterly reports",
		Long: `Download today's trade summary and the quarterly report PDFs of the given
symbols. Without symbols every normal share in the trade summary is scraped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 0 && !yes {
				ok, err := confirm("Scrape reports for every normal share?")
				if err != nil || !ok {
					return err
				}
			}
			app, _, err := opts.open(ctx, false)
			if err != nil {
				return err
			}
			defer app.Close()

			symbols := make([]string, 0, len(args))
			for _, arg := range args {
				symbols = append(symbols, app.trades.Resolve(ctx, arg))
			}
			run, err := app.scraper.WithTargetYears(years).Run(ctx, symbols)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := [][2]string{{"Trade summary", run.TradeSummaryPath}}
			for _, symbol := range run.Symbols {
				if ferr, failed := run.Failed[symbol]; failed {
					rows = append(rows, [2]string{symbol, errorStyle.Render(ferr.Error())})
					continue
				}
				rows = append(rows, [2]string{symbol, strconv.Itoa(len(run.Reports[symbol])) + " reports"})
			}
			printRows(out, "Scrape results", rows)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&years, "years", nil, "Report years to keep (defaults to target_years)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask before scraping every company")
	return cmd
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var symbols []string
	cmd := &cobra.Command{
		Use:   "analyze [dir]",
		Short: "Extract structured financials from downloaded report PDFs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, _, err := opts.open(ctx, false)
			if err != nil {
				return err
			}
			defer app.Close()

			an, err := app.Analyzer(ctx)
			if err != nil {
				return err
			}
			dir := app.cfg.ReportsDir()
			if len(args) == 1 {
				dir = args[0]
			}
			results, err := an.AnalyzeDir(ctx, dir, symbols)
			out := cmd.OutOrStdout()
			for _, res := range results {
				printSuccess(out, "%s -> %s", res.Symbol, res.OutputPath)
			}
			if len(results) == 0 && err == nil {
				printWarning(out, "No report PDFs found in %s", dir)
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&symbols, "symbols", nil, "Only analyse reports of these symbols")
	return cmd
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <input>",
		Short: "Resolve a company name or partial symbol to a ticker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, _, err := opts.open(ctx, false)
			if err != nil {
				return err
			}
			defer app.Close()
			fmt.Fprintln(cmd.OutOrStdout(), app.trades.Resolve(ctx, strings.Join(args, " ")))
			return nil
		},
	}
}

func newTradesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trades [symbols...]",
		Short: "Show trade summary rows for symbols, or the top rows by volume",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, _, err := opts.open(ctx, false)
			if err != nil {
				return err
			}
			defer app.Close()
			text, err := app.lookupTools().MarketTradeSummary(ctx, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newFindCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find <query>",
		Short: "Search the trade summary for companies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, _, err := opts.open(ctx, false)
			if err != nil {
				return err
			}
			defer app.Close()
			text, err := app.lookupTools().FindCompanyInfo(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "brokergo %s\n", Version)
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.loadConfig()
			if err != nil {
				return err
			}
			showConfig(cmd, cfg)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and create directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return validateConfig(cmd, cfg)
		},
	})
	return cmd
}

func showConfig(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	printRows(out, "Paths", [][2]string{
		{"Data directory", cfg.DataDir},
		{"Downloads", cfg.DownloadsDir},
		{"Analysis results", cfg.AnalysisDir},
		{"Uploads", cfg.UploadDir},
		{"Database", cfg.DBPath},
		{"Store driver", cfg.StoreDriver},
	})
	printRows(out, "Agent", [][2]string{
		{"LLM provider", cfg.LLMProvider},
		{"Chat model", cfg.ChatModel},
		{"Extract model", cfg.ExtractModel},
		{"Embedding model", cfg.EmbeddingModel},
		{"Max steps", strconv.Itoa(cfg.MaxStep)},
		{"Google API key", configured(cfg.GoogleAPIKey)},
		{"DeepSeek API key", configured(cfg.DeepSeekAPIKey)},
		{"OpenAI API key", configured(cfg.OpenAIAPIKey)},
	})
	printRows(out, "Trade summary", [][2]string{
		{"Source", cfg.SnapshotSource},
		{"Daily cache", strconv.FormatBool(cfg.SnapshotCache)},
		{"Top N", strconv.Itoa(cfg.TradeSummaryN)},
		{"Symbol column", orAuto(cfg.Columns.Symbol)},
		{"Volume column", orAuto(cfg.Columns.Volume)},
		{"Name column", orAuto(cfg.Columns.Name)},
		{"Target years", strings.Join(cfg.TargetYears, ", ")},
	})
	rows := [][2]string{
		{"HTTP address", cfg.HTTPAddr},
		{"Log level", cfg.LogLevel},
		{"Eino debug", strconv.FormatBool(cfg.EinoDebugEnabled)},
	}
	if cfg.EinoDebugEnabled {
		rows = append(rows, [2]string{"Eino debug port", strconv.Itoa(cfg.EinoDebugPort)})
	}
	printRows(out, "Runtime", rows)
}

func orAuto(column string) string {
	if column == "" {
		return "(auto)"
	}
	return column
}

func validateConfig(cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	if err := cfg.EnsureDirectories(); err != nil {
		printError(out, "directories: %v", err)
		return err
	}
	printSuccess(out, "Directories ready")

	if err := cfg.ValidateCredentials(); err != nil {
		printWarning(out, "Chat agent unavailable: %v", err)
	} else {
		printSuccess(out, "%s credentials configured", cfg.LLMProvider)
	}
	if cfg.GoogleAPIKey == "" {
		printWarning(out, "GOOGLE_API_KEY not set: report analysis and the knowledge base are disabled")
	}
	printSuccess(out, "Configuration is valid")
	return nil
}
