// Package mcpserver exposes the broker tools over the Model Context
// Protocol.
package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/dyike/BrokerGo/internal/tools"
)

const ServerName = "cse-broker"

type Server struct {
	mcp     *mcp.Server
	service *tools.Service
	logger  *zap.Logger
}

func New(service *tools.Service, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mcp:     mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil),
		service: service,
		logger:  logger,
	}
	s.register()
	return s
}

// MCP returns the underlying server, e.g. to connect custom transports.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Run serves over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio", zap.String("name", ServerName))
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// addTextTool registers fn under name. Errors are returned to the client
// as tool errors rather than protocol errors.
func addTextTool[In any](s *Server, name, desc string, fn func(ctx context.Context, in In) (string, error)) {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: desc},
		func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
			start := time.Now()
			out, err := fn(ctx, in)
			if err != nil {
				s.logger.Warn("mcp tool failed", zap.String("tool", name), zap.Error(err))
				res := textResult(fmt.Sprintf("Error: %v", err))
				res.IsError = true
				return res, nil, nil
			}
			s.logger.Debug("mcp tool done", zap.String("tool", name), zap.Duration("took", time.Since(start)))
			return textResult(out), nil, nil
		})
}

func (s *Server) register() {
	svc := s.service
	addTextTool(s, tools.ToolMarketOverview, tools.DescMarketOverview,
		func(ctx context.Context, _ tools.NoInput) (string, error) { return svc.MarketOverview(ctx) })
	addTextTool(s, tools.ToolCompanyProfile, tools.DescCompanyProfile,
		func(ctx context.Context, in tools.SymbolInput) (string, error) {
			return svc.CompanyProfile(ctx, in.Symbol)
		})
	addTextTool(s, tools.ToolIntradayData, tools.DescIntradayData,
		func(ctx context.Context, in tools.SymbolInput) (string, error) {
			return svc.IntradayData(ctx, in.Symbol)
		})
	addTextTool(s, tools.ToolLatestAnnouncements, tools.DescLatestAnnouncements,
		func(ctx context.Context, _ tools.NoInput) (string, error) { return svc.LatestAnnouncements(ctx) })
	addTextTool(s, tools.ToolResolveSymbol, tools.DescResolveSymbol,
		func(ctx context.Context, in tools.SymbolInput) (string, error) {
			return svc.ResolveSymbol(ctx, in.Symbol), nil
		})
	addTextTool(s, tools.ToolMarketTradeSummary, tools.DescMarketTradeSummary,
		func(ctx context.Context, in tools.SymbolsInput) (string, error) {
			return svc.MarketTradeSummary(ctx, in.Symbols)
		})
	addTextTool(s, tools.ToolFindCompanyInfo, tools.DescFindCompanyInfo,
		func(ctx context.Context, in tools.QueryInput) (string, error) {
			return svc.FindCompanyInfo(ctx, in.Query)
		})
	addTextTool(s, tools.ToolScrapeAndAnalyze, tools.DescScrapeAndAnalyze,
		func(ctx context.Context, in tools.ScrapeInput) (string, error) {
			return svc.ScrapeAndAnalyze(ctx, in.Symbols, in.TargetYears)
		})
	addTextTool(s, tools.ToolFinancialAnalysis, tools.DescFinancialAnalysis,
		func(ctx context.Context, in tools.AnalysisInput) (string, error) {
			return svc.FinancialAnalysis(ctx, in.Symbol, in.Year)
		})
	addTextTool(s, tools.ToolSearchKnowledgeBase, tools.DescSearchKnowledgeBase,
		func(ctx context.Context, in tools.KnowledgeQueryInput) (string, error) {
			return svc.SearchKnowledgeBase(ctx, in.Query)
		})
}
