package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// passText hands tool output to the model as is instead of JSON-quoting it.
func passText(_ context.Context, output any) (string, error) {
	if s, ok := output.(string); ok {
		return s, nil
	}
	return fmt.Sprint(output), nil
}

// newTextTool wraps fn so that failures are reported to the model as text
// and the agent can decide what to do next.
func newTextTool[T any](s *Service, info *schema.ToolInfo, fn func(ctx context.Context, in T) (string, error)) tool.InvokableTool {
	return t_utils.NewTool(info, func(ctx context.Context, in T) (string, error) {
		out, err := fn(ctx, in)
		if err != nil {
			s.logger.Warn("tool call failed", zap.String("tool", info.Name), zap.Error(err))
			return fmt.Sprintf("Error: %s failed: %v", info.Name, err), nil
		}
		return out, nil
	}, t_utils.WithMarshalOutput(passText))
}

var (
	symbolParam = &schema.ParameterInfo{
		Type:     "string",
		Desc:     "Stock symbol, e.g. 'JKH' or 'JKH.N0000'",
		Required: true,
	}
	symbolListParam = &schema.ParameterInfo{
		Type:     "array",
		Desc:     "Company symbols, e.g. ['JKH', 'SAMP', 'HNB']",
		ElemInfo: &schema.ParameterInfo{Type: "string"},
	}
)

// EinoTools returns every operation as an eino tool.
func (s *Service) EinoTools() []tool.BaseTool {
	return []tool.BaseTool{
		newTextTool(s, &schema.ToolInfo{
			Name:        ToolMarketOverview,
			Desc:        DescMarketOverview,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		}, func(ctx context.Context, _ NoInput) (string, error) {
			return s.MarketOverview(ctx)
		}),
		newTextTool(s, &schema.ToolInfo{
			Name: ToolCompanyProfile,
			Desc: DescCompanyProfile,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": symbolParam,
			}),
		}, func(ctx context.Context, in SymbolInput) (string, error) {
			return s.CompanyProfile(ctx, in.Symbol)
		}),
		newTextTool(s, &schema.ToolInfo{
			Name: ToolIntradayData,
			Desc: DescIntradayData,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": symbolParam,
			}),
		}, func(ctx context.Context, in SymbolInput) (string, error) {
			return s.IntradayData(ctx, in.Symbol)
		}),
		newTextTool(s, &schema.ToolInfo{
			Name:        ToolLatestAnnouncements,
			Desc:        DescLatestAnnouncements,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		}, func(ctx context.Context, _ NoInput) (string, error) {
			return s.LatestAnnouncements(ctx)
		}),
		newTextTool(s, &schema.ToolInfo{
			Name: ToolResolveSymbol,
			Desc: DescResolveSymbol,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": symbolParam,
			}),
		}, func(ctx context.Context, in SymbolInput) (string, error) {
			return s.ResolveSymbol(ctx, in.Symbol), nil
		}),
		newTextTool(s, &schema.ToolInfo{
			Name: ToolMarketTradeSummary,
			Desc: DescMarketTradeSummary,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbols": symbolListParam,
			}),
		}, func(ctx context.Context, in SymbolsInput) (string, error) {
			return s.MarketTradeSummary(ctx, in.Symbols)
		}),
		newTextTool(s, &schema.ToolInfo{
			Name: ToolFindCompanyInfo,
			Desc: DescFindCompanyInfo,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "Company name or symbol to search for",
					Required: true,
				},
			}),
		}, func(ctx context.Context, in QueryInput) (string, error) {
			return s.FindCompanyInfo(ctx, in.Query)
		}),
		newTextTool(s, &schema.ToolInfo{
			Name: ToolScrapeAndAnalyze,
			Desc: DescScrapeAndAnalyze,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbols": symbolListParam,
				"target_years": {
					Type:     "array",
					Desc:     "Report years to keep (default ['2025', '2024'])",
					ElemInfo: &schema.ParameterInfo{Type: "string"},
				},
			}),
		}, func(ctx context.Context, in ScrapeInput) (string, error) {
			return s.ScrapeAndAnalyze(ctx, in.Symbols, in.TargetYears)
		}),
		newTextTool(s, &schema.ToolInfo{
			Name: ToolFinancialAnalysis,
			Desc: DescFinancialAnalysis,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": symbolParam,
				"year": {
					Type: "string",
					Desc: "Report year (default '2025')",
				},
			}),
		}, func(ctx context.Context, in AnalysisInput) (string, error) {
			return s.FinancialAnalysis(ctx, in.Symbol, in.Year)
		}),
		newTextTool(s, &schema.ToolInfo{
			Name: ToolSearchKnowledgeBase,
			Desc: DescSearchKnowledgeBase,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "Question to look up in the uploaded documents",
					Required: true,
				},
			}),
		}, func(ctx context.Context, in KnowledgeQueryInput) (string, error) {
			return s.SearchKnowledgeBase(ctx, in.Query)
		}),
	}
}
