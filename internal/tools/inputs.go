package tools

// Tool names shared by the eino agent and the MCP server.
const (
	ToolMarketOverview      = "get_market_overview"
	ToolCompanyProfile      = "get_company_profile"
	ToolIntradayData        = "get_intraday_data"
	ToolLatestAnnouncements = "get_latest_announcements"
	ToolResolveSymbol       = "resolve_symbol"
	ToolMarketTradeSummary  = "get_market_trade_summary"
	ToolFindCompanyInfo     = "find_company_info"
	ToolScrapeAndAnalyze    = "scrape_and_analyze_cse_reports"
	ToolFinancialAnalysis   = "get_financial_analysis_for_symbol"
	ToolSearchKnowledgeBase = "search_knowledge_base"
)

// Tool descriptions, written for the model.
const (
	DescMarketOverview      = "Get a snapshot of the market today: market status (open/closed), the ASPI and S&P SL20 indices and the top gainers."
	DescCompanyProfile      = "Get current information for one company from the official CSE API: name, last traded price, change and market cap."
	DescIntradayData        = "Get today's intraday price movement for a stock, sampled to about twenty points."
	DescLatestAnnouncements = "Get the latest financial announcements published on the CSE."
	DescResolveSymbol       = "Resolve a short ticker to its full CSE symbol using today's trade summary, e.g. 'JKH' -> 'JKH.N0000'. Call this before any tool that needs a full symbol."
	DescMarketTradeSummary  = "Get the latest daily trade summary (volume, price, turnover). With symbols, returns every row whose symbol contains one of them; without, the top companies by share volume."
	DescFindCompanyInfo     = "Find a company's symbol and name by searching the daily trade summary for a company name or symbol fragment. Case-insensitive; shows up to three matches and the total count."
	DescScrapeAndAnalyze    = "Download quarterly report PDFs for the given symbols and target years and extract structured financial analysis from them. Slow; use only when analysis is missing."
	DescFinancialAnalysis   = "Get the extracted financial analysis (JSON) for a company and year. If none exists locally the reports are scraped and analysed automatically."
	DescSearchKnowledgeBase = "Search the documents the user uploaded (PDF or TXT) for passages relevant to a question."
)

type NoInput struct{}

type SymbolInput struct {
	Symbol string `json:"symbol" jsonschema:"stock symbol such as JKH or JKH.N0000"`
}

type SymbolsInput struct {
	Symbols []string `json:"symbols,omitempty" jsonschema:"symbols to filter by, e.g. [\"JKH\", \"SAMP\"]; empty for the top companies by volume"`
}

type QueryInput struct {
	Query string `json:"query" jsonschema:"company name or symbol fragment"`
}

type KnowledgeQueryInput struct {
	Query string `json:"query" jsonschema:"question to look up in the uploaded documents"`
}

type ScrapeInput struct {
	Symbols     []string `json:"symbols,omitempty" jsonschema:"symbols to scrape; empty means every normal share in the trade summary"`
	TargetYears []string `json:"target_years,omitempty" jsonschema:"report years to keep, default [\"2025\", \"2024\"]"`
}

type AnalysisInput struct {
	Symbol string `json:"symbol" jsonschema:"company symbol, e.g. JKH or SAMP"`
	Year   string `json:"year,omitempty" jsonschema:"report year, default 2025"`
}
