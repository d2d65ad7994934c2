package models

// FinancialReportAnalysis is the structured extraction of one interim or
// quarterly financial statement. The desc tags become field descriptions in
// the response schema sent to the model.
type FinancialReportAnalysis struct {
	CompanyInfo               CompanyInfo               `json:"company_info"`
	MarketData                MarketData                `json:"market_data"`
	FinancialPerformance      FinancialPerformance      `json:"financial_performance"`
	BalanceSheetStability     BalanceSheetStability     `json:"balance_sheet_stability"`
	CashFlowAnalysis          CashFlowAnalysis          `json:"cash_flow_analysis"`
	SegmentPerformance        []SegmentData             `json:"segment_performance"`
	InvestmentDecisionFactors InvestmentDecisionFactors `json:"investment_decision_factors"`
}

type CompanyInfo struct {
	Name          string `json:"name"`
	TickerSymbol  string `json:"ticker_symbol"`
	ReportPeriod  string `json:"report_period"`
	ReportEndDate string `json:"report_end_date" desc:"The end date of the reporting period strictly in YYYY-MM-DD format (e.g., 2025-09-30). Do not include any other text."`
	ReportType    string `json:"report_type"`
	Currency      string `json:"currency"`
	AuditStatus   string `json:"audit_status"`
}

type SharePricePerformance struct {
	PeriodLabel                  string  `json:"period_label" desc:"Label for the period, e.g., 'quarter_ended_30_jun_2025'"`
	ClosingPrice                 float64 `json:"closing_price"`
	HighestPrice                 float64 `json:"highest_price"`
	LowestPrice                  float64 `json:"lowest_price"`
	PriceEarningsRatioAnnualized float64 `json:"price_earnings_ratio_annualized"`
	SourceNote                   string  `json:"source_note"`
}

type ValuationMetrics struct {
	NetAssetsPerShareGroup            float64 `json:"net_assets_per_share_group"`
	PriceToBookStatus                 string  `json:"price_to_book_status"`
	PriceToBookRatio                  float64 `json:"price_to_book_ratio"`
	FloatAdjustedMarketCapitalization float64 `json:"float_adjusted_market_capitalization"`
	PublicShareholdingPercentage      float64 `json:"public_shareholding_percentage"`
	NumberOfPublicShareholders        int     `json:"number_of_public_shareholders"`
	ComplianceLevel                   string  `json:"compliance_level"`
}

type MarketData struct {
	SharePricePerformance SharePricePerformance `json:"share_price_performance"`
	ValuationMetrics      ValuationMetrics      `json:"valuation_metrics"`
}

type FinancialMetric struct {
	Current          float64 `json:"current"`
	Previous         float64 `json:"previous"`
	ChangePercentage float64 `json:"change_percentage"`
	Signal           string  `json:"signal"`
}

type Profitability struct {
	Revenue         FinancialMetric `json:"revenue"`
	GrossProfit     FinancialMetric `json:"gross_profit"`
	ProfitBeforeTax FinancialMetric `json:"profit_before_tax"`
	ProfitForPeriod FinancialMetric `json:"profit_for_period"`
}

type EPS struct {
	BasicEPSCurrent  float64 `json:"basic_eps_current"`
	BasicEPSPrevious float64 `json:"basic_eps_previous"`
	ChangePercentage float64 `json:"change_percentage"`
	Signal           string  `json:"signal"`
}

type CostOfSales struct {
	Current          float64 `json:"current"`
	ChangePercentage float64 `json:"change_percentage"`
	Note             string  `json:"note"`
}

type ExpensesAndEfficiency struct {
	CostOfSales  CostOfSales     `json:"cost_of_sales"`
	FinanceCosts FinancialMetric `json:"finance_costs"`
}

type FinancialPerformance struct {
	PeriodLabel           string                `json:"period_label" desc:"Label for the period, e.g., 'group_3_months_ended_...'"`
	Profitability         Profitability         `json:"profitability"`
	EarningsPerShare      EPS                   `json:"earnings_per_share_eps"`
	ExpensesAndEfficiency ExpensesAndEfficiency `json:"expenses_and_efficiency"`
}

type BalanceSheetAssets struct {
	TotalAssets          float64 `json:"total_assets"`
	PreviousAuditedValue float64 `json:"previous_audited_value" desc:"Value at previous audited date"`
	Signal               string  `json:"signal"`
}

type BalanceSheetLiabilities struct {
	TotalLiabilities               float64 `json:"total_liabilities"`
	InterestBearingLoansNonCurrent float64 `json:"interest_bearing_loans_non_current"`
	ShortTermLoansOverdrafts       float64 `json:"short_term_loans_overdrafts"`
	Signal                         string  `json:"signal"`
}

type BalanceSheetEquity struct {
	TotalEquity      float64 `json:"total_equity"`
	RetainedEarnings float64 `json:"retained_earnings"`
	Signal           string  `json:"signal"`
}

type BalanceSheetStability struct {
	AsAtDateLabel string                  `json:"as_at_date_label" desc:"Label for the date, e.g., 'as_at_30_jun_2025'"`
	Assets        BalanceSheetAssets      `json:"assets"`
	Liabilities   BalanceSheetLiabilities `json:"liabilities"`
	Equity        BalanceSheetEquity      `json:"equity"`
}

type CashFlowActivity struct {
	NetCashFlow          float64 `json:"net_cash_flow"`
	Status               string  `json:"status"`
	MajorOutflowsOrFlows string  `json:"major_outflows_or_flows"`
}

type CashFlowAnalysis struct {
	PeriodLabel             string           `json:"period_label" desc:"Label for the period"`
	OperatingActivities     CashFlowActivity `json:"operating_activities"`
	InvestingActivities     CashFlowActivity `json:"investing_activities"`
	FinancingActivities     CashFlowActivity `json:"financing_activities"`
	CashPositionEndOfPeriod float64          `json:"cash_position_end_of_period"`
	Signal                  string           `json:"signal"`
}

type SegmentData struct {
	Name            string  `json:"name" desc:"Name of the segment"`
	Revenue         float64 `json:"revenue"`
	ProfitBeforeTax float64 `json:"profit_before_tax"`
	Status          string  `json:"status"`
}

type InvestmentDecisionFactors struct {
	BuySignals    []string `json:"buy_signals"`
	SellHoldRisks []string `json:"sell_hold_risks"`
}
