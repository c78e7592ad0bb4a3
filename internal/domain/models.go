// Package domain provides core domain models and types.
package domain

import "time"

// DateFormat is the canonical date layout used across storage and providers.
const DateFormat = "2006-01-02"

// Frequency represents the bar frequency of a market data series
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	// FrequencyIntraday exists so provider payloads can be labelled,
	// but the persistence layer rejects it until bars are keyed on
	// timestamps. Aggregation starts from daily bars.
	FrequencyIntraday Frequency = "intraday"
)

// Valid reports whether the frequency is one the pipeline stores.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly:
		return true
	}
	return false
}

// StatementPeriod represents the reporting period of a financial statement
type StatementPeriod string

const (
	PeriodAnnual    StatementPeriod = "annual"
	PeriodQuarterly StatementPeriod = "quarterly"
)

// Bar represents a single OHLCV bar as delivered by a provider.
// Price and volume fields are pointers because upstream feeds deliver
// incomplete rows; the validation module decides what survives.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Date       string    `json:"date"` // YYYY-MM-DD
	Open       *float64  `json:"open"`
	High       *float64  `json:"high"`
	Low        *float64  `json:"low"`
	Close      *float64  `json:"close"`
	Volume     *int64    `json:"volume"`
	Source     string    `json:"source,omitempty"`
	IngestedAt time.Time `json:"ingested_at,omitempty"`
}

// Complete reports whether all OHLCV fields are present.
func (b Bar) Complete() bool {
	return b.Open != nil && b.High != nil && b.Low != nil && b.Close != nil && b.Volume != nil
}

// Quote represents a real-time (or delayed) price snapshot
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	TradingDay    string    `json:"trading_day"` // YYYY-MM-DD
	Source        string    `json:"source,omitempty"`
	FetchedAt     time.Time `json:"fetched_at,omitempty"`
}

// IncomeStatement represents a single income statement report
type IncomeStatement struct {
	Symbol           string          `json:"symbol"`
	FiscalDateEnding string          `json:"fiscal_date_ending"` // YYYY-MM-DD
	Period           StatementPeriod `json:"period"`
	Currency         string          `json:"currency"`
	TotalRevenue     *float64        `json:"total_revenue"`
	GrossProfit      *float64        `json:"gross_profit"`
	OperatingIncome  *float64        `json:"operating_income"`
	NetIncome        *float64        `json:"net_income"`
	EBITDA           *float64        `json:"ebitda"`
}

// BalanceSheet represents a single balance sheet report
type BalanceSheet struct {
	Symbol                 string          `json:"symbol"`
	FiscalDateEnding       string          `json:"fiscal_date_ending"`
	Period                 StatementPeriod `json:"period"`
	Currency               string          `json:"currency"`
	TotalAssets            *float64        `json:"total_assets"`
	TotalLiabilities       *float64        `json:"total_liabilities"`
	TotalShareholderEquity *float64        `json:"total_shareholder_equity"`
	CashAndEquivalents     *float64        `json:"cash_and_equivalents"`
	LongTermDebt           *float64        `json:"long_term_debt"`
	SharesOutstanding      *int64          `json:"shares_outstanding"`
}

// CashFlowStatement represents a single cash flow report
type CashFlowStatement struct {
	Symbol              string          `json:"symbol"`
	FiscalDateEnding    string          `json:"fiscal_date_ending"`
	Period              StatementPeriod `json:"period"`
	Currency            string          `json:"currency"`
	OperatingCashflow   *float64        `json:"operating_cashflow"`
	CapitalExpenditures *float64        `json:"capital_expenditures"`
	DividendPayout      *float64        `json:"dividend_payout"`
	NetIncome           *float64        `json:"net_income"`
}

// CompanyOverview represents provider-sourced company fundamentals
type CompanyOverview struct {
	Symbol           string   `json:"symbol"`
	Name             string   `json:"name"`
	Sector           string   `json:"sector"`
	Industry         string   `json:"industry"`
	Currency         string   `json:"currency"`
	MarketCap        *int64   `json:"market_cap"`
	PERatio          *float64 `json:"pe_ratio"`
	PEGRatio         *float64 `json:"peg_ratio"`
	BookValue        *float64 `json:"book_value"`
	EPS              *float64 `json:"eps"`
	DividendYield    *float64 `json:"dividend_yield"`
	ProfitMargin     *float64 `json:"profit_margin"`
	Beta             *float64 `json:"beta"`
	FiftyTwoWeekHigh *float64 `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  *float64 `json:"fifty_two_week_low"`
	SharesOutstanding *int64  `json:"shares_outstanding"`
}

// NewsArticle represents a single news item attached to a symbol
type NewsArticle struct {
	Symbol      string    `json:"symbol"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Sentiment   *float64  `json:"sentiment,omitempty"`
}

// EarningsRecord represents one reported earnings period
type EarningsRecord struct {
	Symbol           string          `json:"symbol"`
	FiscalDateEnding string          `json:"fiscal_date_ending"` // YYYY-MM-DD
	Period           StatementPeriod `json:"period"`
	ReportedDate     string          `json:"reported_date,omitempty"` // YYYY-MM-DD
	ReportedEPS      *float64        `json:"reported_eps"`
	EstimatedEPS     *float64        `json:"estimated_eps,omitempty"`
	Surprise         *float64        `json:"surprise,omitempty"`
	SurprisePercent  *float64        `json:"surprise_percent,omitempty"`
}

// ParseDate parses a canonical YYYY-MM-DD date string in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateFormat, s, time.UTC)
}

// FormatDate renders a time as the canonical YYYY-MM-DD string.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateFormat)
}

// Float64 returns a pointer to v. Convenience for building bars and reports.
func Float64(v float64) *float64 { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }
