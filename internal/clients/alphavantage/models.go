package alphavantage

import "time"

// DailyPrice is a single row of the TIME_SERIES_DAILY response.
type DailyPrice struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// GlobalQuote is the GLOBAL_QUOTE response.
type GlobalQuote struct {
	Symbol           string
	Open             float64
	High             float64
	Low              float64
	Price            float64
	Volume           int64
	LatestTradingDay time.Time
	PreviousClose    float64
	Change           float64
	ChangePercent    float64
}

// CompanyOverviewData is the OVERVIEW response. Ratio fields are pointers
// because Alpha Vantage reports "None" for companies without them.
type CompanyOverviewData struct {
	Symbol               string
	AssetType            string
	Name                 string
	Description          string
	Exchange             string
	Currency             string
	Country              string
	Sector               string
	Industry             string
	MarketCapitalization int64
	SharesOutstanding    int64
	PERatio              *float64
	PEGRatio             *float64
	BookValue            *float64
	EPS                  *float64
	DividendYield        *float64
	ProfitMargin         *float64
	Beta                 *float64
	FiftyTwoWeekHigh     *float64
	FiftyTwoWeekLow      *float64
}

// IncomeReport is one report of the INCOME_STATEMENT response.
// Monetary fields are reported in the statement currency; "None" parses to 0.
type IncomeReport struct {
	FiscalDateEnding string
	ReportedCurrency string
	TotalRevenue     int64
	GrossProfit      int64
	OperatingIncome  int64
	NetIncome        int64
	EBITDA           int64
}

// IncomeStatementData is the full INCOME_STATEMENT response.
type IncomeStatementData struct {
	Symbol           string
	AnnualReports    []IncomeReport
	QuarterlyReports []IncomeReport
}

// BalanceReport is one report of the BALANCE_SHEET response.
type BalanceReport struct {
	FiscalDateEnding       string
	ReportedCurrency       string
	TotalAssets            int64
	TotalLiabilities       int64
	TotalShareholderEquity int64
	CashAndEquivalents     int64
	LongTermDebt           int64
	SharesOutstanding      int64
}

// BalanceSheetData is the full BALANCE_SHEET response.
type BalanceSheetData struct {
	Symbol           string
	AnnualReports    []BalanceReport
	QuarterlyReports []BalanceReport
}

// CashFlowReport is one report of the CASH_FLOW response.
type CashFlowReport struct {
	FiscalDateEnding    string
	ReportedCurrency    string
	OperatingCashflow   int64
	CapitalExpenditures int64
	DividendPayout      int64
	NetIncome           int64
}

// CashFlowData is the full CASH_FLOW response.
type CashFlowData struct {
	Symbol           string
	AnnualReports    []CashFlowReport
	QuarterlyReports []CashFlowReport
}

// EarningsReport is one report of the EARNINGS response. Annual reports
// carry only the reported EPS; estimate and surprise fields stay nil.
type EarningsReport struct {
	FiscalDateEnding string
	ReportedDate     string
	ReportedEPS      *float64
	EstimatedEPS     *float64
	Surprise         *float64
	SurprisePercent  *float64
}

// EarningsData is the full EARNINGS response.
type EarningsData struct {
	Symbol            string
	AnnualEarnings    []EarningsReport
	QuarterlyEarnings []EarningsReport
}

// NewsItem is one article of the NEWS_SENTIMENT feed.
type NewsItem struct {
	Title            string
	URL              string
	PublishedAt      time.Time
	Source           string
	Summary          string
	OverallSentiment *float64
}

// CacheTTL configures how long each response category stays cached.
// Fundamentals change quarterly at best; price data moves intraday.
type CacheTTL struct {
	PriceData    time.Duration
	Fundamentals time.Duration
}

// DefaultCacheTTL returns the TTL configuration used unless overridden.
func DefaultCacheTTL() CacheTTL {
	return CacheTTL{
		PriceData:    15 * time.Minute,
		Fundamentals: 24 * time.Hour,
	}
}
