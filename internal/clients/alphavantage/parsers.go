package alphavantage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mgalanis/conveyor/internal/domain"
)

// parseFloat64 parses an Alpha Vantage numeric string. The API uses
// "None", "null", "-" and empty strings interchangeably for missing
// values, and suffixes percentages with "%". Unparseable input returns 0.
func parseFloat64(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "null" || s == "-" || s == "." {
		return 0
	}
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseFloat64Ptr parses a numeric string, preserving missing values as nil.
func parseFloat64Ptr(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "null" || s == "-" {
		return nil
	}
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseInt64 parses an integer string. Fundamentals occasionally arrive
// in scientific notation ("1.5E10"), so it falls back to float parsing.
func parseInt64(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "null" || s == "-" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

// parseDate parses a YYYY-MM-DD date. Returns the zero time on failure.
func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseDateTime parses a timestamp with or without a time component.
func parseDateTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseDailyTimeSeries parses a TIME_SERIES_DAILY response.
// Results are sorted newest first, matching the API's own ordering.
func parseDailyTimeSeries(body []byte) ([]DailyPrice, error) {
	var raw struct {
		TimeSeries map[string]map[string]string `json:"Time Series (Daily)"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse daily time series: %w", err)
	}
	if len(raw.TimeSeries) == 0 {
		return nil, fmt.Errorf("no time series in response: %w", domain.ErrNoData)
	}

	prices := make([]DailyPrice, 0, len(raw.TimeSeries))
	for date, fields := range raw.TimeSeries {
		prices = append(prices, DailyPrice{
			Date:   parseDate(date),
			Open:   parseFloat64(fields["1. open"]),
			High:   parseFloat64(fields["2. high"]),
			Low:    parseFloat64(fields["3. low"]),
			Close:  parseFloat64(fields["4. close"]),
			Volume: parseInt64(fields["5. volume"]),
		})
	}

	sort.Slice(prices, func(i, j int) bool {
		return prices[i].Date.After(prices[j].Date)
	})
	return prices, nil
}

// parseGlobalQuote parses a GLOBAL_QUOTE response. Unknown symbols come
// back as an empty quote object rather than an error.
func parseGlobalQuote(body []byte) (*GlobalQuote, error) {
	var raw struct {
		Quote map[string]string `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse global quote: %w", err)
	}
	if len(raw.Quote) == 0 {
		return nil, fmt.Errorf("empty quote in response: %w", domain.ErrNoData)
	}

	return &GlobalQuote{
		Symbol:           raw.Quote["01. symbol"],
		Open:             parseFloat64(raw.Quote["02. open"]),
		High:             parseFloat64(raw.Quote["03. high"]),
		Low:              parseFloat64(raw.Quote["04. low"]),
		Price:            parseFloat64(raw.Quote["05. price"]),
		Volume:           parseInt64(raw.Quote["06. volume"]),
		LatestTradingDay: parseDate(raw.Quote["07. latest trading day"]),
		PreviousClose:    parseFloat64(raw.Quote["08. previous close"]),
		Change:           parseFloat64(raw.Quote["09. change"]),
		ChangePercent:    parseFloat64(raw.Quote["10. change percent"]),
	}, nil
}

// parseCompanyOverview parses an OVERVIEW response. The payload is a flat
// object whose values are all strings.
func parseCompanyOverview(body []byte) (*CompanyOverviewData, error) {
	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse company overview: %w", err)
	}
	if raw["Symbol"] == "" {
		return nil, fmt.Errorf("empty overview in response: %w", domain.ErrNoData)
	}

	return &CompanyOverviewData{
		Symbol:               raw["Symbol"],
		AssetType:            raw["AssetType"],
		Name:                 raw["Name"],
		Description:          raw["Description"],
		Exchange:             raw["Exchange"],
		Currency:             raw["Currency"],
		Country:              raw["Country"],
		Sector:               raw["Sector"],
		Industry:             raw["Industry"],
		MarketCapitalization: parseInt64(raw["MarketCapitalization"]),
		SharesOutstanding:    parseInt64(raw["SharesOutstanding"]),
		PERatio:              parseFloat64Ptr(raw["PERatio"]),
		PEGRatio:             parseFloat64Ptr(raw["PEGRatio"]),
		BookValue:            parseFloat64Ptr(raw["BookValue"]),
		EPS:                  parseFloat64Ptr(raw["EPS"]),
		DividendYield:        parseFloat64Ptr(raw["DividendYield"]),
		ProfitMargin:         parseFloat64Ptr(raw["ProfitMargin"]),
		Beta:                 parseFloat64Ptr(raw["Beta"]),
		FiftyTwoWeekHigh:     parseFloat64Ptr(raw["52WeekHigh"]),
		FiftyTwoWeekLow:      parseFloat64Ptr(raw["52WeekLow"]),
	}, nil
}

// reportEnvelope is the shared shape of the fundamentals endpoints.
type reportEnvelope struct {
	Symbol           string              `json:"symbol"`
	AnnualReports    []map[string]string `json:"annualReports"`
	QuarterlyReports []map[string]string `json:"quarterlyReports"`
}

// parseIncomeStatement parses an INCOME_STATEMENT response.
func parseIncomeStatement(body []byte) (*IncomeStatementData, error) {
	var raw reportEnvelope
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse income statement: %w", err)
	}

	data := &IncomeStatementData{Symbol: raw.Symbol}
	for _, fields := range raw.AnnualReports {
		data.AnnualReports = append(data.AnnualReports, buildIncomeReport(fields))
	}
	for _, fields := range raw.QuarterlyReports {
		data.QuarterlyReports = append(data.QuarterlyReports, buildIncomeReport(fields))
	}
	return data, nil
}

func buildIncomeReport(fields map[string]string) IncomeReport {
	return IncomeReport{
		FiscalDateEnding: fields["fiscalDateEnding"],
		ReportedCurrency: fields["reportedCurrency"],
		TotalRevenue:     parseInt64(fields["totalRevenue"]),
		GrossProfit:      parseInt64(fields["grossProfit"]),
		OperatingIncome:  parseInt64(fields["operatingIncome"]),
		NetIncome:        parseInt64(fields["netIncome"]),
		EBITDA:           parseInt64(fields["ebitda"]),
	}
}

// parseBalanceSheet parses a BALANCE_SHEET response.
func parseBalanceSheet(body []byte) (*BalanceSheetData, error) {
	var raw reportEnvelope
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse balance sheet: %w", err)
	}

	data := &BalanceSheetData{Symbol: raw.Symbol}
	for _, fields := range raw.AnnualReports {
		data.AnnualReports = append(data.AnnualReports, buildBalanceReport(fields))
	}
	for _, fields := range raw.QuarterlyReports {
		data.QuarterlyReports = append(data.QuarterlyReports, buildBalanceReport(fields))
	}
	return data, nil
}

func buildBalanceReport(fields map[string]string) BalanceReport {
	return BalanceReport{
		FiscalDateEnding:       fields["fiscalDateEnding"],
		ReportedCurrency:       fields["reportedCurrency"],
		TotalAssets:            parseInt64(fields["totalAssets"]),
		TotalLiabilities:       parseInt64(fields["totalLiabilities"]),
		TotalShareholderEquity: parseInt64(fields["totalShareholderEquity"]),
		CashAndEquivalents:     parseInt64(fields["cashAndCashEquivalentsAtCarryingValue"]),
		LongTermDebt:           parseInt64(fields["longTermDebt"]),
		SharesOutstanding:      parseInt64(fields["commonStockSharesOutstanding"]),
	}
}

// parseCashFlow parses a CASH_FLOW response.
func parseCashFlow(body []byte) (*CashFlowData, error) {
	var raw reportEnvelope
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse cash flow: %w", err)
	}

	data := &CashFlowData{Symbol: raw.Symbol}
	for _, fields := range raw.AnnualReports {
		data.AnnualReports = append(data.AnnualReports, buildCashFlowReport(fields))
	}
	for _, fields := range raw.QuarterlyReports {
		data.QuarterlyReports = append(data.QuarterlyReports, buildCashFlowReport(fields))
	}
	return data, nil
}

func buildCashFlowReport(fields map[string]string) CashFlowReport {
	return CashFlowReport{
		FiscalDateEnding:    fields["fiscalDateEnding"],
		ReportedCurrency:    fields["reportedCurrency"],
		OperatingCashflow:   parseInt64(fields["operatingCashflow"]),
		CapitalExpenditures: parseInt64(fields["capitalExpenditures"]),
		DividendPayout:      parseInt64(fields["dividendPayout"]),
		NetIncome:           parseInt64(fields["netIncome"]),
	}
}

// parseEarnings parses an EARNINGS response. The endpoint uses different
// field lists for annual and quarterly entries, so both are decoded as
// string maps.
func parseEarnings(body []byte) (*EarningsData, error) {
	var raw struct {
		Symbol            string              `json:"symbol"`
		AnnualEarnings    []map[string]string `json:"annualEarnings"`
		QuarterlyEarnings []map[string]string `json:"quarterlyEarnings"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse earnings: %w", err)
	}

	data := &EarningsData{Symbol: raw.Symbol}
	for _, fields := range raw.AnnualEarnings {
		data.AnnualEarnings = append(data.AnnualEarnings, EarningsReport{
			FiscalDateEnding: fields["fiscalDateEnding"],
			ReportedEPS:      parseFloat64Ptr(fields["reportedEPS"]),
		})
	}
	for _, fields := range raw.QuarterlyEarnings {
		data.QuarterlyEarnings = append(data.QuarterlyEarnings, EarningsReport{
			FiscalDateEnding: fields["fiscalDateEnding"],
			ReportedDate:     fields["reportedDate"],
			ReportedEPS:      parseFloat64Ptr(fields["reportedEPS"]),
			EstimatedEPS:     parseFloat64Ptr(fields["estimatedEPS"]),
			Surprise:         parseFloat64Ptr(fields["surprise"]),
			SurprisePercent:  parseFloat64Ptr(fields["surprisePercentage"]),
		})
	}
	return data, nil
}

// newsTimeLayout is the compact timestamp format of the news feed,
// e.g. "20240115T143000".
const newsTimeLayout = "20060102T150405"

// parseNewsFeed parses a NEWS_SENTIMENT response.
func parseNewsFeed(body []byte) ([]NewsItem, error) {
	var raw struct {
		Feed []struct {
			Title         string   `json:"title"`
			URL           string   `json:"url"`
			TimePublished string   `json:"time_published"`
			Source        string   `json:"source"`
			Summary       string   `json:"summary"`
			Sentiment     *float64 `json:"overall_sentiment_score"`
		} `json:"feed"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse news feed: %w", err)
	}
	if len(raw.Feed) == 0 {
		return nil, fmt.Errorf("empty news feed in response: %w", domain.ErrNoData)
	}

	items := make([]NewsItem, 0, len(raw.Feed))
	for _, entry := range raw.Feed {
		published, err := time.Parse(newsTimeLayout, entry.TimePublished)
		if err != nil {
			published = time.Time{}
		}
		items = append(items, NewsItem{
			Title:            entry.Title,
			URL:              entry.URL,
			PublishedAt:      published,
			Source:           entry.Source,
			Summary:          entry.Summary,
			OverallSentiment: entry.Sentiment,
		})
	}
	return items, nil
}
