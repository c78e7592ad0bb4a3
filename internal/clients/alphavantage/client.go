// Package alphavantage provides an Alpha Vantage API client covering
// daily price history, quotes, company fundamentals, earnings history
// and news sentiment. The free tier allows 25 requests per day, so the
// client budgets requests against a daily counter and caches responses
// aggressively.
package alphavantage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/clients"
	"github.com/mgalanis/conveyor/internal/domain"
)

const (
	defaultBaseURL = "https://www.alphavantage.co/query"

	// dailyRequestLimit is the free-tier request budget per UTC day.
	dailyRequestLimit = 25
)

// Client is an Alpha Vantage API client with daily request budgeting
// and an in-memory response cache.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	mu           sync.Mutex
	requestCount int
	requestLimit int
	resetTime    time.Time

	cacheMu  sync.RWMutex
	cache    map[string]cacheEntry
	cacheTTL CacheTTL
}

type cacheEntry struct {
	data      interface{}
	expiresAt time.Time
}

// NewClient creates an Alpha Vantage client.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		log:          log.With().Str("client", "alphavantage").Logger(),
		requestLimit: dailyRequestLimit,
		resetTime:    nextMidnightUTC(),
		cache:        make(map[string]cacheEntry),
		cacheTTL:     DefaultCacheTTL(),
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string { return "alphavantage" }

// SetCacheTTL overrides the per-category cache TTLs.
func (c *Client) SetCacheTTL(ttl CacheTTL) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cacheTTL = ttl
}

// checkRateLimit consumes one request from the daily budget.
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollCounterLocked()
	if c.requestCount >= c.requestLimit {
		return ErrRateLimitExceeded{}
	}
	c.requestCount++
	return nil
}

// GetRemainingRequests returns how many requests are left today.
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollCounterLocked()
	return c.requestLimit - c.requestCount
}

// ResetDailyCounter resets the request budget. Exposed for operational
// tooling; the counter also rolls over on its own at midnight UTC.
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestCount = 0
	c.resetTime = nextMidnightUTC()
	c.log.Info().Msg("Daily request counter reset")
}

// rollCounterLocked resets the counter when the UTC day has rolled over.
// Callers must hold c.mu.
func (c *Client) rollCounterLocked() {
	if time.Now().UTC().After(c.resetTime) {
		c.requestCount = 0
		c.resetTime = nextMidnightUTC()
	}
}

func nextMidnightUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}

func (c *Client) setCache(key string, data interface{}, ttl time.Duration) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache[key] = cacheEntry{data: data, expiresAt: time.Now().Add(ttl)}
}

func (c *Client) getFromCache(key string) (interface{}, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

// ClearCache drops all cached responses.
func (c *Client) ClearCache() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache = make(map[string]cacheEntry)
}

// buildCacheKey derives a deterministic cache key from the function name
// and its parameters. The API key never becomes part of the key.
func buildCacheKey(function string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "apikey" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(function)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params[k])
	}
	return b.String()
}

// checkAPIError detects the error shapes Alpha Vantage hides inside
// HTTP 200 responses: rate limit notes, error messages and the plain
// text page served once the daily quota is gone.
func (c *Client) checkAPIError(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if !bytes.HasPrefix(trimmed, []byte("{")) {
		if bytes.Contains(trimmed, []byte("Thank you for using Alpha Vantage")) {
			return ErrRateLimitExceeded{}
		}
		return fmt.Errorf("unexpected response body: %w", domain.ErrMalformedResponse)
	}

	var probe struct {
		Note         string `json:"Note"`
		Information  string `json:"Information"`
		ErrorMessage string `json:"Error Message"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil
	}
	if probe.Note != "" || probe.Information != "" {
		return ErrRateLimitExceeded{}
	}
	if probe.ErrorMessage != "" {
		if strings.Contains(strings.ToLower(probe.ErrorMessage), "apikey") {
			return ErrInvalidAPIKey{}
		}
		return fmt.Errorf("api error: %s", probe.ErrorMessage)
	}
	return nil
}

// doRequest performs a GET against the API, honoring the cache and the
// daily budget. Cached responses do not consume budget.
func (c *Client) doRequest(ctx context.Context, function string, params map[string]string, ttl time.Duration) ([]byte, error) {
	cacheKey := buildCacheKey(function, params)
	if cached, ok := c.getFromCache(cacheKey); ok {
		if body, ok := cached.([]byte); ok {
			c.log.Debug().Str("function", function).Msg("Cache hit")
			return body, nil
		}
	}

	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("function", function)
	for k, v := range params {
		query.Set(k, v)
	}
	query.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w: %w", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimitExceeded{}
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("server error %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d: %w", resp.StatusCode, domain.ErrMalformedResponse)
	}

	if err := c.checkAPIError(body); err != nil {
		return nil, err
	}

	c.setCache(cacheKey, body, ttl)
	return body, nil
}

// FetchDailyBars fetches daily OHLCV history, oldest bar first.
func (c *Client) FetchDailyBars(ctx context.Context, symbol string, size clients.OutputSize) ([]domain.Bar, error) {
	outputSize := "compact"
	if size == clients.OutputFull {
		outputSize = "full"
	}

	body, err := c.doRequest(ctx, "TIME_SERIES_DAILY", map[string]string{
		"symbol":     symbol,
		"outputsize": outputSize,
	}, c.cacheTTL.PriceData)
	if err != nil {
		return nil, err
	}

	prices, err := parseDailyTimeSeries(body)
	if err != nil {
		if errors.Is(err, domain.ErrNoData) {
			return nil, ErrSymbolNotFound{Symbol: symbol}
		}
		return nil, err
	}

	bars := make([]domain.Bar, 0, len(prices))
	for i := len(prices) - 1; i >= 0; i-- {
		p := prices[i]
		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Date:   domain.FormatDate(p.Date),
			Open:   domain.Float64(p.Open),
			High:   domain.Float64(p.High),
			Low:    domain.Float64(p.Low),
			Close:  domain.Float64(p.Close),
			Volume: domain.Int64(p.Volume),
			Source: c.Name(),
		})
	}

	c.log.Info().
		Str("symbol", symbol).
		Str("outputsize", outputSize).
		Int("bars", len(bars)).
		Msg("Fetched daily series")
	return bars, nil
}

// FetchQuote fetches the latest price snapshot.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	body, err := c.doRequest(ctx, "GLOBAL_QUOTE", map[string]string{
		"symbol": symbol,
	}, c.cacheTTL.PriceData)
	if err != nil {
		return nil, err
	}

	quote, err := parseGlobalQuote(body)
	if err != nil {
		if errors.Is(err, domain.ErrNoData) {
			return nil, ErrSymbolNotFound{Symbol: symbol}
		}
		return nil, err
	}

	return &domain.Quote{
		Symbol:        symbol,
		Price:         quote.Price,
		Change:        quote.Change,
		ChangePercent: quote.ChangePercent,
		Volume:        quote.Volume,
		TradingDay:    domain.FormatDate(quote.LatestTradingDay),
		Source:        c.Name(),
		FetchedAt:     time.Now().UTC(),
	}, nil
}

// FetchCompanyOverview fetches company fundamentals.
func (c *Client) FetchCompanyOverview(ctx context.Context, symbol string) (*domain.CompanyOverview, error) {
	body, err := c.doRequest(ctx, "OVERVIEW", map[string]string{
		"symbol": symbol,
	}, c.cacheTTL.Fundamentals)
	if err != nil {
		return nil, err
	}

	overview, err := parseCompanyOverview(body)
	if err != nil {
		if errors.Is(err, domain.ErrNoData) {
			return nil, ErrSymbolNotFound{Symbol: symbol}
		}
		return nil, err
	}

	return &domain.CompanyOverview{
		Symbol:            overview.Symbol,
		Name:              overview.Name,
		Sector:            overview.Sector,
		Industry:          overview.Industry,
		Currency:          overview.Currency,
		MarketCap:         reportCount(overview.MarketCapitalization),
		PERatio:           overview.PERatio,
		PEGRatio:          overview.PEGRatio,
		BookValue:         overview.BookValue,
		EPS:               overview.EPS,
		DividendYield:     overview.DividendYield,
		ProfitMargin:      overview.ProfitMargin,
		Beta:              overview.Beta,
		FiftyTwoWeekHigh:  overview.FiftyTwoWeekHigh,
		FiftyTwoWeekLow:   overview.FiftyTwoWeekLow,
		SharesOutstanding: reportCount(overview.SharesOutstanding),
	}, nil
}

// FetchIncomeStatements fetches annual and quarterly income statements.
func (c *Client) FetchIncomeStatements(ctx context.Context, symbol string) ([]domain.IncomeStatement, error) {
	body, err := c.doRequest(ctx, "INCOME_STATEMENT", map[string]string{
		"symbol": symbol,
	}, c.cacheTTL.Fundamentals)
	if err != nil {
		return nil, err
	}

	data, err := parseIncomeStatement(body)
	if err != nil {
		return nil, err
	}
	if len(data.AnnualReports) == 0 && len(data.QuarterlyReports) == 0 {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}

	statements := make([]domain.IncomeStatement, 0, len(data.AnnualReports)+len(data.QuarterlyReports))
	for _, r := range data.AnnualReports {
		statements = append(statements, incomeToDomain(symbol, domain.PeriodAnnual, r))
	}
	for _, r := range data.QuarterlyReports {
		statements = append(statements, incomeToDomain(symbol, domain.PeriodQuarterly, r))
	}

	c.log.Info().
		Str("symbol", symbol).
		Int("annual", len(data.AnnualReports)).
		Int("quarterly", len(data.QuarterlyReports)).
		Msg("Fetched income statements")
	return statements, nil
}

// FetchBalanceSheets fetches annual and quarterly balance sheets.
func (c *Client) FetchBalanceSheets(ctx context.Context, symbol string) ([]domain.BalanceSheet, error) {
	body, err := c.doRequest(ctx, "BALANCE_SHEET", map[string]string{
		"symbol": symbol,
	}, c.cacheTTL.Fundamentals)
	if err != nil {
		return nil, err
	}

	data, err := parseBalanceSheet(body)
	if err != nil {
		return nil, err
	}
	if len(data.AnnualReports) == 0 && len(data.QuarterlyReports) == 0 {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}

	sheets := make([]domain.BalanceSheet, 0, len(data.AnnualReports)+len(data.QuarterlyReports))
	for _, r := range data.AnnualReports {
		sheets = append(sheets, balanceToDomain(symbol, domain.PeriodAnnual, r))
	}
	for _, r := range data.QuarterlyReports {
		sheets = append(sheets, balanceToDomain(symbol, domain.PeriodQuarterly, r))
	}

	c.log.Info().
		Str("symbol", symbol).
		Int("annual", len(data.AnnualReports)).
		Int("quarterly", len(data.QuarterlyReports)).
		Msg("Fetched balance sheets")
	return sheets, nil
}

// FetchCashFlows fetches annual and quarterly cash flow statements.
func (c *Client) FetchCashFlows(ctx context.Context, symbol string) ([]domain.CashFlowStatement, error) {
	body, err := c.doRequest(ctx, "CASH_FLOW", map[string]string{
		"symbol": symbol,
	}, c.cacheTTL.Fundamentals)
	if err != nil {
		return nil, err
	}

	data, err := parseCashFlow(body)
	if err != nil {
		return nil, err
	}
	if len(data.AnnualReports) == 0 && len(data.QuarterlyReports) == 0 {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}

	flows := make([]domain.CashFlowStatement, 0, len(data.AnnualReports)+len(data.QuarterlyReports))
	for _, r := range data.AnnualReports {
		flows = append(flows, cashFlowToDomain(symbol, domain.PeriodAnnual, r))
	}
	for _, r := range data.QuarterlyReports {
		flows = append(flows, cashFlowToDomain(symbol, domain.PeriodQuarterly, r))
	}

	c.log.Info().
		Str("symbol", symbol).
		Int("annual", len(data.AnnualReports)).
		Int("quarterly", len(data.QuarterlyReports)).
		Msg("Fetched cash flow statements")
	return flows, nil
}

// FetchEarnings fetches reported earnings history, annual and quarterly.
// Each list arrives newest first.
func (c *Client) FetchEarnings(ctx context.Context, symbol string) ([]domain.EarningsRecord, error) {
	body, err := c.doRequest(ctx, "EARNINGS", map[string]string{
		"symbol": symbol,
	}, c.cacheTTL.Fundamentals)
	if err != nil {
		return nil, err
	}

	data, err := parseEarnings(body)
	if err != nil {
		return nil, err
	}
	if len(data.AnnualEarnings) == 0 && len(data.QuarterlyEarnings) == 0 {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}

	records := make([]domain.EarningsRecord, 0, len(data.AnnualEarnings)+len(data.QuarterlyEarnings))
	for _, r := range data.AnnualEarnings {
		records = append(records, earningsToDomain(symbol, domain.PeriodAnnual, r))
	}
	for _, r := range data.QuarterlyEarnings {
		records = append(records, earningsToDomain(symbol, domain.PeriodQuarterly, r))
	}

	c.log.Info().
		Str("symbol", symbol).
		Int("annual", len(data.AnnualEarnings)).
		Int("quarterly", len(data.QuarterlyEarnings)).
		Msg("Fetched earnings history")
	return records, nil
}

// FetchNews fetches up to limit recent news articles for the symbol.
func (c *Client) FetchNews(ctx context.Context, symbol string, limit int) ([]domain.NewsArticle, error) {
	if limit <= 0 {
		limit = 50
	}
	body, err := c.doRequest(ctx, "NEWS_SENTIMENT", map[string]string{
		"tickers": symbol,
		"limit":   strconv.Itoa(limit),
	}, c.cacheTTL.PriceData)
	if err != nil {
		return nil, err
	}

	items, err := parseNewsFeed(body)
	if err != nil {
		return nil, err
	}
	if len(items) > limit {
		items = items[:limit]
	}

	articles := make([]domain.NewsArticle, 0, len(items))
	for _, item := range items {
		articles = append(articles, domain.NewsArticle{
			Symbol:      symbol,
			Title:       item.Title,
			URL:         item.URL,
			Source:      item.Source,
			Summary:     item.Summary,
			PublishedAt: item.PublishedAt,
			Sentiment:   item.OverallSentiment,
		})
	}

	c.log.Info().
		Str("symbol", symbol).
		Int("articles", len(articles)).
		Msg("Fetched news feed")
	return articles, nil
}

func incomeToDomain(symbol string, period domain.StatementPeriod, r IncomeReport) domain.IncomeStatement {
	return domain.IncomeStatement{
		Symbol:           symbol,
		FiscalDateEnding: r.FiscalDateEnding,
		Period:           period,
		Currency:         r.ReportedCurrency,
		TotalRevenue:     reportValue(r.TotalRevenue),
		GrossProfit:      reportValue(r.GrossProfit),
		OperatingIncome:  reportValue(r.OperatingIncome),
		NetIncome:        reportValue(r.NetIncome),
		EBITDA:           reportValue(r.EBITDA),
	}
}

func balanceToDomain(symbol string, period domain.StatementPeriod, r BalanceReport) domain.BalanceSheet {
	return domain.BalanceSheet{
		Symbol:                 symbol,
		FiscalDateEnding:       r.FiscalDateEnding,
		Period:                 period,
		Currency:               r.ReportedCurrency,
		TotalAssets:            reportValue(r.TotalAssets),
		TotalLiabilities:       reportValue(r.TotalLiabilities),
		TotalShareholderEquity: reportValue(r.TotalShareholderEquity),
		CashAndEquivalents:     reportValue(r.CashAndEquivalents),
		LongTermDebt:           reportValue(r.LongTermDebt),
		SharesOutstanding:      reportCount(r.SharesOutstanding),
	}
}

func cashFlowToDomain(symbol string, period domain.StatementPeriod, r CashFlowReport) domain.CashFlowStatement {
	return domain.CashFlowStatement{
		Symbol:              symbol,
		FiscalDateEnding:    r.FiscalDateEnding,
		Period:              period,
		Currency:            r.ReportedCurrency,
		OperatingCashflow:   reportValue(r.OperatingCashflow),
		CapitalExpenditures: reportValue(r.CapitalExpenditures),
		DividendPayout:      reportValue(r.DividendPayout),
		NetIncome:           reportValue(r.NetIncome),
	}
}

func earningsToDomain(symbol string, period domain.StatementPeriod, r EarningsReport) domain.EarningsRecord {
	return domain.EarningsRecord{
		Symbol:           symbol,
		FiscalDateEnding: r.FiscalDateEnding,
		Period:           period,
		ReportedDate:     r.ReportedDate,
		ReportedEPS:      r.ReportedEPS,
		EstimatedEPS:     r.EstimatedEPS,
		Surprise:         r.Surprise,
		SurprisePercent:  r.SurprisePercent,
	}
}

// reportValue converts a parsed monetary amount to a nullable float.
// Alpha Vantage reports missing line items as "None", which parses to 0.
func reportValue(v int64) *float64 {
	if v == 0 {
		return nil
	}
	f := float64(v)
	return &f
}

// reportCount converts a parsed share or cap figure to a nullable int.
func reportCount(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

var _ clients.DataSource = (*Client)(nil)
