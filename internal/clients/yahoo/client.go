// Package yahoo provides a Yahoo Finance data source adapter.
// Yahoo serves daily history and quote snapshots; fundamentals requests
// report domain.ErrUnsupported so fallback chains move on.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/clients"
	"github.com/mgalanis/conveyor/internal/domain"
)

const (
	chartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	// Yahoo rejects requests without a browser-looking user agent.
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// Client is a Yahoo Finance API client
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    chartBaseURL,
		log:        log.With().Str("client", "yahoo").Logger(),
	}
}

// Name identifies the provider in logs, audit rows and limiter registration
func (c *Client) Name() string {
	return "yahoo"
}

// chartResponse mirrors the v8 chart API payload. Price arrays carry
// nulls for halted sessions, so they decode into pointer slices.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchDailyBars returns daily OHLCV bars for the symbol, newest last.
// OutputFull requests ten years of history, OutputCompact six months.
func (c *Client) FetchDailyBars(ctx context.Context, symbol string, size clients.OutputSize) ([]domain.Bar, error) {
	period := "10y"
	if size == clients.OutputCompact {
		period = "6mo"
	}

	url := fmt.Sprintf("%s/%s?interval=1d&range=%s", c.baseURL, symbol, period)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	bars, err := parseChartBars(body, symbol)
	if err != nil {
		return nil, err
	}

	c.log.Info().
		Str("symbol", symbol).
		Str("period", period).
		Int("count", len(bars)).
		Msg("Fetched historical prices")
	return bars, nil
}

// FetchQuote returns the latest price snapshot derived from chart metadata
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	url := fmt.Sprintf("%s/%s?interval=1d&range=1d", c.baseURL, symbol)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	quote, err := parseChartQuote(body, symbol)
	if err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("symbol", symbol).
		Float64("price", quote.Price).
		Msg("Fetched current quote")
	return quote, nil
}

// FetchCompanyOverview is not available from Yahoo
func (c *Client) FetchCompanyOverview(ctx context.Context, symbol string) (*domain.CompanyOverview, error) {
	return nil, domain.ErrUnsupported
}

// FetchIncomeStatements is not available from Yahoo
func (c *Client) FetchIncomeStatements(ctx context.Context, symbol string) ([]domain.IncomeStatement, error) {
	return nil, domain.ErrUnsupported
}

// FetchBalanceSheets is not available from Yahoo
func (c *Client) FetchBalanceSheets(ctx context.Context, symbol string) ([]domain.BalanceSheet, error) {
	return nil, domain.ErrUnsupported
}

// FetchCashFlows is not available from Yahoo
func (c *Client) FetchCashFlows(ctx context.Context, symbol string) ([]domain.CashFlowStatement, error) {
	return nil, domain.ErrUnsupported
}

// FetchEarnings is not available from Yahoo
func (c *Client) FetchEarnings(ctx context.Context, symbol string) ([]domain.EarningsRecord, error) {
	return nil, domain.ErrUnsupported
}

// FetchNews is not available from Yahoo
func (c *Client) FetchNews(ctx context.Context, symbol string, limit int) ([]domain.NewsArticle, error) {
	return nil, domain.ErrUnsupported
}

// get performs an HTTP GET and maps transport failures onto the shared
// provider error taxonomy.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w: %w", err, domain.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("yahoo returned 429: %w", domain.ErrRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("yahoo returned 404: %w", domain.ErrNoData)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("yahoo returned %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("yahoo returned %d: %w", resp.StatusCode, domain.ErrMalformedResponse)
	}

	return body, nil
}

// parseChartBars converts a chart API payload into domain bars.
// Rows where every price is absent or zero are dropped; Yahoo emits
// those for sessions with no trades.
func parseChartBars(body []byte, symbol string) ([]domain.Bar, error) {
	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse chart response: %w: %w", err, domain.ErrMalformedResponse)
	}

	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("chart error %s (%s): %w",
			parsed.Chart.Error.Code, parsed.Chart.Error.Description, domain.ErrNoData)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart result empty for %s: %w", symbol, domain.ErrNoData)
	}

	result := parsed.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart quote missing for %s: %w", symbol, domain.ErrMalformedResponse)
	}
	quote := result.Indicators.Quote[0]

	bars := make([]domain.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		bar := domain.Bar{
			Symbol: symbol,
			Date:   domain.FormatDate(time.Unix(ts, 0)),
			Source: "yahoo",
		}
		if i < len(quote.Open) {
			bar.Open = quote.Open[i]
		}
		if i < len(quote.High) {
			bar.High = quote.High[i]
		}
		if i < len(quote.Low) {
			bar.Low = quote.Low[i]
		}
		if i < len(quote.Close) {
			bar.Close = quote.Close[i]
		}
		if i < len(quote.Volume) {
			bar.Volume = quote.Volume[i]
		}

		if isEmptyRow(bar) {
			continue
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("no usable bars for %s: %w", symbol, domain.ErrNoData)
	}
	return bars, nil
}

// parseChartQuote derives a quote snapshot from chart metadata
func parseChartQuote(body []byte, symbol string) (*domain.Quote, error) {
	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse chart response: %w: %w", err, domain.ErrMalformedResponse)
	}

	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("chart error %s (%s): %w",
			parsed.Chart.Error.Code, parsed.Chart.Error.Description, domain.ErrNoData)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart result empty for %s: %w", symbol, domain.ErrNoData)
	}

	meta := parsed.Chart.Result[0].Meta
	if meta.RegularMarketPrice == 0 {
		return nil, fmt.Errorf("no market price for %s: %w", symbol, domain.ErrNoData)
	}

	change := meta.RegularMarketPrice - meta.ChartPreviousClose
	changePercent := 0.0
	if meta.ChartPreviousClose != 0 {
		changePercent = change / meta.ChartPreviousClose * 100
	}

	tradingDay := ""
	if meta.RegularMarketTime > 0 {
		tradingDay = domain.FormatDate(time.Unix(meta.RegularMarketTime, 0))
	}

	return &domain.Quote{
		Symbol:        symbol,
		Price:         meta.RegularMarketPrice,
		Change:        change,
		ChangePercent: changePercent,
		TradingDay:    tradingDay,
		Source:        "yahoo",
		FetchedAt:     time.Now().UTC(),
	}, nil
}

// isEmptyRow reports whether a bar carries no usable price data
func isEmptyRow(bar domain.Bar) bool {
	zero := func(v *float64) bool { return v == nil || *v == 0 }
	return zero(bar.Open) && zero(bar.High) && zero(bar.Low) && zero(bar.Close)
}

// Compile-time check that the client satisfies the provider contract.
var _ clients.DataSource = (*Client)(nil)
