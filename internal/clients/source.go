// Package clients provides market data provider adapters and the
// reliability plumbing shared between them: per-provider rate limiting,
// circuit breaking and ordered fallback.
package clients

import (
	"context"

	"github.com/mgalanis/conveyor/internal/domain"
)

// OutputSize selects how much history a daily bars fetch returns
type OutputSize string

const (
	// OutputCompact returns roughly the latest 100 bars
	OutputCompact OutputSize = "compact"
	// OutputFull returns the provider's complete history
	OutputFull OutputSize = "full"
)

// DataSource defines the contract every market data provider implements.
// A provider that does not support an operation returns
// domain.ErrUnsupported; fallback chains skip to the next provider
// without treating it as a failure.
type DataSource interface {
	// Name returns the provider identifier used in logs, audit rows
	// and rate limiter registration.
	Name() string

	// FetchDailyBars returns daily OHLCV bars for the symbol,
	// newest last.
	FetchDailyBars(ctx context.Context, symbol string, size OutputSize) ([]domain.Bar, error)

	// FetchQuote returns the latest price snapshot for the symbol.
	FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error)

	// FetchCompanyOverview returns company fundamentals.
	FetchCompanyOverview(ctx context.Context, symbol string) (*domain.CompanyOverview, error)

	// FetchIncomeStatements returns annual and quarterly income statements.
	FetchIncomeStatements(ctx context.Context, symbol string) ([]domain.IncomeStatement, error)

	// FetchBalanceSheets returns annual and quarterly balance sheets.
	FetchBalanceSheets(ctx context.Context, symbol string) ([]domain.BalanceSheet, error)

	// FetchCashFlows returns annual and quarterly cash flow statements.
	FetchCashFlows(ctx context.Context, symbol string) ([]domain.CashFlowStatement, error)

	// FetchEarnings returns reported earnings history, newest first.
	FetchEarnings(ctx context.Context, symbol string) ([]domain.EarningsRecord, error)

	// FetchNews returns up to limit recent news articles for the symbol.
	FetchNews(ctx context.Context, symbol string, limit int) ([]domain.NewsArticle, error)
}
