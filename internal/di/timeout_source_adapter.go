package di

import (
	"context"
	"time"

	"github.com/mgalanis/conveyor/internal/clients"
	"github.com/mgalanis/conveyor/internal/domain"
)

// TimeoutSourceAdapter wraps a clients.DataSource so every call carries its
// own deadline. The deadline applies per provider call, not per chain walk,
// so a stalled provider cannot consume the budget of the ones behind it.
type TimeoutSourceAdapter struct {
	source  clients.DataSource
	timeout time.Duration
}

// NewTimeoutSourceAdapter creates a new adapter. A non-positive timeout
// returns the source unwrapped.
func NewTimeoutSourceAdapter(source clients.DataSource, timeout time.Duration) clients.DataSource {
	if timeout <= 0 {
		return source
	}
	return &TimeoutSourceAdapter{source: source, timeout: timeout}
}

// Name returns the wrapped provider's identifier
func (a *TimeoutSourceAdapter) Name() string {
	return a.source.Name()
}

// FetchDailyBars fetches daily bars under the call deadline
func (a *TimeoutSourceAdapter) FetchDailyBars(ctx context.Context, symbol string, size clients.OutputSize) ([]domain.Bar, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.source.FetchDailyBars(ctx, symbol, size)
}

// FetchQuote fetches the latest quote under the call deadline
func (a *TimeoutSourceAdapter) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.source.FetchQuote(ctx, symbol)
}

// FetchCompanyOverview fetches the company overview under the call deadline
func (a *TimeoutSourceAdapter) FetchCompanyOverview(ctx context.Context, symbol string) (*domain.CompanyOverview, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.source.FetchCompanyOverview(ctx, symbol)
}

// FetchIncomeStatements fetches income statements under the call deadline
func (a *TimeoutSourceAdapter) FetchIncomeStatements(ctx context.Context, symbol string) ([]domain.IncomeStatement, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.source.FetchIncomeStatements(ctx, symbol)
}

// FetchBalanceSheets fetches balance sheets under the call deadline
func (a *TimeoutSourceAdapter) FetchBalanceSheets(ctx context.Context, symbol string) ([]domain.BalanceSheet, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.source.FetchBalanceSheets(ctx, symbol)
}

// FetchCashFlows fetches cash flow statements under the call deadline
func (a *TimeoutSourceAdapter) FetchCashFlows(ctx context.Context, symbol string) ([]domain.CashFlowStatement, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.source.FetchCashFlows(ctx, symbol)
}

// FetchEarnings fetches earnings history under the call deadline
func (a *TimeoutSourceAdapter) FetchEarnings(ctx context.Context, symbol string) ([]domain.EarningsRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.source.FetchEarnings(ctx, symbol)
}

// FetchNews fetches recent news under the call deadline
func (a *TimeoutSourceAdapter) FetchNews(ctx context.Context, symbol string, limit int) ([]domain.NewsArticle, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.source.FetchNews(ctx, symbol, limit)
}
