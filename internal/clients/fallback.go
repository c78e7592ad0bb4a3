package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/domain"
)

// FallbackChain is a DataSource that tries providers in order until one
// succeeds. Providers that report domain.ErrUnsupported are skipped
// without counting against them; transport failures and rate limits move
// on to the next provider. When every provider fails or declines, the
// returned error wraps domain.ErrAllProvidersFailed; when every provider
// declined, it additionally wraps domain.ErrUnsupported so callers can
// tell "nobody offers this" from "everybody is down".
type FallbackChain struct {
	providers []DataSource
	limiters  *LimiterRegistry
	breakers  *BreakerRegistry
	log       zerolog.Logger
}

// NewFallbackChain creates a chain over the given providers in priority order
func NewFallbackChain(providers []DataSource, limiters *LimiterRegistry, breakers *BreakerRegistry, log zerolog.Logger) *FallbackChain {
	return &FallbackChain{
		providers: providers,
		limiters:  limiters,
		breakers:  breakers,
		log:       log.With().Str("component", "fallback_chain").Logger(),
	}
}

// Name identifies the chain in logs and audit rows
func (c *FallbackChain) Name() string {
	return "chain"
}

// Providers returns the provider names in priority order
func (c *FallbackChain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// fetchWith walks the chain for one operation, applying the rate limiter
// and circuit breaker of each provider.
func fetchWith[T any](c *FallbackChain, ctx context.Context, symbol, operation string, call func(DataSource) (T, error)) (T, error) {
	var zero T
	var failures []error

	for _, provider := range c.providers {
		if err := c.limiters.Wait(ctx, provider.Name()); err != nil {
			return zero, fmt.Errorf("rate limit wait for %s: %w", provider.Name(), err)
		}

		var result T
		err := c.breakers.Execute(provider.Name(), func() error {
			var callErr error
			result, callErr = call(provider)
			return callErr
		})

		if err == nil {
			return result, nil
		}

		if errors.Is(err, domain.ErrUnsupported) {
			c.log.Debug().
				Str("provider", provider.Name()).
				Str("symbol", symbol).
				Str("operation", operation).
				Msg("Provider does not support operation, trying next")
			continue
		}

		c.log.Warn().
			Err(err).
			Str("provider", provider.Name()).
			Str("symbol", symbol).
			Str("operation", operation).
			Msg("Provider failed, trying next")
		failures = append(failures, fmt.Errorf("%s: %w", provider.Name(), err))
	}

	if len(failures) == 0 {
		return zero, fmt.Errorf("%s %s: no provider supports this operation: %w: %w", operation, symbol, domain.ErrAllProvidersFailed, domain.ErrUnsupported)
	}
	return zero, fmt.Errorf("%s %s: %w: %w", operation, symbol, domain.ErrAllProvidersFailed, errors.Join(failures...))
}

// FetchDailyBars tries each provider for daily history
func (c *FallbackChain) FetchDailyBars(ctx context.Context, symbol string, size OutputSize) ([]domain.Bar, error) {
	return fetchWith(c, ctx, symbol, "daily_bars", func(s DataSource) ([]domain.Bar, error) {
		return s.FetchDailyBars(ctx, symbol, size)
	})
}

// FetchQuote tries each provider for a price snapshot
func (c *FallbackChain) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	return fetchWith(c, ctx, symbol, "quote", func(s DataSource) (*domain.Quote, error) {
		return s.FetchQuote(ctx, symbol)
	})
}

// FetchCompanyOverview tries each provider for company fundamentals
func (c *FallbackChain) FetchCompanyOverview(ctx context.Context, symbol string) (*domain.CompanyOverview, error) {
	return fetchWith(c, ctx, symbol, "company_overview", func(s DataSource) (*domain.CompanyOverview, error) {
		return s.FetchCompanyOverview(ctx, symbol)
	})
}

// FetchIncomeStatements tries each provider for income statements
func (c *FallbackChain) FetchIncomeStatements(ctx context.Context, symbol string) ([]domain.IncomeStatement, error) {
	return fetchWith(c, ctx, symbol, "income_statements", func(s DataSource) ([]domain.IncomeStatement, error) {
		return s.FetchIncomeStatements(ctx, symbol)
	})
}

// FetchBalanceSheets tries each provider for balance sheets
func (c *FallbackChain) FetchBalanceSheets(ctx context.Context, symbol string) ([]domain.BalanceSheet, error) {
	return fetchWith(c, ctx, symbol, "balance_sheets", func(s DataSource) ([]domain.BalanceSheet, error) {
		return s.FetchBalanceSheets(ctx, symbol)
	})
}

// FetchCashFlows tries each provider for cash flow statements
func (c *FallbackChain) FetchCashFlows(ctx context.Context, symbol string) ([]domain.CashFlowStatement, error) {
	return fetchWith(c, ctx, symbol, "cash_flows", func(s DataSource) ([]domain.CashFlowStatement, error) {
		return s.FetchCashFlows(ctx, symbol)
	})
}

// FetchEarnings tries each provider for reported earnings history
func (c *FallbackChain) FetchEarnings(ctx context.Context, symbol string) ([]domain.EarningsRecord, error) {
	return fetchWith(c, ctx, symbol, "earnings", func(s DataSource) ([]domain.EarningsRecord, error) {
		return s.FetchEarnings(ctx, symbol)
	})
}

// FetchNews tries each provider for recent news articles
func (c *FallbackChain) FetchNews(ctx context.Context, symbol string, limit int) ([]domain.NewsArticle, error) {
	return fetchWith(c, ctx, symbol, "news", func(s DataSource) ([]domain.NewsArticle, error) {
		return s.FetchNews(ctx, symbol, limit)
	})
}

// Compile-time check that the chain satisfies the provider contract.
var _ DataSource = (*FallbackChain)(nil)
