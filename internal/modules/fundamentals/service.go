package fundamentals

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/clients"
	"github.com/mgalanis/conveyor/internal/domain"
)

// FetchResult reports what one financial-data pass stored.
type FetchResult struct {
	OverviewSaved    bool
	IncomeStatements int
	BalanceSheets    int
	CashFlows        int
	Earnings         int
}

// Service fetches fundamentals through the provider chain and runs the
// growth computation over what is stored.
type Service struct {
	source     clients.DataSource
	statements *StatementRepository
	overview   *OverviewRepository
	growth     *GrowthEngine
	log        zerolog.Logger
}

// NewService wires the financial-data and growth stages.
func NewService(source clients.DataSource, statements *StatementRepository, overview *OverviewRepository, growth *GrowthEngine, log zerolog.Logger) *Service {
	return &Service{
		source:     source,
		statements: statements,
		overview:   overview,
		growth:     growth,
		log:        log.With().Str("component", "fundamentals_service").Logger(),
	}
}

// FetchAndStore pulls the company overview, the three statement sets
// and the earnings history for a symbol and persists all of them. Any
// fetch failure fails the symbol's financial-data pass.
func (s *Service) FetchAndStore(ctx context.Context, symbol string) (FetchResult, error) {
	var result FetchResult

	overview, err := s.source.FetchCompanyOverview(ctx, symbol)
	if err != nil {
		return result, fmt.Errorf("failed to fetch overview for %s: %w", symbol, err)
	}
	if err := s.overview.UpsertOverview(overview, domain.FormatDate(time.Now())); err != nil {
		return result, err
	}
	result.OverviewSaved = true

	income, err := s.source.FetchIncomeStatements(ctx, symbol)
	if err != nil {
		return result, fmt.Errorf("failed to fetch income statements for %s: %w", symbol, err)
	}
	if result.IncomeStatements, err = s.statements.SaveIncomeStatements(income); err != nil {
		return result, err
	}

	sheets, err := s.source.FetchBalanceSheets(ctx, symbol)
	if err != nil {
		return result, fmt.Errorf("failed to fetch balance sheets for %s: %w", symbol, err)
	}
	if result.BalanceSheets, err = s.statements.SaveBalanceSheets(sheets); err != nil {
		return result, err
	}

	flows, err := s.source.FetchCashFlows(ctx, symbol)
	if err != nil {
		return result, fmt.Errorf("failed to fetch cash flows for %s: %w", symbol, err)
	}
	if result.CashFlows, err = s.statements.SaveCashFlows(flows); err != nil {
		return result, err
	}

	earnings, err := s.source.FetchEarnings(ctx, symbol)
	if err != nil {
		return result, fmt.Errorf("failed to fetch earnings for %s: %w", symbol, err)
	}
	if result.Earnings, err = s.statements.SaveEarnings(earnings); err != nil {
		return result, err
	}

	s.log.Info().
		Str("symbol", symbol).
		Int("income", result.IncomeStatements).
		Int("balance", result.BalanceSheets).
		Int("cashflow", result.CashFlows).
		Int("earnings", result.Earnings).
		Msg("Financial data stored")

	return result, nil
}

// ComputeAndStoreGrowth derives the latest growth metrics and persists
// them. When nothing is computable the row is left untouched.
func (s *Service) ComputeAndStoreGrowth(symbol string) (GrowthMetrics, error) {
	metrics, err := s.growth.Compute(symbol)
	if err != nil {
		return metrics, err
	}
	if !metrics.Any() {
		s.log.Debug().Str("symbol", symbol).Msg("No growth metrics computable")
		return metrics, nil
	}
	if err := s.overview.UpdateGrowth(symbol, metrics); err != nil {
		return metrics, err
	}
	return metrics, nil
}
