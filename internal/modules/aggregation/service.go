package aggregation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/domain"
	"github.com/mgalanis/conveyor/internal/modules/marketdata"
)

// Result reports how the resampled rows landed.
type Result struct {
	Weekly  marketdata.SaveResult
	Monthly marketdata.SaveResult
}

// Service resamples a symbol's stored daily history and persists the
// weekly and monthly rows through the bar writer.
type Service struct {
	bars   *marketdata.BarRepository
	writer *marketdata.Writer
	log    zerolog.Logger
}

// NewService wires the aggregation stage.
func NewService(bars *marketdata.BarRepository, writer *marketdata.Writer, log zerolog.Logger) *Service {
	return &Service{
		bars:   bars,
		writer: writer,
		log:    log.With().Str("component", "aggregation_service").Logger(),
	}
}

// AggregateSymbol recomputes every weekly and monthly row from the full
// daily history. Writes are forced: resampled rows are derived data and
// the latest computation always wins, so the current partial week keeps
// absorbing new days. Reruns over unchanged dailies produce identical
// rows.
func (s *Service) AggregateSymbol(ctx context.Context, symbol string) (Result, error) {
	daily, err := s.bars.GetAllBars(symbol, domain.FrequencyDaily)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load daily bars for %s: %w", symbol, err)
	}
	if len(daily) == 0 {
		return Result{}, fmt.Errorf("no daily bars to aggregate for %s: %w", symbol, domain.ErrNoData)
	}

	weekly := ResampleWeekly(daily)
	monthly := ResampleMonthly(daily)

	var result Result
	result.Weekly, err = s.writer.Write(ctx, weekly, domain.FrequencyWeekly, true)
	if err != nil {
		return result, fmt.Errorf("failed to save weekly bars for %s: %w", symbol, err)
	}
	result.Monthly, err = s.writer.Write(ctx, monthly, domain.FrequencyMonthly, true)
	if err != nil {
		return result, fmt.Errorf("failed to save monthly bars for %s: %w", symbol, err)
	}

	s.log.Info().
		Str("symbol", symbol).
		Int("daily_bars", len(daily)).
		Int("weekly_rows", len(weekly)).
		Int("monthly_rows", len(monthly)).
		Msg("Aggregation complete")

	return result, nil
}
