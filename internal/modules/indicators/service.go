package indicators

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/domain"
	"github.com/mgalanis/conveyor/internal/modules/marketdata"
)

// Service recomputes indicator rows from stored daily bars. Computation
// always covers the full stored history so reruns land on identical rows.
type Service struct {
	bars   *marketdata.BarRepository
	engine *Engine
	repo   *Repository
	log    zerolog.Logger
}

// NewService wires the indicator pipeline stage.
func NewService(bars *marketdata.BarRepository, engine *Engine, repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		bars:   bars,
		engine: engine,
		repo:   repo,
		log:    log.With().Str("component", "indicator_service").Logger(),
	}
}

// ComputeAndStore loads a symbol's daily bars, computes every indicator
// row and upserts them. Returns the number of rows written. Any error
// here fails the symbol's ingest; there is no partial prices-without-
// indicators state.
func (s *Service) ComputeAndStore(symbol string) (int, error) {
	bars, err := s.bars.GetAllBars(symbol, domain.FrequencyDaily)
	if err != nil {
		return 0, fmt.Errorf("failed to load daily bars for %s: %w", symbol, err)
	}

	rows, err := s.engine.Compute(symbol, bars)
	if err != nil {
		return 0, err
	}

	saved, err := s.repo.SaveRows(rows)
	if err != nil {
		return 0, fmt.Errorf("failed to save indicator rows for %s: %w", symbol, err)
	}

	s.log.Info().
		Str("symbol", symbol).
		Int("bars", len(bars)).
		Int("rows", saved).
		Msg("Indicator computation complete")

	return saved, nil
}
