// Package ingestion runs the per-symbol price pipeline: fetch daily
// history through the provider chain, validate and clean it, persist
// the surviving rows, and leave a validation report plus a fetch audit
// row behind for the gates and for operators.
package ingestion

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/clients"
	"github.com/mgalanis/conveyor/internal/domain"
	"github.com/mgalanis/conveyor/internal/modules/marketdata"
	"github.com/mgalanis/conveyor/internal/modules/validation"
)

// Result reports what one symbol's price ingest did.
type Result struct {
	Symbol       string
	Source       string
	Size         clients.OutputSize
	RowsFetched  int
	RowsDropped  int
	Save         marketdata.SaveResult
	ReportID     int64
	ReportStatus string
	Duration     time.Duration
}

// Options control one ingest pass.
type Options struct {
	// Mode is recorded in the fetch audit, daily_batch or on_demand.
	// Empty defaults to on_demand.
	Mode string
	// Force lets incoming rows replace stored ones regardless of
	// ingested_at stamps. Validation still runs.
	Force bool
}

// Service executes the fetch, validate, persist, audit sequence for
// one symbol at a time.
type Service struct {
	source    clients.DataSource
	validator *validation.Validator
	writer    *marketdata.Writer
	bars      *marketdata.BarRepository
	reports   *validation.ReportRepository
	audit     *marketdata.AuditRepository
	log       zerolog.Logger
}

// NewService wires the ingestion stage.
func NewService(
	source clients.DataSource,
	validator *validation.Validator,
	writer *marketdata.Writer,
	bars *marketdata.BarRepository,
	reports *validation.ReportRepository,
	audit *marketdata.AuditRepository,
	log zerolog.Logger,
) *Service {
	return &Service{
		source:    source,
		validator: validator,
		writer:    writer,
		bars:      bars,
		reports:   reports,
		audit:     audit,
		log:       log.With().Str("component", "ingestion_service").Logger(),
	}
}

// IngestSymbol fetches a symbol's daily history, validates and cleans
// it, persists the surviving rows and the validation report, and
// records the attempt in the fetch audit. A fetch that yields zero
// bars fails without writing a report; there is nothing to validate.
//
// Incoming bars keep their zero ingested_at so the writer stamps them
// at write time. Re-running the same batch therefore counts every row
// as a prevented duplicate instead of silently rewriting history.
func (s *Service) IngestSymbol(ctx context.Context, symbol string, opts Options) (*Result, error) {
	start := time.Now()
	mode := opts.Mode
	if mode == "" {
		mode = marketdata.FetchModeOnDemand
	}

	// First ingest pulls the full history; later passes only need the
	// recent window the provider serves cheaply.
	size := clients.OutputCompact
	count, err := s.bars.CountBars(symbol, domain.FrequencyDaily)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to count stored bars, assuming cold start")
		count = 0
	}
	if count == 0 {
		size = clients.OutputFull
	}

	bars, err := s.source.FetchDailyBars(ctx, symbol, size)
	if err != nil {
		wrapped := fmt.Errorf("failed to fetch daily bars for %s: %w", symbol, err)
		s.recordAudit(marketdata.AuditRecord{
			Symbol:     symbol,
			FetchType:  marketdata.FetchTypePriceHistorical,
			FetchMode:  mode,
			DurationMS: time.Since(start).Milliseconds(),
			Success:    false,
			Error:      wrapped.Error(),
		})
		return nil, wrapped
	}
	if len(bars) == 0 {
		wrapped := fmt.Errorf("provider returned zero bars for %s: %w", symbol, domain.ErrNoData)
		s.recordAudit(marketdata.AuditRecord{
			Symbol:     symbol,
			FetchType:  marketdata.FetchTypePriceHistorical,
			FetchMode:  mode,
			DurationMS: time.Since(start).Milliseconds(),
			Success:    false,
			Error:      wrapped.Error(),
		})
		return nil, wrapped
	}
	source := bars[0].Source

	cleaned, report := s.validator.ValidateAndClean(symbol, validation.DataTypePriceHistorical, bars)

	save, err := s.writer.Write(ctx, cleaned, domain.FrequencyDaily, opts.Force)
	if err != nil {
		wrapped := fmt.Errorf("failed to persist bars for %s: %w", symbol, err)
		s.recordAudit(marketdata.AuditRecord{
			Symbol:      symbol,
			FetchType:   marketdata.FetchTypePriceHistorical,
			FetchMode:   mode,
			Source:      source,
			RowsFetched: len(bars),
			DurationMS:  time.Since(start).Milliseconds(),
			Success:     false,
			Error:       wrapped.Error(),
		})
		return nil, wrapped
	}

	reportID, err := s.reports.Insert(&report)
	if err != nil {
		return nil, fmt.Errorf("failed to persist validation report for %s: %w", symbol, err)
	}

	duration := time.Since(start)
	s.recordAudit(marketdata.AuditRecord{
		Symbol:             symbol,
		FetchType:          marketdata.FetchTypePriceHistorical,
		FetchMode:          mode,
		Source:             source,
		RowsFetched:        len(bars),
		RowsSaved:          save.Inserted + save.Updated,
		DurationMS:         duration.Milliseconds(),
		Success:            true,
		ValidationReportID: &reportID,
		Metadata: map[string]string{
			"force":        strconv.FormatBool(opts.Force),
			"output_size":  string(size),
			"rows_dropped": strconv.Itoa(report.RowsDropped),
		},
	})

	result := &Result{
		Symbol:       symbol,
		Source:       source,
		Size:         size,
		RowsFetched:  len(bars),
		RowsDropped:  report.RowsDropped,
		Save:         save,
		ReportID:     reportID,
		ReportStatus: report.OverallStatus,
		Duration:     duration,
	}

	s.log.Info().
		Str("symbol", symbol).
		Str("source", source).
		Int("fetched", result.RowsFetched).
		Int("inserted", save.Inserted).
		Int("updated", save.Updated).
		Int("duplicates_prevented", save.DuplicatesPrevented).
		Int("dropped", result.RowsDropped).
		Str("report_status", result.ReportStatus).
		Dur("duration", duration).
		Msg("Symbol ingested")

	return result, nil
}

// FetchQuote returns a symbol's latest price snapshot and records the
// attempt in the fetch audit.
func (s *Service) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	start := time.Now()

	quote, err := s.source.FetchQuote(ctx, symbol)
	record := marketdata.AuditRecord{
		Symbol:     symbol,
		FetchType:  marketdata.FetchTypePriceCurrent,
		FetchMode:  marketdata.FetchModeOnDemand,
		DurationMS: time.Since(start).Milliseconds(),
		Success:    err == nil,
	}
	if err != nil {
		record.Error = err.Error()
		s.recordAudit(record)
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}
	record.Source = quote.Source
	record.RowsFetched = 1
	s.recordAudit(record)

	return quote, nil
}

// recordAudit persists one audit row. The audit trail is advisory, so
// a failure here is logged and does not fail the ingest.
func (s *Service) recordAudit(record marketdata.AuditRecord) {
	if _, err := s.audit.Insert(record); err != nil {
		s.log.Warn().Err(err).Str("symbol", record.Symbol).Msg("Failed to record fetch audit")
	}
}
