// Package marketdata owns the price tables. All bar persistence goes
// through the idempotent Writer; the repositories only read.
package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/domain"
)

// SaveResult reports what a write call did with each incoming row.
type SaveResult struct {
	Inserted            int
	Updated             int
	Skipped             int
	DuplicatesPrevented int
}

// Writer persists bars with duplicate prevention keyed on
// (symbol, date, frequency). An incoming row only replaces an existing
// one when it carries a newer ingested_at stamp or force is set;
// otherwise the row is counted as a prevented duplicate. Rows without a
// symbol or date are refused and counted as skipped.
type Writer struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewWriter creates a bar writer on the market database.
func NewWriter(db *sql.DB, log zerolog.Logger) *Writer {
	return &Writer{
		db:  db,
		log: log.With().Str("component", "bar_writer").Logger(),
	}
}

// tableFor routes a frequency to its table. Daily bars are the raw
// provider series; resampled frequencies live in the multi-timeframe
// table.
func tableFor(frequency domain.Frequency) string {
	if frequency == domain.FrequencyDaily {
		return "raw_market_data"
	}
	return "multi_timeframe_data"
}

// Write applies the decision table to each bar in one transaction:
// no existing row inserts, a newer ingested_at or force updates,
// anything else is a prevented duplicate. Bars with a zero IngestedAt
// are stamped with the current time when persisted, but a zero stamp
// never counts as newer than an existing row.
func (w *Writer) Write(ctx context.Context, bars []domain.Bar, frequency domain.Frequency, force bool) (SaveResult, error) {
	var result SaveResult

	if !frequency.Valid() {
		return result, fmt.Errorf("cannot store frequency %q: %w", frequency, domain.ErrUnsupportedFrequency)
	}
	if len(bars) == 0 {
		return result, nil
	}
	table := tableFor(frequency)

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be no-op if Commit succeeds

	lookupStmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`SELECT ingested_at FROM %s WHERE symbol = ? AND date = ? AND frequency = ?`, table))
	if err != nil {
		return result, fmt.Errorf("failed to prepare lookup: %w", err)
	}
	defer lookupStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (symbol, date, frequency, open, high, low, close, volume, source, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, table))
	if err != nil {
		return result, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insertStmt.Close()

	updateStmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET open = ?, high = ?, low = ?, close = ?, volume = ?, source = ?, ingested_at = ?
		WHERE symbol = ? AND date = ? AND frequency = ?
	`, table))
	if err != nil {
		return result, fmt.Errorf("failed to prepare update: %w", err)
	}
	defer updateStmt.Close()

	now := time.Now().UTC()
	for _, bar := range bars {
		if bar.Symbol == "" || bar.Date == "" {
			result.Skipped++
			continue
		}

		stamp := bar.IngestedAt
		if stamp.IsZero() {
			stamp = now
		}

		var existingRaw string
		err := lookupStmt.QueryRowContext(ctx, bar.Symbol, bar.Date, string(frequency)).Scan(&existingRaw)
		switch {
		case err == sql.ErrNoRows:
			_, err = insertStmt.ExecContext(ctx,
				bar.Symbol,
				bar.Date,
				string(frequency),
				nullFloat(bar.Open),
				nullFloat(bar.High),
				nullFloat(bar.Low),
				nullFloat(bar.Close),
				nullInt(bar.Volume),
				bar.Source,
				stamp.Format(time.RFC3339),
			)
			if err != nil {
				return result, fmt.Errorf("failed to insert bar %s %s: %w", bar.Symbol, bar.Date, err)
			}
			result.Inserted++

		case err != nil:
			return result, fmt.Errorf("failed to look up bar %s %s: %w", bar.Symbol, bar.Date, err)

		default:
			existing, parseErr := time.Parse(time.RFC3339, existingRaw)
			newer := parseErr == nil && !bar.IngestedAt.IsZero() && bar.IngestedAt.After(existing)
			if !force && !newer {
				result.DuplicatesPrevented++
				continue
			}
			_, err = updateStmt.ExecContext(ctx,
				nullFloat(bar.Open),
				nullFloat(bar.High),
				nullFloat(bar.Low),
				nullFloat(bar.Close),
				nullInt(bar.Volume),
				bar.Source,
				stamp.Format(time.RFC3339),
				bar.Symbol,
				bar.Date,
				string(frequency),
			)
			if err != nil {
				return result, fmt.Errorf("failed to update bar %s %s: %w", bar.Symbol, bar.Date, err)
			}
			result.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.log.Info().
		Str("frequency", string(frequency)).
		Int("inserted", result.Inserted).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("duplicates_prevented", result.DuplicatesPrevented).
		Msg("Wrote bars")

	return result, nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
