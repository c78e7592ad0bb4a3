package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/domain"
)

// BarRepository provides read access to stored bars across the price
// tables. Reads route by frequency the same way the writer does.
type BarRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewBarRepository creates a bar repository on the market database.
func NewBarRepository(db *sql.DB, log zerolog.Logger) *BarRepository {
	return &BarRepository{
		db:  db,
		log: log.With().Str("component", "bar_repository").Logger(),
	}
}

const barColumns = "symbol, date, open, high, low, close, volume, source, ingested_at"

// GetRecentBars fetches the latest `limit` bars for a symbol at the
// given frequency, ordered oldest first so indicator kernels can
// consume them directly.
func (r *BarRepository) GetRecentBars(symbol string, frequency domain.Frequency, limit int) ([]domain.Bar, error) {
	if limit <= 0 {
		return []domain.Bar{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM (
			SELECT %s
			FROM %s
			WHERE symbol = ? AND frequency = ?
			ORDER BY date DESC
			LIMIT ?
		) ORDER BY date ASC
	`, barColumns, barColumns, tableFor(frequency))

	rows, err := r.db.Query(query, symbol, string(frequency), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetAllBars fetches every stored bar for a symbol at the given
// frequency, ordered oldest first.
func (r *BarRepository) GetAllBars(symbol string, frequency domain.Frequency) ([]domain.Bar, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE symbol = ? AND frequency = ?
		ORDER BY date ASC
	`, barColumns, tableFor(frequency))

	rows, err := r.db.Query(query, symbol, string(frequency))
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// HasBar reports whether a bar exists for (symbol, date, frequency).
func (r *BarRepository) HasBar(symbol, date string, frequency domain.Frequency) (bool, error) {
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE symbol = ? AND date = ? AND frequency = ?`, tableFor(frequency))

	var count int
	err := r.db.QueryRow(query, symbol, date, string(frequency)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check bar existence: %w", err)
	}
	return count > 0, nil
}

// CountBars returns the number of stored bars for a symbol at the
// given frequency.
func (r *BarRepository) CountBars(symbol string, frequency domain.Frequency) (int, error) {
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE symbol = ? AND frequency = ?`, tableFor(frequency))

	var count int
	err := r.db.QueryRow(query, symbol, string(frequency)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bars: %w", err)
	}
	return count, nil
}

// LatestDate returns the newest stored bar date for a symbol, or the
// empty string when no bars exist (not an error).
func (r *BarRepository) LatestDate(symbol string, frequency domain.Frequency) (string, error) {
	query := fmt.Sprintf(
		`SELECT date FROM %s WHERE symbol = ? AND frequency = ? ORDER BY date DESC LIMIT 1`, tableFor(frequency))

	var date string
	err := r.db.QueryRow(query, symbol, string(frequency)).Scan(&date)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest bar date: %w", err)
	}
	return date, nil
}

func scanBars(rows *sql.Rows) ([]domain.Bar, error) {
	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		var open, high, low, closePrice sql.NullFloat64
		var volume sql.NullInt64
		var source sql.NullString
		var ingestedAt string

		err := rows.Scan(&b.Symbol, &b.Date, &open, &high, &low, &closePrice, &volume, &source, &ingestedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}

		if open.Valid {
			b.Open = &open.Float64
		}
		if high.Valid {
			b.High = &high.Float64
		}
		if low.Valid {
			b.Low = &low.Float64
		}
		if closePrice.Valid {
			b.Close = &closePrice.Float64
		}
		if volume.Valid {
			b.Volume = &volume.Int64
		}
		if source.Valid {
			b.Source = source.String
		}
		if t, err := time.Parse(time.RFC3339, ingestedAt); err == nil {
			b.IngestedAt = t
		}

		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}

	return bars, nil
}
