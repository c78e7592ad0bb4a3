package indicators

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository persists indicator rows. Rows are derived data, so writes
// replace whatever an earlier computation stored for (symbol, date).
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates an indicator repository on the market database.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "indicator_repository").Logger(),
	}
}

const indicatorColumns = `symbol, date,
	sma_50, sma_100, sma_200,
	ema_9, ema_12, ema_20, ema_21, ema_26, ema_50,
	rsi_14, macd, macd_signal, macd_histogram, atr_14,
	bb_upper, bb_middle, bb_lower, volume_avg_20,
	price_above_sma200, price_below_sma50, price_below_sma200,
	ema9_above_ema21, ema12_above_ema26, ema20_above_ema50,
	sma50_above_sma200, macd_above_signal, macd_histogram_positive,
	rsi_zone, volume_above_average, volume_spike,
	higher_highs, higher_lows, computed_at`

// SaveRows upserts computed rows inside one transaction and returns how
// many were written.
func (r *Repository) SaveRows(rows []Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be no-op if Commit succeeds

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT OR REPLACE INTO aggregated_indicators (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, indicatorColumns))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare indicator upsert: %w", err)
	}
	defer stmt.Close()

	saved := 0
	for _, row := range rows {
		_, err := stmt.Exec(
			row.Symbol, row.Date,
			nullFloat(row.SMA50), nullFloat(row.SMA100), nullFloat(row.SMA200),
			nullFloat(row.EMA9), nullFloat(row.EMA12), nullFloat(row.EMA20),
			nullFloat(row.EMA21), nullFloat(row.EMA26), nullFloat(row.EMA50),
			nullFloat(row.RSI14), nullFloat(row.MACD), nullFloat(row.MACDSignal),
			nullFloat(row.MACDHistogram), nullFloat(row.ATR14),
			nullFloat(row.BBUpper), nullFloat(row.BBMiddle), nullFloat(row.BBLower),
			nullFloat(row.VolumeAvg20),
			nullBool(row.PriceAboveSMA200), nullBool(row.PriceBelowSMA50), nullBool(row.PriceBelowSMA200),
			nullBool(row.EMA9AboveEMA21), nullBool(row.EMA12AboveEMA26), nullBool(row.EMA20AboveEMA50),
			nullBool(row.SMA50AboveSMA200), nullBool(row.MACDAboveSignal), nullBool(row.MACDHistogramPositive),
			nullString(row.RSIZone), nullBool(row.VolumeAboveAverage), nullBool(row.VolumeSpike),
			nullBool(row.HigherHighs), nullBool(row.HigherLows),
			row.ComputedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert indicators for %s %s: %w", row.Symbol, row.Date, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit indicator rows: %w", err)
	}

	r.log.Info().
		Str("symbol", rows[0].Symbol).
		Int("rows", saved).
		Msg("Saved indicator rows")

	return saved, nil
}

// GetRow fetches the indicator row for (symbol, date). Returns nil when
// none exists (not an error).
func (r *Repository) GetRow(symbol, date string) (*Row, error) {
	query := fmt.Sprintf(`SELECT %s FROM aggregated_indicators WHERE symbol = ? AND date = ?`, indicatorColumns)

	row, err := scanRow(r.db.QueryRow(query, symbol, date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get indicator row for %s %s: %w", symbol, date, err)
	}
	return row, nil
}

// GetRecentRows fetches the newest limit rows for a symbol, ordered
// oldest first so callers can iterate chronologically.
func (r *Repository) GetRecentRows(symbol string, limit int) ([]Row, error) {
	if limit <= 0 {
		return []Row{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM (
			SELECT %s FROM aggregated_indicators
			WHERE symbol = ?
			ORDER BY date DESC
			LIMIT ?
		) ORDER BY date ASC
	`, indicatorColumns, indicatorColumns)

	sqlRows, err := r.db.Query(query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query indicator rows for %s: %w", symbol, err)
	}
	defer sqlRows.Close()

	var rows []Row
	for sqlRows.Next() {
		row, err := scanRow(sqlRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan indicator row: %w", err)
		}
		rows = append(rows, *row)
	}
	if err := sqlRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indicator rows: %w", err)
	}
	return rows, nil
}

// CountRows returns how many indicator rows exist for a symbol.
func (r *Repository) CountRows(symbol string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM aggregated_indicators WHERE symbol = ?`, symbol).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count indicator rows for %s: %w", symbol, err)
	}
	return count, nil
}

// LatestDate returns the newest indicator date for a symbol, or "" when
// none exist. MAX() yields NULL on an empty set, hence the NullString.
func (r *Repository) LatestDate(symbol string) (string, error) {
	var date sql.NullString
	err := r.db.QueryRow(`SELECT MAX(date) FROM aggregated_indicators WHERE symbol = ?`, symbol).Scan(&date)
	if err != nil {
		return "", fmt.Errorf("failed to get latest indicator date for %s: %w", symbol, err)
	}
	if !date.Valid {
		return "", nil
	}
	return date.String, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(s scanner) (*Row, error) {
	var row Row
	var (
		sma50, sma100, sma200                      sql.NullFloat64
		ema9, ema12, ema20, ema21, ema26, ema50    sql.NullFloat64
		rsi14, macd, macdSignal, macdHist, atr14   sql.NullFloat64
		bbUpper, bbMiddle, bbLower, volumeAvg      sql.NullFloat64
		priceAbove200, priceBelow50, priceBelow200 sql.NullBool
		e9a21, e12a26, e20a50, s50a200             sql.NullBool
		macdAbove, histPositive                    sql.NullBool
		rsiZone                                    sql.NullString
		volAbove, volSpike, hh, hl                 sql.NullBool
		computedAt                                 string
	)

	err := s.Scan(
		&row.Symbol, &row.Date,
		&sma50, &sma100, &sma200,
		&ema9, &ema12, &ema20, &ema21, &ema26, &ema50,
		&rsi14, &macd, &macdSignal, &macdHist, &atr14,
		&bbUpper, &bbMiddle, &bbLower, &volumeAvg,
		&priceAbove200, &priceBelow50, &priceBelow200,
		&e9a21, &e12a26, &e20a50,
		&s50a200, &macdAbove, &histPositive,
		&rsiZone, &volAbove, &volSpike,
		&hh, &hl,
		&computedAt,
	)
	if err != nil {
		return nil, err
	}

	row.SMA50 = floatPtr(sma50)
	row.SMA100 = floatPtr(sma100)
	row.SMA200 = floatPtr(sma200)
	row.EMA9 = floatPtr(ema9)
	row.EMA12 = floatPtr(ema12)
	row.EMA20 = floatPtr(ema20)
	row.EMA21 = floatPtr(ema21)
	row.EMA26 = floatPtr(ema26)
	row.EMA50 = floatPtr(ema50)
	row.RSI14 = floatPtr(rsi14)
	row.MACD = floatPtr(macd)
	row.MACDSignal = floatPtr(macdSignal)
	row.MACDHistogram = floatPtr(macdHist)
	row.ATR14 = floatPtr(atr14)
	row.BBUpper = floatPtr(bbUpper)
	row.BBMiddle = floatPtr(bbMiddle)
	row.BBLower = floatPtr(bbLower)
	row.VolumeAvg20 = floatPtr(volumeAvg)
	row.PriceAboveSMA200 = boolPtr(priceAbove200)
	row.PriceBelowSMA50 = boolPtr(priceBelow50)
	row.PriceBelowSMA200 = boolPtr(priceBelow200)
	row.EMA9AboveEMA21 = boolPtr(e9a21)
	row.EMA12AboveEMA26 = boolPtr(e12a26)
	row.EMA20AboveEMA50 = boolPtr(e20a50)
	row.SMA50AboveSMA200 = boolPtr(s50a200)
	row.MACDAboveSignal = boolPtr(macdAbove)
	row.MACDHistogramPositive = boolPtr(histPositive)
	if rsiZone.Valid {
		row.RSIZone = rsiZone.String
	}
	row.VolumeAboveAverage = boolPtr(volAbove)
	row.VolumeSpike = boolPtr(volSpike)
	row.HigherHighs = boolPtr(hh)
	row.HigherLows = boolPtr(hl)

	if t, err := time.Parse(time.RFC3339, computedAt); err == nil {
		row.ComputedAt = t
	}

	return &row, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}
