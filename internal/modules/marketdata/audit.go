package marketdata

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Fetch types recorded in the audit trail.
const (
	FetchTypePriceHistorical = "price_historical"
	FetchTypePriceCurrent    = "price_current"
	FetchTypeFundamentals    = "fundamentals"
	FetchTypeFinancials      = "financials"
	FetchTypeEarnings        = "earnings"
	FetchTypeNews            = "news"
)

// Fetch modes recorded in the audit trail.
const (
	FetchModeDailyBatch = "daily_batch"
	FetchModeOnDemand   = "on_demand"
)

// AuditRecord is one provider fetch attempt. Failed fetches carry the
// error text; successful price fetches reference the validation report
// produced for the batch.
type AuditRecord struct {
	ID                 int64
	Symbol             string
	FetchType          string
	FetchMode          string
	Source             string
	RowsFetched        int
	RowsSaved          int
	DurationMS         int64
	Success            bool
	Error              string
	ValidationReportID *int64
	Metadata           map[string]string
	FetchedAt          time.Time
}

// AuditRepository records fetch attempts in data_fetch_audit.
type AuditRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAuditRepository creates an audit repository on the market database.
func NewAuditRepository(db *sql.DB, log zerolog.Logger) *AuditRepository {
	return &AuditRepository{
		db:  db,
		log: log.With().Str("component", "fetch_audit").Logger(),
	}
}

// Insert appends an audit record and returns its row id. A zero
// FetchedAt is stamped with the current time.
func (r *AuditRepository) Insert(record AuditRecord) (int64, error) {
	fetchedAt := record.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	var metadata sql.NullString
	if len(record.Metadata) > 0 {
		raw, err := json.Marshal(record.Metadata)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	var reportID sql.NullInt64
	if record.ValidationReportID != nil {
		reportID = sql.NullInt64{Int64: *record.ValidationReportID, Valid: true}
	}

	success := 0
	if record.Success {
		success = 1
	}

	result, err := r.db.Exec(`
		INSERT INTO data_fetch_audit
		(symbol, fetch_type, fetch_mode, source, rows_fetched, rows_saved, duration_ms, success, error, validation_report_id, metadata, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.Symbol,
		record.FetchType,
		record.FetchMode,
		record.Source,
		record.RowsFetched,
		record.RowsSaved,
		record.DurationMS,
		success,
		nullString(record.Error),
		reportID,
		metadata,
		fetchedAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert audit record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get audit record id: %w", err)
	}

	r.log.Debug().
		Str("symbol", record.Symbol).
		Str("fetch_type", record.FetchType).
		Bool("success", record.Success).
		Int("rows_fetched", record.RowsFetched).
		Int("rows_saved", record.RowsSaved).
		Msg("Recorded fetch attempt")

	return id, nil
}

// RecentForSymbol fetches the latest audit records for a symbol,
// newest first.
func (r *AuditRepository) RecentForSymbol(symbol string, limit int) ([]AuditRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, fetch_type, fetch_mode, source, rows_fetched, rows_saved, duration_ms, success, error, validation_report_id, metadata, fetched_at
		FROM data_fetch_audit
		WHERE symbol = ?
		ORDER BY fetched_at DESC, id DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var source, errText, metadata sql.NullString
		var reportID sql.NullInt64
		var success int
		var fetchedAt string

		err := rows.Scan(
			&rec.ID,
			&rec.Symbol,
			&rec.FetchType,
			&rec.FetchMode,
			&source,
			&rec.RowsFetched,
			&rec.RowsSaved,
			&rec.DurationMS,
			&success,
			&errText,
			&reportID,
			&metadata,
			&fetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}

		rec.Source = source.String
		rec.Error = errText.String
		rec.Success = success == 1
		if reportID.Valid {
			rec.ValidationReportID = &reportID.Int64
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
			}
		}
		if t, err := time.Parse(time.RFC3339, fetchedAt); err == nil {
			rec.FetchedAt = t
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return records, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
