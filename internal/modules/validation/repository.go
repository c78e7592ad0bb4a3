package validation

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ReportRepository persists validation reports. Stored reports are
// immutable; the gates always read the latest one per (symbol, data
// type).
type ReportRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewReportRepository creates a report repository on the market database.
func NewReportRepository(db *sql.DB, log zerolog.Logger) *ReportRepository {
	return &ReportRepository{
		db:  db,
		log: log.With().Str("component", "validation_reports").Logger(),
	}
}

// Insert stores a report and returns its row id. The full report,
// including per-check results, is kept as JSON beside the queryable
// summary columns.
func (r *ReportRepository) Insert(report *Report) (int64, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal validation report: %w", err)
	}

	result, err := r.db.Exec(`
		INSERT INTO data_validation_reports
		(symbol, data_type, overall_status, critical_issues, warning_issues, rows_dropped, quality_score, total_rows, report_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.Symbol,
		report.DataType,
		report.OverallStatus,
		report.CriticalIssues,
		report.WarningIssues,
		report.RowsDropped,
		QualityScore(report),
		report.TotalRows,
		string(payload),
		report.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert validation report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get validation report id: %w", err)
	}
	report.ID = id

	r.log.Debug().
		Int64("report_id", id).
		Str("symbol", report.Symbol).
		Str("status", report.OverallStatus).
		Msg("Stored validation report")

	return id, nil
}

// LatestForSymbol fetches the most recent report for (symbol, dataType).
// Returns nil when no report exists (not an error).
func (r *ReportRepository) LatestForSymbol(symbol, dataType string) (*Report, error) {
	var id int64
	var payload string

	err := r.db.QueryRow(`
		SELECT id, report_json
		FROM data_validation_reports
		WHERE symbol = ? AND data_type = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, symbol, dataType).Scan(&id, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest validation report: %w", err)
	}

	var report Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal validation report %d: %w", id, err)
	}
	report.ID = id
	return &report, nil
}

// RecentForSymbol fetches report summaries for a symbol, newest first.
// Per-check results are omitted; use LatestForSymbol for the full
// payload.
func (r *ReportRepository) RecentForSymbol(symbol string, limit int) ([]Report, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, data_type, overall_status, critical_issues, warning_issues, rows_dropped, total_rows, created_at
		FROM data_validation_reports
		WHERE symbol = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query validation reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var report Report
		var createdAt string

		err := rows.Scan(
			&report.ID,
			&report.Symbol,
			&report.DataType,
			&report.OverallStatus,
			&report.CriticalIssues,
			&report.WarningIssues,
			&report.RowsDropped,
			&report.TotalRows,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan validation report: %w", err)
		}

		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			report.Timestamp = t
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating validation reports: %w", err)
	}

	return reports, nil
}
