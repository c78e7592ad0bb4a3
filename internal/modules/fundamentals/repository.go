// Package fundamentals stores financial statements, reported earnings
// and the company snapshot, and derives the year-over-year growth
// columns the signal layer reads.
package fundamentals

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/domain"
)

// StatementRepository persists provider statements keyed by
// (symbol, fiscal_date_ending, period). Providers restate figures, so
// the latest fetch always wins.
type StatementRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStatementRepository creates a statement repository on the market database.
func NewStatementRepository(db *sql.DB, log zerolog.Logger) *StatementRepository {
	return &StatementRepository{
		db:  db,
		log: log.With().Str("component", "statement_repository").Logger(),
	}
}

// SaveIncomeStatements upserts income statements and returns how many
// were written.
func (r *StatementRepository) SaveIncomeStatements(statements []domain.IncomeStatement) (int, error) {
	if len(statements) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be no-op if Commit succeeds

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO income_statements
		(symbol, fiscal_date_ending, period, currency, total_revenue, gross_profit, operating_income, net_income, ebitda, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare income statement upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	saved := 0
	for _, s := range statements {
		if s.Symbol == "" || s.FiscalDateEnding == "" {
			continue
		}
		_, err := stmt.Exec(s.Symbol, s.FiscalDateEnding, string(s.Period), s.Currency,
			nullFloat(s.TotalRevenue), nullFloat(s.GrossProfit), nullFloat(s.OperatingIncome),
			nullFloat(s.NetIncome), nullFloat(s.EBITDA), now)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert income statement %s %s: %w", s.Symbol, s.FiscalDateEnding, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit income statements: %w", err)
	}

	r.log.Info().Str("symbol", statements[0].Symbol).Int("rows", saved).Msg("Saved income statements")
	return saved, nil
}

// SaveBalanceSheets upserts balance sheets.
func (r *StatementRepository) SaveBalanceSheets(sheets []domain.BalanceSheet) (int, error) {
	if len(sheets) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be no-op if Commit succeeds

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO balance_sheets
		(symbol, fiscal_date_ending, period, currency, total_assets, total_liabilities, total_shareholder_equity, cash_and_equivalents, long_term_debt, shares_outstanding, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare balance sheet upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	saved := 0
	for _, s := range sheets {
		if s.Symbol == "" || s.FiscalDateEnding == "" {
			continue
		}
		_, err := stmt.Exec(s.Symbol, s.FiscalDateEnding, string(s.Period), s.Currency,
			nullFloat(s.TotalAssets), nullFloat(s.TotalLiabilities), nullFloat(s.TotalShareholderEquity),
			nullFloat(s.CashAndEquivalents), nullFloat(s.LongTermDebt), nullInt(s.SharesOutstanding), now)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert balance sheet %s %s: %w", s.Symbol, s.FiscalDateEnding, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit balance sheets: %w", err)
	}

	r.log.Info().Str("symbol", sheets[0].Symbol).Int("rows", saved).Msg("Saved balance sheets")
	return saved, nil
}

// SaveCashFlows upserts cash flow statements.
func (r *StatementRepository) SaveCashFlows(flows []domain.CashFlowStatement) (int, error) {
	if len(flows) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be no-op if Commit succeeds

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO cash_flow_statements
		(symbol, fiscal_date_ending, period, currency, operating_cashflow, capital_expenditures, dividend_payout, net_income, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare cash flow upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	saved := 0
	for _, s := range flows {
		if s.Symbol == "" || s.FiscalDateEnding == "" {
			continue
		}
		_, err := stmt.Exec(s.Symbol, s.FiscalDateEnding, string(s.Period), s.Currency,
			nullFloat(s.OperatingCashflow), nullFloat(s.CapitalExpenditures),
			nullFloat(s.DividendPayout), nullFloat(s.NetIncome), now)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert cash flow %s %s: %w", s.Symbol, s.FiscalDateEnding, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cash flows: %w", err)
	}

	r.log.Info().Str("symbol", flows[0].Symbol).Int("rows", saved).Msg("Saved cash flow statements")
	return saved, nil
}

// SaveEarnings upserts reported earnings history.
func (r *StatementRepository) SaveEarnings(records []domain.EarningsRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be no-op if Commit succeeds

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO earnings_history
		(symbol, fiscal_date_ending, period, reported_date, reported_eps, estimated_eps, surprise, surprise_percent, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare earnings upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	saved := 0
	for _, rec := range records {
		if rec.Symbol == "" || rec.FiscalDateEnding == "" {
			continue
		}
		_, err := stmt.Exec(rec.Symbol, rec.FiscalDateEnding, string(rec.Period), nullStr(rec.ReportedDate),
			nullFloat(rec.ReportedEPS), nullFloat(rec.EstimatedEPS),
			nullFloat(rec.Surprise), nullFloat(rec.SurprisePercent), now)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert earnings %s %s: %w", rec.Symbol, rec.FiscalDateEnding, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit earnings history: %w", err)
	}

	r.log.Info().Str("symbol", records[0].Symbol).Int("rows", saved).Msg("Saved earnings history")
	return saved, nil
}

// GetIncomeStatements returns a symbol's income statements for one
// period type, oldest first.
func (r *StatementRepository) GetIncomeStatements(symbol string, period domain.StatementPeriod) ([]domain.IncomeStatement, error) {
	rows, err := r.db.Query(`
		SELECT symbol, fiscal_date_ending, period, currency, total_revenue, gross_profit, operating_income, net_income, ebitda
		FROM income_statements
		WHERE symbol = ? AND period = ?
		ORDER BY fiscal_date_ending ASC
	`, symbol, string(period))
	if err != nil {
		return nil, fmt.Errorf("failed to query income statements for %s: %w", symbol, err)
	}
	defer rows.Close()

	var statements []domain.IncomeStatement
	for rows.Next() {
		var s domain.IncomeStatement
		var currency sql.NullString
		var revenue, gross, operating, net, ebitda sql.NullFloat64

		if err := rows.Scan(&s.Symbol, &s.FiscalDateEnding, &s.Period, &currency,
			&revenue, &gross, &operating, &net, &ebitda); err != nil {
			return nil, fmt.Errorf("failed to scan income statement: %w", err)
		}
		s.Currency = currency.String
		s.TotalRevenue = floatPtr(revenue)
		s.GrossProfit = floatPtr(gross)
		s.OperatingIncome = floatPtr(operating)
		s.NetIncome = floatPtr(net)
		s.EBITDA = floatPtr(ebitda)
		statements = append(statements, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating income statements: %w", err)
	}
	return statements, nil
}

// GetCashFlows returns a symbol's cash flow statements for one period
// type, oldest first.
func (r *StatementRepository) GetCashFlows(symbol string, period domain.StatementPeriod) ([]domain.CashFlowStatement, error) {
	rows, err := r.db.Query(`
		SELECT symbol, fiscal_date_ending, period, currency, operating_cashflow, capital_expenditures, dividend_payout, net_income
		FROM cash_flow_statements
		WHERE symbol = ? AND period = ?
		ORDER BY fiscal_date_ending ASC
	`, symbol, string(period))
	if err != nil {
		return nil, fmt.Errorf("failed to query cash flows for %s: %w", symbol, err)
	}
	defer rows.Close()

	var flows []domain.CashFlowStatement
	for rows.Next() {
		var s domain.CashFlowStatement
		var currency sql.NullString
		var operating, capex, dividends, net sql.NullFloat64

		if err := rows.Scan(&s.Symbol, &s.FiscalDateEnding, &s.Period, &currency,
			&operating, &capex, &dividends, &net); err != nil {
			return nil, fmt.Errorf("failed to scan cash flow: %w", err)
		}
		s.Currency = currency.String
		s.OperatingCashflow = floatPtr(operating)
		s.CapitalExpenditures = floatPtr(capex)
		s.DividendPayout = floatPtr(dividends)
		s.NetIncome = floatPtr(net)
		flows = append(flows, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cash flows: %w", err)
	}
	return flows, nil
}

// GetEarnings returns a symbol's reported earnings for one period type,
// oldest first.
func (r *StatementRepository) GetEarnings(symbol string, period domain.StatementPeriod) ([]domain.EarningsRecord, error) {
	rows, err := r.db.Query(`
		SELECT symbol, fiscal_date_ending, period, reported_date, reported_eps, estimated_eps, surprise, surprise_percent
		FROM earnings_history
		WHERE symbol = ? AND period = ?
		ORDER BY fiscal_date_ending ASC
	`, symbol, string(period))
	if err != nil {
		return nil, fmt.Errorf("failed to query earnings for %s: %w", symbol, err)
	}
	defer rows.Close()

	var records []domain.EarningsRecord
	for rows.Next() {
		var rec domain.EarningsRecord
		var reportedDate sql.NullString
		var reported, estimated, surprise, surprisePct sql.NullFloat64

		if err := rows.Scan(&rec.Symbol, &rec.FiscalDateEnding, &rec.Period, &reportedDate,
			&reported, &estimated, &surprise, &surprisePct); err != nil {
			return nil, fmt.Errorf("failed to scan earnings record: %w", err)
		}
		rec.ReportedDate = reportedDate.String
		rec.ReportedEPS = floatPtr(reported)
		rec.EstimatedEPS = floatPtr(estimated)
		rec.Surprise = floatPtr(surprise)
		rec.SurprisePercent = floatPtr(surprisePct)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating earnings records: %w", err)
	}
	return records, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullStr(s string) sql.NullString {
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

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}
