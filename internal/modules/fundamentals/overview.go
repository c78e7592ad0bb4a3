package fundamentals

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/domain"
)

// EnhancedFundamentals is the one-row-per-symbol snapshot: the provider
// overview plus the derived year-over-year growth columns.
type EnhancedFundamentals struct {
	Symbol            string        `json:"symbol"`
	AsOfDate          string        `json:"as_of_date"`
	Name              string        `json:"name"`
	Sector            string        `json:"sector"`
	Industry          string        `json:"industry"`
	Currency          string        `json:"currency"`
	MarketCap         *int64        `json:"market_cap"`
	PERatio           *float64      `json:"pe_ratio"`
	PEGRatio          *float64      `json:"peg_ratio"`
	BookValue         *float64      `json:"book_value"`
	EPS               *float64      `json:"eps"`
	DividendYield     *float64      `json:"dividend_yield"`
	ProfitMargin      *float64      `json:"profit_margin"`
	Beta              *float64      `json:"beta"`
	FiftyTwoWeekHigh  *float64      `json:"fifty_two_week_high"`
	FiftyTwoWeekLow   *float64      `json:"fifty_two_week_low"`
	SharesOutstanding *int64        `json:"shares_outstanding"`
	Growth            GrowthMetrics `json:"growth"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// OverviewRepository maintains enhanced_fundamentals. The overview
// columns and the growth columns are written by different stages, so
// each upsert touches only its own column set.
type OverviewRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewOverviewRepository creates an overview repository on the market database.
func NewOverviewRepository(db *sql.DB, log zerolog.Logger) *OverviewRepository {
	return &OverviewRepository{
		db:  db,
		log: log.With().Str("component", "overview_repository").Logger(),
	}
}

// UpsertOverview writes the provider snapshot columns, leaving any
// previously computed growth columns in place.
func (r *OverviewRepository) UpsertOverview(o *domain.CompanyOverview, asOfDate string) error {
	if o == nil || o.Symbol == "" {
		return fmt.Errorf("cannot upsert empty overview")
	}

	_, err := r.db.Exec(`
		INSERT INTO enhanced_fundamentals
		(symbol, as_of_date, name, sector, industry, currency, market_cap, pe_ratio, peg_ratio, book_value, eps, dividend_yield, profit_margin, beta, fifty_two_week_high, fifty_two_week_low, shares_outstanding, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			as_of_date = excluded.as_of_date,
			name = excluded.name,
			sector = excluded.sector,
			industry = excluded.industry,
			currency = excluded.currency,
			market_cap = excluded.market_cap,
			pe_ratio = excluded.pe_ratio,
			peg_ratio = excluded.peg_ratio,
			book_value = excluded.book_value,
			eps = excluded.eps,
			dividend_yield = excluded.dividend_yield,
			profit_margin = excluded.profit_margin,
			beta = excluded.beta,
			fifty_two_week_high = excluded.fifty_two_week_high,
			fifty_two_week_low = excluded.fifty_two_week_low,
			shares_outstanding = excluded.shares_outstanding,
			updated_at = excluded.updated_at
	`,
		o.Symbol, asOfDate, o.Name, o.Sector, o.Industry, o.Currency,
		nullInt(o.MarketCap), nullFloat(o.PERatio), nullFloat(o.PEGRatio),
		nullFloat(o.BookValue), nullFloat(o.EPS), nullFloat(o.DividendYield),
		nullFloat(o.ProfitMargin), nullFloat(o.Beta),
		nullFloat(o.FiftyTwoWeekHigh), nullFloat(o.FiftyTwoWeekLow),
		nullInt(o.SharesOutstanding),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert overview for %s: %w", o.Symbol, err)
	}

	r.log.Info().Str("symbol", o.Symbol).Str("as_of", asOfDate).Msg("Saved company overview")
	return nil
}

// UpdateGrowth writes the derived growth columns. When no overview row
// exists yet the insert arm creates a stub dated today, so growth
// results are never lost to ordering.
func (r *OverviewRepository) UpdateGrowth(symbol string, m GrowthMetrics) error {
	if symbol == "" {
		return fmt.Errorf("cannot update growth without a symbol")
	}

	_, err := r.db.Exec(`
		INSERT INTO enhanced_fundamentals
		(symbol, as_of_date, revenue_growth_yoy_quarterly, revenue_growth_yoy_annual, earnings_growth_yoy_quarterly, earnings_growth_yoy_annual, eps_growth_yoy_quarterly, eps_growth_yoy_annual, operating_cashflow_growth_yoy_quarterly, operating_cashflow_growth_yoy_annual, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			revenue_growth_yoy_quarterly = excluded.revenue_growth_yoy_quarterly,
			revenue_growth_yoy_annual = excluded.revenue_growth_yoy_annual,
			earnings_growth_yoy_quarterly = excluded.earnings_growth_yoy_quarterly,
			earnings_growth_yoy_annual = excluded.earnings_growth_yoy_annual,
			eps_growth_yoy_quarterly = excluded.eps_growth_yoy_quarterly,
			eps_growth_yoy_annual = excluded.eps_growth_yoy_annual,
			operating_cashflow_growth_yoy_quarterly = excluded.operating_cashflow_growth_yoy_quarterly,
			operating_cashflow_growth_yoy_annual = excluded.operating_cashflow_growth_yoy_annual,
			updated_at = excluded.updated_at
	`,
		symbol, domain.FormatDate(time.Now()),
		nullFloat(m.RevenueGrowthQuarterly), nullFloat(m.RevenueGrowthAnnual),
		nullFloat(m.EarningsGrowthQuarterly), nullFloat(m.EarningsGrowthAnnual),
		nullFloat(m.EPSGrowthQuarterly), nullFloat(m.EPSGrowthAnnual),
		nullFloat(m.OperatingCashflowGrowthQuarterly), nullFloat(m.OperatingCashflowGrowthAnnual),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to update growth for %s: %w", symbol, err)
	}

	r.log.Info().Str("symbol", symbol).Msg("Saved growth metrics")
	return nil
}

// GetFundamentals returns the snapshot row for a symbol, or nil when
// none exists.
func (r *OverviewRepository) GetFundamentals(symbol string) (*EnhancedFundamentals, error) {
	var f EnhancedFundamentals
	var name, sector, industry, currency sql.NullString
	var marketCap, shares sql.NullInt64
	var pe, peg, book, eps, divYield, margin, beta, high52, low52 sql.NullFloat64
	var revQ, revA, earnQ, earnA, epsQ, epsA, cashQ, cashA sql.NullFloat64
	var updatedAt string

	err := r.db.QueryRow(`
		SELECT symbol, as_of_date, name, sector, industry, currency, market_cap, pe_ratio, peg_ratio, book_value, eps, dividend_yield, profit_margin, beta, fifty_two_week_high, fifty_two_week_low, shares_outstanding,
			revenue_growth_yoy_quarterly, revenue_growth_yoy_annual, earnings_growth_yoy_quarterly, earnings_growth_yoy_annual, eps_growth_yoy_quarterly, eps_growth_yoy_annual, operating_cashflow_growth_yoy_quarterly, operating_cashflow_growth_yoy_annual,
			updated_at
		FROM enhanced_fundamentals
		WHERE symbol = ?
	`, symbol).Scan(
		&f.Symbol, &f.AsOfDate, &name, &sector, &industry, &currency,
		&marketCap, &pe, &peg, &book, &eps, &divYield, &margin, &beta,
		&high52, &low52, &shares,
		&revQ, &revA, &earnQ, &earnA, &epsQ, &epsA, &cashQ, &cashA,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fundamentals for %s: %w", symbol, err)
	}

	f.Name = name.String
	f.Sector = sector.String
	f.Industry = industry.String
	f.Currency = currency.String
	f.MarketCap = intPtr(marketCap)
	f.PERatio = floatPtr(pe)
	f.PEGRatio = floatPtr(peg)
	f.BookValue = floatPtr(book)
	f.EPS = floatPtr(eps)
	f.DividendYield = floatPtr(divYield)
	f.ProfitMargin = floatPtr(margin)
	f.Beta = floatPtr(beta)
	f.FiftyTwoWeekHigh = floatPtr(high52)
	f.FiftyTwoWeekLow = floatPtr(low52)
	f.SharesOutstanding = intPtr(shares)
	f.Growth = GrowthMetrics{
		RevenueGrowthQuarterly:           floatPtr(revQ),
		RevenueGrowthAnnual:              floatPtr(revA),
		EarningsGrowthQuarterly:          floatPtr(earnQ),
		EarningsGrowthAnnual:             floatPtr(earnA),
		EPSGrowthQuarterly:               floatPtr(epsQ),
		EPSGrowthAnnual:                  floatPtr(epsA),
		OperatingCashflowGrowthQuarterly: floatPtr(cashQ),
		OperatingCashflowGrowthAnnual:    floatPtr(cashA),
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		f.UpdatedAt = t
	}

	return &f, nil
}
