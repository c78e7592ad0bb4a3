package fundamentals

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/domain"
)

// GrowthMetrics holds the latest period's year-over-year growth rates.
// A nil rate means the comparison partner was missing or its value was
// zero; rates are never infinite.
type GrowthMetrics struct {
	RevenueGrowthQuarterly           *float64 `json:"revenue_growth_yoy_quarterly"`
	RevenueGrowthAnnual              *float64 `json:"revenue_growth_yoy_annual"`
	EarningsGrowthQuarterly          *float64 `json:"earnings_growth_yoy_quarterly"`
	EarningsGrowthAnnual             *float64 `json:"earnings_growth_yoy_annual"`
	EPSGrowthQuarterly               *float64 `json:"eps_growth_yoy_quarterly"`
	EPSGrowthAnnual                  *float64 `json:"eps_growth_yoy_annual"`
	OperatingCashflowGrowthQuarterly *float64 `json:"operating_cashflow_growth_yoy_quarterly"`
	OperatingCashflowGrowthAnnual    *float64 `json:"operating_cashflow_growth_yoy_annual"`
}

// Any reports whether at least one rate was computable.
func (m GrowthMetrics) Any() bool {
	return m.RevenueGrowthQuarterly != nil || m.RevenueGrowthAnnual != nil ||
		m.EarningsGrowthQuarterly != nil || m.EarningsGrowthAnnual != nil ||
		m.EPSGrowthQuarterly != nil || m.EPSGrowthAnnual != nil ||
		m.OperatingCashflowGrowthQuarterly != nil || m.OperatingCashflowGrowthAnnual != nil
}

// GrowthEngine derives GrowthMetrics from stored statements and
// reported earnings.
type GrowthEngine struct {
	statements *StatementRepository
	log        zerolog.Logger
}

// NewGrowthEngine creates a growth engine over the statement repository.
func NewGrowthEngine(statements *StatementRepository, log zerolog.Logger) *GrowthEngine {
	return &GrowthEngine{
		statements: statements,
		log:        log.With().Str("component", "growth_engine").Logger(),
	}
}

// Compute derives the latest period's growth rates for a symbol.
// Revenue and earnings come from income statements, EPS from reported
// earnings, operating cash flow from cash flow statements.
func (e *GrowthEngine) Compute(symbol string) (GrowthMetrics, error) {
	var m GrowthMetrics

	incomeQ, err := e.statements.GetIncomeStatements(symbol, domain.PeriodQuarterly)
	if err != nil {
		return m, err
	}
	incomeA, err := e.statements.GetIncomeStatements(symbol, domain.PeriodAnnual)
	if err != nil {
		return m, err
	}
	cashQ, err := e.statements.GetCashFlows(symbol, domain.PeriodQuarterly)
	if err != nil {
		return m, err
	}
	cashA, err := e.statements.GetCashFlows(symbol, domain.PeriodAnnual)
	if err != nil {
		return m, err
	}
	earningsQ, err := e.statements.GetEarnings(symbol, domain.PeriodQuarterly)
	if err != nil {
		return m, err
	}
	earningsA, err := e.statements.GetEarnings(symbol, domain.PeriodAnnual)
	if err != nil {
		return m, err
	}

	revenue := func(s domain.IncomeStatement) *float64 { return s.TotalRevenue }
	netIncome := func(s domain.IncomeStatement) *float64 { return s.NetIncome }

	m.RevenueGrowthQuarterly = latestQuarterlyGrowth(incomeObservations(incomeQ, revenue))
	m.RevenueGrowthAnnual = latestAnnualGrowth(incomeObservations(incomeA, revenue))
	m.EarningsGrowthQuarterly = latestQuarterlyGrowth(incomeObservations(incomeQ, netIncome))
	m.EarningsGrowthAnnual = latestAnnualGrowth(incomeObservations(incomeA, netIncome))
	m.EPSGrowthQuarterly = latestQuarterlyGrowth(earningsObservations(earningsQ))
	m.EPSGrowthAnnual = latestAnnualGrowth(earningsObservations(earningsA))
	m.OperatingCashflowGrowthQuarterly = latestQuarterlyGrowth(cashObservations(cashQ))
	m.OperatingCashflowGrowthAnnual = latestAnnualGrowth(cashObservations(cashA))

	e.log.Debug().Str("symbol", symbol).Bool("any", m.Any()).Msg("Computed growth metrics")
	return m, nil
}

type observation struct {
	date  time.Time
	value *float64
}

func incomeObservations(statements []domain.IncomeStatement, value func(domain.IncomeStatement) *float64) []observation {
	obs := make([]observation, 0, len(statements))
	for _, s := range statements {
		day, err := domain.ParseDate(s.FiscalDateEnding)
		if err != nil {
			continue
		}
		obs = append(obs, observation{date: day, value: value(s)})
	}
	return obs
}

func cashObservations(flows []domain.CashFlowStatement) []observation {
	obs := make([]observation, 0, len(flows))
	for _, s := range flows {
		day, err := domain.ParseDate(s.FiscalDateEnding)
		if err != nil {
			continue
		}
		obs = append(obs, observation{date: day, value: s.OperatingCashflow})
	}
	return obs
}

func earningsObservations(records []domain.EarningsRecord) []observation {
	obs := make([]observation, 0, len(records))
	for _, rec := range records {
		day, err := domain.ParseDate(rec.FiscalDateEnding)
		if err != nil {
			continue
		}
		obs = append(obs, observation{date: day, value: rec.ReportedEPS})
	}
	return obs
}

// latestQuarterlyGrowth compares the newest observation against the one
// closest to a year earlier. Quarter ends drift between years, so the
// partner may sit within 45 days of the 365-day mark; adjacent quarters
// at roughly 90-day spacing stay out of range.
func latestQuarterlyGrowth(obs []observation) *float64 {
	if len(obs) < 2 {
		return nil
	}
	latest := obs[len(obs)-1]

	var partner *observation
	best := math.MaxFloat64
	for i := range obs[:len(obs)-1] {
		days := latest.date.Sub(obs[i].date).Hours() / 24
		delta := math.Abs(days - 365)
		if delta <= 45 && delta < best {
			best = delta
			partner = &obs[i]
		}
	}
	if partner == nil {
		return nil
	}
	return growthRate(latest.value, partner.value)
}

// latestAnnualGrowth compares the newest annual observation against the
// one immediately before it.
func latestAnnualGrowth(obs []observation) *float64 {
	if len(obs) < 2 {
		return nil
	}
	return growthRate(obs[len(obs)-1].value, obs[len(obs)-2].value)
}

// growthRate returns (cur - prev) / |prev|, or nil when either side is
// missing or the denominator is zero.
func growthRate(cur, prev *float64) *float64 {
	if cur == nil || prev == nil || *prev == 0 {
		return nil
	}
	v := (*cur - *prev) / math.Abs(*prev)
	return &v
}
