package fundamentals

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgalanis/conveyor/internal/domain"
	testingpkg "github.com/mgalanis/conveyor/internal/testing"
)

func mustObs(t *testing.T, date string, value float64) observation {
	t.Helper()
	day, err := domain.ParseDate(date)
	require.NoError(t, err)
	return observation{date: day, value: domain.Float64(value)}
}

func TestGrowthRate(t *testing.T) {
	rate := growthRate(domain.Float64(125), domain.Float64(100))
	require.NotNil(t, rate)
	assert.InDelta(t, 0.25, *rate, 1e-9)

	rate = growthRate(domain.Float64(-50), domain.Float64(-100))
	require.NotNil(t, rate)
	assert.InDelta(t, 0.5, *rate, 1e-9, "shrinking a loss is positive growth")

	rate = growthRate(domain.Float64(-150), domain.Float64(-100))
	require.NotNil(t, rate)
	assert.InDelta(t, -0.5, *rate, 1e-9)

	assert.Nil(t, growthRate(domain.Float64(100), domain.Float64(0)))
	assert.Nil(t, growthRate(nil, domain.Float64(100)))
	assert.Nil(t, growthRate(domain.Float64(100), nil))
}

func TestLatestQuarterlyGrowth(t *testing.T) {
	t.Run("pairs against the quarter a year back", func(t *testing.T) {
		obs := []observation{
			mustObs(t, "2023-06-30", 800),
			mustObs(t, "2023-09-30", 850),
			mustObs(t, "2023-12-30", 900),
			mustObs(t, "2024-03-30", 950),
			mustObs(t, "2024-06-30", 1000),
		}
		rate := latestQuarterlyGrowth(obs)
		require.NotNil(t, rate)
		assert.InDelta(t, 0.25, *rate, 1e-9)
	})

	t.Run("drifted quarter end still matches", func(t *testing.T) {
		obs := []observation{
			mustObs(t, "2023-07-02", 500),
			mustObs(t, "2023-09-30", 520),
			mustObs(t, "2023-12-31", 540),
			mustObs(t, "2024-03-31", 560),
			mustObs(t, "2024-06-29", 600),
		}
		rate := latestQuarterlyGrowth(obs)
		require.NotNil(t, rate)
		assert.InDelta(t, 0.2, *rate, 1e-9)
	})

	t.Run("no partner near a year back", func(t *testing.T) {
		obs := []observation{
			mustObs(t, "2023-12-30", 900),
			mustObs(t, "2024-03-30", 950),
			mustObs(t, "2024-06-30", 1000),
		}
		assert.Nil(t, latestQuarterlyGrowth(obs))
	})

	t.Run("too few observations", func(t *testing.T) {
		assert.Nil(t, latestQuarterlyGrowth(nil))
		assert.Nil(t, latestQuarterlyGrowth([]observation{mustObs(t, "2024-06-30", 1000)}))
	})

	t.Run("missing values yield nil", func(t *testing.T) {
		day, err := domain.ParseDate("2023-06-30")
		require.NoError(t, err)
		obs := []observation{
			{date: day, value: nil},
			mustObs(t, "2023-09-30", 850),
			mustObs(t, "2023-12-30", 900),
			mustObs(t, "2024-03-30", 950),
			mustObs(t, "2024-06-30", 1000),
		}
		assert.Nil(t, latestQuarterlyGrowth(obs))
	})
}

func TestLatestAnnualGrowth(t *testing.T) {
	obs := []observation{
		mustObs(t, "2021-09-30", 365_817),
		mustObs(t, "2022-09-30", 394_328),
		mustObs(t, "2023-09-30", 383_285),
	}
	rate := latestAnnualGrowth(obs)
	require.NotNil(t, rate)
	assert.InDelta(t, (383_285.0-394_328.0)/394_328.0, *rate, 1e-9)

	assert.Nil(t, latestAnnualGrowth(obs[:1]))
	assert.Nil(t, latestAnnualGrowth(nil))
}

func TestGrowthEngine_Compute(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	statements := NewStatementRepository(db.Conn(), zerolog.Nop())
	engine := NewGrowthEngine(statements, zerolog.Nop())

	// Five quarters of income shrinking 5% per step going back, so the
	// latest quarter sits one year and four steps above its partner.
	quarterly := testingpkg.NewQuarterlyIncomeStatements("AAPL", time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), 5)
	_, err := statements.SaveIncomeStatements(quarterly)
	require.NoError(t, err)

	annual := []domain.IncomeStatement{
		{Symbol: "AAPL", FiscalDateEnding: "2022-09-30", Period: domain.PeriodAnnual,
			TotalRevenue: domain.Float64(394_328_000_000), NetIncome: domain.Float64(99_803_000_000)},
		{Symbol: "AAPL", FiscalDateEnding: "2023-09-30", Period: domain.PeriodAnnual,
			TotalRevenue: domain.Float64(383_285_000_000), NetIncome: domain.Float64(96_995_000_000)},
	}
	_, err = statements.SaveIncomeStatements(annual)
	require.NoError(t, err)

	flows := []domain.CashFlowStatement{
		{Symbol: "AAPL", FiscalDateEnding: "2023-06-30", Period: domain.PeriodQuarterly,
			OperatingCashflow: domain.Float64(100_000)},
		{Symbol: "AAPL", FiscalDateEnding: "2023-09-30", Period: domain.PeriodQuarterly,
			OperatingCashflow: domain.Float64(102_000)},
		{Symbol: "AAPL", FiscalDateEnding: "2023-12-30", Period: domain.PeriodQuarterly,
			OperatingCashflow: domain.Float64(104_000)},
		{Symbol: "AAPL", FiscalDateEnding: "2024-03-30", Period: domain.PeriodQuarterly,
			OperatingCashflow: domain.Float64(108_000)},
		{Symbol: "AAPL", FiscalDateEnding: "2024-06-30", Period: domain.PeriodQuarterly,
			OperatingCashflow: domain.Float64(110_000)},
	}
	_, err = statements.SaveCashFlows(flows)
	require.NoError(t, err)

	earnings := []domain.EarningsRecord{
		{Symbol: "AAPL", FiscalDateEnding: "2023-06-30", Period: domain.PeriodQuarterly, ReportedEPS: domain.Float64(0.80)},
		{Symbol: "AAPL", FiscalDateEnding: "2023-09-30", Period: domain.PeriodQuarterly, ReportedEPS: domain.Float64(0.85)},
		{Symbol: "AAPL", FiscalDateEnding: "2023-12-30", Period: domain.PeriodQuarterly, ReportedEPS: domain.Float64(0.90)},
		{Symbol: "AAPL", FiscalDateEnding: "2024-03-30", Period: domain.PeriodQuarterly, ReportedEPS: domain.Float64(0.95)},
		{Symbol: "AAPL", FiscalDateEnding: "2024-06-30", Period: domain.PeriodQuarterly, ReportedEPS: domain.Float64(1.00)},
		{Symbol: "AAPL", FiscalDateEnding: "2022-09-30", Period: domain.PeriodAnnual, ReportedEPS: domain.Float64(6.11)},
		{Symbol: "AAPL", FiscalDateEnding: "2023-09-30", Period: domain.PeriodAnnual, ReportedEPS: domain.Float64(6.13)},
	}
	_, err = statements.SaveEarnings(earnings)
	require.NoError(t, err)

	metrics, err := engine.Compute("AAPL")
	require.NoError(t, err)
	assert.True(t, metrics.Any())

	// The fixture decays 5% per quarter, so a year-over-year step is 0.95^-4 - 1.
	yoy := 1/math.Pow(0.95, 4) - 1
	require.NotNil(t, metrics.RevenueGrowthQuarterly)
	assert.InDelta(t, yoy, *metrics.RevenueGrowthQuarterly, 1e-9)
	require.NotNil(t, metrics.EarningsGrowthQuarterly)
	assert.InDelta(t, yoy, *metrics.EarningsGrowthQuarterly, 1e-9)

	require.NotNil(t, metrics.RevenueGrowthAnnual)
	assert.InDelta(t, (383_285.0-394_328.0)/394_328.0, *metrics.RevenueGrowthAnnual, 1e-9)
	require.NotNil(t, metrics.EarningsGrowthAnnual)
	assert.InDelta(t, (96_995.0-99_803.0)/99_803.0, *metrics.EarningsGrowthAnnual, 1e-9)

	require.NotNil(t, metrics.EPSGrowthQuarterly)
	assert.InDelta(t, 0.25, *metrics.EPSGrowthQuarterly, 1e-9)
	require.NotNil(t, metrics.EPSGrowthAnnual)
	assert.InDelta(t, (6.13-6.11)/6.11, *metrics.EPSGrowthAnnual, 1e-9)

	require.NotNil(t, metrics.OperatingCashflowGrowthQuarterly)
	assert.InDelta(t, 0.10, *metrics.OperatingCashflowGrowthQuarterly, 1e-9)
	assert.Nil(t, metrics.OperatingCashflowGrowthAnnual, "no annual cash flows were stored")
}

func TestGrowthEngine_NoData(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	engine := NewGrowthEngine(NewStatementRepository(db.Conn(), zerolog.Nop()), zerolog.Nop())

	metrics, err := engine.Compute("EMPTY")
	require.NoError(t, err)
	assert.False(t, metrics.Any())
	assert.Nil(t, metrics.RevenueGrowthQuarterly)
	assert.Nil(t, metrics.EPSGrowthAnnual)
}

func TestGrowthMetrics_Any(t *testing.T) {
	assert.False(t, GrowthMetrics{}.Any())
	assert.True(t, GrowthMetrics{EPSGrowthQuarterly: domain.Float64(0.1)}.Any())
	assert.True(t, GrowthMetrics{OperatingCashflowGrowthAnnual: domain.Float64(-0.2)}.Any())
}
