package fundamentals

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgalanis/conveyor/internal/domain"
	testingpkg "github.com/mgalanis/conveyor/internal/testing"
)

func TestStatementRepository_IncomeRoundTrip(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	repo := NewStatementRepository(db.Conn(), zerolog.Nop())

	statements := testingpkg.NewQuarterlyIncomeStatements("AAPL", time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), 5)
	saved, err := repo.SaveIncomeStatements(statements)
	require.NoError(t, err)
	assert.Equal(t, 5, saved)

	got, err := repo.GetIncomeStatements("AAPL", domain.PeriodQuarterly)
	require.NoError(t, err)
	require.Len(t, got, 5)

	// Fixture walks backward from the latest; reads come back oldest first.
	assert.Equal(t, "2023-06-30", got[0].FiscalDateEnding)
	assert.Equal(t, "2024-06-30", got[4].FiscalDateEnding)
	assert.InDelta(t, 1_000_000.0, *got[4].TotalRevenue, 1e-6)
	assert.Equal(t, "USD", got[4].Currency)
	assert.Equal(t, domain.PeriodQuarterly, got[4].Period)

	annual, err := repo.GetIncomeStatements("AAPL", domain.PeriodAnnual)
	require.NoError(t, err)
	assert.Empty(t, annual, "period filter keeps quarterlies out of annual reads")
}

func TestStatementRepository_UpsertReplaces(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	repo := NewStatementRepository(db.Conn(), zerolog.Nop())

	first := domain.IncomeStatement{
		Symbol:           "AAPL",
		FiscalDateEnding: "2024-06-30",
		Period:           domain.PeriodQuarterly,
		TotalRevenue:     domain.Float64(1_000_000),
	}
	_, err := repo.SaveIncomeStatements([]domain.IncomeStatement{first})
	require.NoError(t, err)

	restated := first
	restated.TotalRevenue = domain.Float64(1_050_000)
	_, err = repo.SaveIncomeStatements([]domain.IncomeStatement{restated})
	require.NoError(t, err)

	got, err := repo.GetIncomeStatements("AAPL", domain.PeriodQuarterly)
	require.NoError(t, err)
	require.Len(t, got, 1, "restatements replace, never duplicate")
	assert.InDelta(t, 1_050_000.0, *got[0].TotalRevenue, 1e-6)
}

func TestStatementRepository_SkipsRowsWithoutKey(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	repo := NewStatementRepository(db.Conn(), zerolog.Nop())

	saved, err := repo.SaveIncomeStatements([]domain.IncomeStatement{
		{Symbol: "AAPL", FiscalDateEnding: "2024-06-30", Period: domain.PeriodQuarterly},
		{Symbol: "", FiscalDateEnding: "2024-06-30", Period: domain.PeriodQuarterly},
		{Symbol: "AAPL", FiscalDateEnding: "", Period: domain.PeriodQuarterly},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
}

func TestStatementRepository_CashFlowRoundTrip(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	repo := NewStatementRepository(db.Conn(), zerolog.Nop())

	flows := []domain.CashFlowStatement{
		{
			Symbol:              "AAPL",
			FiscalDateEnding:    "2024-06-30",
			Period:              domain.PeriodQuarterly,
			Currency:            "USD",
			OperatingCashflow:   domain.Float64(28_858_000_000),
			CapitalExpenditures: domain.Float64(2_151_000_000),
			NetIncome:           domain.Float64(21_448_000_000),
		},
	}
	saved, err := repo.SaveCashFlows(flows)
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	got, err := repo.GetCashFlows("AAPL", domain.PeriodQuarterly)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 28_858_000_000.0, *got[0].OperatingCashflow, 1e-3)
	assert.Nil(t, got[0].DividendPayout, "unset columns stay null")
}

func TestStatementRepository_EarningsRoundTrip(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	repo := NewStatementRepository(db.Conn(), zerolog.Nop())

	records := []domain.EarningsRecord{
		{
			Symbol:           "AAPL",
			FiscalDateEnding: "2024-06-30",
			Period:           domain.PeriodQuarterly,
			ReportedDate:     "2024-08-01",
			ReportedEPS:      domain.Float64(1.40),
			EstimatedEPS:     domain.Float64(1.35),
			Surprise:         domain.Float64(0.05),
			SurprisePercent:  domain.Float64(3.7),
		},
		{
			Symbol:           "AAPL",
			FiscalDateEnding: "2023-09-30",
			Period:           domain.PeriodAnnual,
			ReportedEPS:      domain.Float64(6.13),
		},
	}
	saved, err := repo.SaveEarnings(records)
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	quarterly, err := repo.GetEarnings("AAPL", domain.PeriodQuarterly)
	require.NoError(t, err)
	require.Len(t, quarterly, 1)
	assert.Equal(t, "2024-08-01", quarterly[0].ReportedDate)
	assert.InDelta(t, 1.40, *quarterly[0].ReportedEPS, 1e-9)
	assert.InDelta(t, 3.7, *quarterly[0].SurprisePercent, 1e-9)

	annual, err := repo.GetEarnings("AAPL", domain.PeriodAnnual)
	require.NoError(t, err)
	require.Len(t, annual, 1)
	assert.Equal(t, "", annual[0].ReportedDate)
	assert.Nil(t, annual[0].EstimatedEPS)
}

func TestOverviewRepository_UpsertAndGet(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	repo := NewOverviewRepository(db.Conn(), zerolog.Nop())

	overview := &domain.CompanyOverview{
		Symbol:            "AAPL",
		Name:              "Apple Inc",
		Sector:            "TECHNOLOGY",
		Industry:          "ELECTRONIC COMPUTERS",
		Currency:          "USD",
		MarketCap:         domain.Int64(3_400_000_000_000),
		PERatio:           domain.Float64(33.1),
		EPS:               domain.Float64(6.57),
		Beta:              domain.Float64(1.24),
		SharesOutstanding: domain.Int64(15_334_080_000),
	}
	require.NoError(t, repo.UpsertOverview(overview, "2024-08-01"))

	got, err := repo.GetFundamentals("AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Apple Inc", got.Name)
	assert.Equal(t, "2024-08-01", got.AsOfDate)
	assert.Equal(t, int64(3_400_000_000_000), *got.MarketCap)
	assert.InDelta(t, 33.1, *got.PERatio, 1e-9)
	assert.Nil(t, got.PEGRatio)
	assert.Nil(t, got.Growth.RevenueGrowthQuarterly)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestOverviewRepository_GrowthPreservesOverview(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	repo := NewOverviewRepository(db.Conn(), zerolog.Nop())

	overview := &domain.CompanyOverview{Symbol: "AAPL", Name: "Apple Inc", Currency: "USD"}
	require.NoError(t, repo.UpsertOverview(overview, "2024-08-01"))

	metrics := GrowthMetrics{
		RevenueGrowthQuarterly: domain.Float64(0.05),
		EPSGrowthAnnual:        domain.Float64(0.12),
	}
	require.NoError(t, repo.UpdateGrowth("AAPL", metrics))

	got, err := repo.GetFundamentals("AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Apple Inc", got.Name, "growth write must not clobber the snapshot")
	assert.Equal(t, "2024-08-01", got.AsOfDate)
	assert.InDelta(t, 0.05, *got.Growth.RevenueGrowthQuarterly, 1e-9)
	assert.InDelta(t, 0.12, *got.Growth.EPSGrowthAnnual, 1e-9)
	assert.Nil(t, got.Growth.RevenueGrowthAnnual)
}

func TestOverviewRepository_GrowthBeforeOverview(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	repo := NewOverviewRepository(db.Conn(), zerolog.Nop())

	require.NoError(t, repo.UpdateGrowth("MSFT", GrowthMetrics{
		RevenueGrowthAnnual: domain.Float64(0.07),
	}))

	got, err := repo.GetFundamentals("MSFT")
	require.NoError(t, err)
	require.NotNil(t, got, "growth results survive even before an overview lands")
	assert.InDelta(t, 0.07, *got.Growth.RevenueGrowthAnnual, 1e-9)

	overview := &domain.CompanyOverview{Symbol: "MSFT", Name: "Microsoft Corporation"}
	require.NoError(t, repo.UpsertOverview(overview, "2024-08-02"))

	got, err = repo.GetFundamentals("MSFT")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Microsoft Corporation", got.Name)
	assert.InDelta(t, 0.07, *got.Growth.RevenueGrowthAnnual, 1e-9, "overview write must not clobber growth")
}

func TestOverviewRepository_MissingSymbol(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	repo := NewOverviewRepository(db.Conn(), zerolog.Nop())

	got, err := repo.GetFundamentals("NONE")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Error(t, repo.UpsertOverview(nil, "2024-08-01"))
	assert.Error(t, repo.UpsertOverview(&domain.CompanyOverview{}, "2024-08-01"))
}
