package marketdata

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testingpkg "github.com/mgalanis/conveyor/internal/testing"
)

func TestAuditRepository_InsertAndList(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	repo := NewAuditRepository(db.Conn(), zerolog.Nop())
	reportID := int64(42)

	id, err := repo.Insert(AuditRecord{
		Symbol:             "AAPL",
		FetchType:          FetchTypePriceHistorical,
		FetchMode:          FetchModeDailyBatch,
		Source:             "yahoo",
		RowsFetched:        252,
		RowsSaved:          250,
		DurationMS:         1830,
		Success:            true,
		ValidationReportID: &reportID,
		Metadata:           map[string]string{"output_size": "full"},
		FetchedAt:          time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	records, err := repo.RecentForSymbol("AAPL", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, FetchTypePriceHistorical, rec.FetchType)
	assert.Equal(t, FetchModeDailyBatch, rec.FetchMode)
	assert.Equal(t, "yahoo", rec.Source)
	assert.Equal(t, 252, rec.RowsFetched)
	assert.Equal(t, 250, rec.RowsSaved)
	assert.Equal(t, int64(1830), rec.DurationMS)
	assert.True(t, rec.Success)
	assert.Empty(t, rec.Error)
	require.NotNil(t, rec.ValidationReportID)
	assert.Equal(t, int64(42), *rec.ValidationReportID)
	assert.Equal(t, "full", rec.Metadata["output_size"])
	assert.Equal(t, time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC), rec.FetchedAt)
}

func TestAuditRepository_FailureRecord(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	repo := NewAuditRepository(db.Conn(), zerolog.Nop())

	_, err := repo.Insert(AuditRecord{
		Symbol:    "AAPL",
		FetchType: FetchTypePriceHistorical,
		FetchMode: FetchModeOnDemand,
		Success:   false,
		Error:     "all providers failed",
	})
	require.NoError(t, err)

	records, err := repo.RecentForSymbol("AAPL", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.False(t, rec.Success)
	assert.Equal(t, "all providers failed", rec.Error)
	assert.Nil(t, rec.ValidationReportID)
	assert.Nil(t, rec.Metadata)
	assert.False(t, rec.FetchedAt.IsZero(), "zero FetchedAt is stamped on insert")
}

func TestAuditRepository_RecentNewestFirst(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	repo := NewAuditRepository(db.Conn(), zerolog.Nop())
	base := time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := repo.Insert(AuditRecord{
			Symbol:    "AAPL",
			FetchType: FetchTypePriceCurrent,
			FetchMode: FetchModeDailyBatch,
			Success:   true,
			FetchedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	records, err := repo.RecentForSymbol("AAPL", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].FetchedAt.After(records[1].FetchedAt))
	assert.Equal(t, base.Add(2*time.Hour), records[0].FetchedAt)
}
