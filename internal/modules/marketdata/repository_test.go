package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgalanis/conveyor/internal/domain"
	testingpkg "github.com/mgalanis/conveyor/internal/testing"
)

func TestBarRepository_GetRecentBarsAscending(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	writer := NewWriter(db.Conn(), zerolog.Nop())
	repo := NewBarRepository(db.Conn(), zerolog.Nop())

	bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 5)
	_, err := writer.Write(context.Background(), bars, domain.FrequencyDaily, false)
	require.NoError(t, err)

	recent, err := repo.GetRecentBars("AAPL", domain.FrequencyDaily, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	// The window is the newest three bars, returned oldest first.
	assert.Equal(t, bars[2].Date, recent[0].Date)
	assert.Equal(t, bars[4].Date, recent[2].Date)
	assert.True(t, recent[0].Date < recent[1].Date && recent[1].Date < recent[2].Date)
}

func TestBarRepository_GetAllBars(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	writer := NewWriter(db.Conn(), zerolog.Nop())
	repo := NewBarRepository(db.Conn(), zerolog.Nop())

	bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 4)
	_, err := writer.Write(context.Background(), bars, domain.FrequencyDaily, false)
	require.NoError(t, err)

	all, err := repo.GetAllBars("AAPL", domain.FrequencyDaily)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, bars[0].Date, all[0].Date)
	assert.Equal(t, bars[3].Date, all[3].Date)

	require.NotNil(t, all[0].Close)
	assert.InDelta(t, *bars[0].Close, *all[0].Close, 1e-9)
	assert.Equal(t, "test", all[0].Source)
	assert.False(t, all[0].IngestedAt.IsZero(), "writer stamps ingested_at on insert")
}

func TestBarRepository_HasBarAndCount(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	writer := NewWriter(db.Conn(), zerolog.Nop())
	repo := NewBarRepository(db.Conn(), zerolog.Nop())

	bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 2)
	_, err := writer.Write(context.Background(), bars, domain.FrequencyDaily, false)
	require.NoError(t, err)

	has, err := repo.HasBar("AAPL", bars[0].Date, domain.FrequencyDaily)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = repo.HasBar("AAPL", "1999-01-01", domain.FrequencyDaily)
	require.NoError(t, err)
	assert.False(t, has)

	count, err := repo.CountBars("AAPL", domain.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.CountBars("MSFT", domain.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestBarRepository_LatestDate(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	writer := NewWriter(db.Conn(), zerolog.Nop())
	repo := NewBarRepository(db.Conn(), zerolog.Nop())

	latest, err := repo.LatestDate("AAPL", domain.FrequencyDaily)
	require.NoError(t, err)
	assert.Empty(t, latest, "no bars means empty date, not an error")

	bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3)
	_, err = writer.Write(context.Background(), bars, domain.FrequencyDaily, false)
	require.NoError(t, err)

	latest, err = repo.LatestDate("AAPL", domain.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, bars[2].Date, latest)
}

func TestBarRepository_FrequencyIsolation(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	writer := NewWriter(db.Conn(), zerolog.Nop())
	repo := NewBarRepository(db.Conn(), zerolog.Nop())

	daily := []domain.Bar{{
		Symbol: "AAPL", Date: "2024-01-08",
		Close: domain.Float64(170.0), Source: "yahoo",
	}}
	weekly := []domain.Bar{{
		Symbol: "AAPL", Date: "2024-01-08",
		Close: domain.Float64(174.0), Source: "aggregated",
	}}

	_, err := writer.Write(context.Background(), daily, domain.FrequencyDaily, false)
	require.NoError(t, err)
	_, err = writer.Write(context.Background(), weekly, domain.FrequencyWeekly, false)
	require.NoError(t, err)

	dailyBars, err := repo.GetAllBars("AAPL", domain.FrequencyDaily)
	require.NoError(t, err)
	weeklyBars, err := repo.GetAllBars("AAPL", domain.FrequencyWeekly)
	require.NoError(t, err)

	require.Len(t, dailyBars, 1)
	require.Len(t, weeklyBars, 1)
	assert.Equal(t, 170.0, *dailyBars[0].Close)
	assert.Equal(t, 174.0, *weeklyBars[0].Close)
}

func TestBarRepository_GetRecentBarsZeroLimit(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	repo := NewBarRepository(db.Conn(), zerolog.Nop())
	bars, err := repo.GetRecentBars("AAPL", domain.FrequencyDaily, 0)
	require.NoError(t, err)
	assert.Empty(t, bars)
}
