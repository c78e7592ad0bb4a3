package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgalanis/conveyor/internal/domain"
	"github.com/mgalanis/conveyor/internal/modules/marketdata"
	testingpkg "github.com/mgalanis/conveyor/internal/testing"
)

func TestService_AggregateSymbol(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	writer := marketdata.NewWriter(db.Conn(), zerolog.Nop())
	bars := marketdata.NewBarRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	// Two full trading weeks, all in January 2024.
	daily := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 10)
	_, err := writer.Write(ctx, daily, domain.FrequencyDaily, false)
	require.NoError(t, err)

	svc := NewService(bars, writer, zerolog.Nop())
	result, err := svc.AggregateSymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Weekly.Inserted)
	assert.Equal(t, 1, result.Monthly.Inserted)

	weekly, err := bars.GetAllBars("AAPL", domain.FrequencyWeekly)
	require.NoError(t, err)
	require.Len(t, weekly, 2)
	assert.Equal(t, "2024-01-01", weekly[0].Date)
	assert.Equal(t, "2024-01-08", weekly[1].Date)
	assert.InDelta(t, *daily[4].Close, *weekly[0].Close, 1e-9, "week closes on Friday")
	assert.InDelta(t, *daily[9].Close, *weekly[1].Close, 1e-9)

	monthly, err := bars.GetAllBars("AAPL", domain.FrequencyMonthly)
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	assert.Equal(t, "2024-01-01", monthly[0].Date)
	assert.InDelta(t, *daily[9].Close, *monthly[0].Close, 1e-9)
}

func TestService_RerunProducesIdenticalRows(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	writer := marketdata.NewWriter(db.Conn(), zerolog.Nop())
	bars := marketdata.NewBarRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	daily := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 10)
	_, err := writer.Write(ctx, daily, domain.FrequencyDaily, false)
	require.NoError(t, err)

	svc := NewService(bars, writer, zerolog.Nop())
	_, err = svc.AggregateSymbol(ctx, "AAPL")
	require.NoError(t, err)

	firstRun, err := bars.GetAllBars("AAPL", domain.FrequencyWeekly)
	require.NoError(t, err)

	result, err := svc.AggregateSymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Weekly.Inserted)
	assert.Equal(t, 2, result.Weekly.Updated, "forced writes rewrite derived rows in place")

	secondRun, err := bars.GetAllBars("AAPL", domain.FrequencyWeekly)
	require.NoError(t, err)
	require.Len(t, secondRun, len(firstRun))
	for i := range firstRun {
		assert.Equal(t, firstRun[i].Date, secondRun[i].Date)
		assert.InDelta(t, *firstRun[i].Close, *secondRun[i].Close, 1e-9)
		assert.Equal(t, *firstRun[i].Volume, *secondRun[i].Volume)
	}
}

func TestService_NewDayExtendsCurrentWeek(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	writer := marketdata.NewWriter(db.Conn(), zerolog.Nop())
	bars := marketdata.NewBarRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	daily := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 8)
	_, err := writer.Write(ctx, daily[:7], domain.FrequencyDaily, false)
	require.NoError(t, err)

	svc := NewService(bars, writer, zerolog.Nop())
	_, err = svc.AggregateSymbol(ctx, "AAPL")
	require.NoError(t, err)

	weekly, err := bars.GetAllBars("AAPL", domain.FrequencyWeekly)
	require.NoError(t, err)
	require.Len(t, weekly, 2)
	assert.InDelta(t, *daily[6].Close, *weekly[1].Close, 1e-9)

	// Wednesday's bar arrives; the partial week's row must absorb it.
	_, err = writer.Write(ctx, daily[7:], domain.FrequencyDaily, false)
	require.NoError(t, err)
	_, err = svc.AggregateSymbol(ctx, "AAPL")
	require.NoError(t, err)

	weekly, err = bars.GetAllBars("AAPL", domain.FrequencyWeekly)
	require.NoError(t, err)
	require.Len(t, weekly, 2, "same bucket, updated content")
	assert.InDelta(t, *daily[7].Close, *weekly[1].Close, 1e-9)
}

func TestService_NoDailyBars(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	svc := NewService(
		marketdata.NewBarRepository(db.Conn(), zerolog.Nop()),
		marketdata.NewWriter(db.Conn(), zerolog.Nop()),
		zerolog.Nop(),
	)

	_, err := svc.AggregateSymbol(context.Background(), "EMPTY")
	assert.ErrorIs(t, err, domain.ErrNoData)
}
