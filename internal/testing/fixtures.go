package testing

import (
	"time"

	"github.com/mgalanis/conveyor/internal/domain"
)

// NewDailyBars returns `count` consecutive complete daily bars for `symbol`
// starting at `start`, skipping weekends. Prices follow a gentle uptrend so
// indicator warm-up windows produce defined values.
func NewDailyBars(symbol string, start time.Time, count int) []domain.Bar {
	bars := make([]domain.Bar, 0, count)
	day := start.UTC()
	price := 100.0

	for len(bars) < count {
		for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, 1)
		}

		open := price
		high := price * 1.01
		low := price * 0.99
		closePrice := price * 1.002
		volume := int64(1_000_000 + len(bars)*10_000)

		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Date:   domain.FormatDate(day),
			Open:   domain.Float64(open),
			High:   domain.Float64(high),
			Low:    domain.Float64(low),
			Close:  domain.Float64(closePrice),
			Volume: domain.Int64(volume),
			Source: "test",
		})

		price = closePrice
		day = day.AddDate(0, 0, 1)
	}

	return bars
}

// NewFlatBars returns bars with identical OHLC prices, useful when a test
// needs deterministic indicator values.
func NewFlatBars(symbol string, start time.Time, count int, price float64) []domain.Bar {
	bars := make([]domain.Bar, 0, count)
	day := start.UTC()

	for len(bars) < count {
		for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, 1)
		}

		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Date:   domain.FormatDate(day),
			Open:   domain.Float64(price),
			High:   domain.Float64(price),
			Low:    domain.Float64(price),
			Close:  domain.Float64(price),
			Volume: domain.Int64(1_000_000),
			Source: "test",
		})

		day = day.AddDate(0, 0, 1)
	}

	return bars
}

// NewQuarterlyIncomeStatements returns `count` quarterly income statements
// walking backwards from `latestFiscalDate`, with revenue shrinking by 5%
// per older quarter so growth math has a known direction.
func NewQuarterlyIncomeStatements(symbol string, latestFiscalDate time.Time, count int) []domain.IncomeStatement {
	statements := make([]domain.IncomeStatement, 0, count)
	fiscal := latestFiscalDate.UTC()
	revenue := 1_000_000.0
	income := 100_000.0

	for i := 0; i < count; i++ {
		statements = append(statements, domain.IncomeStatement{
			Symbol:           symbol,
			FiscalDateEnding: domain.FormatDate(fiscal),
			Period:           domain.PeriodQuarterly,
			Currency:         "USD",
			TotalRevenue:     domain.Float64(revenue),
			NetIncome:        domain.Float64(income),
		})
		fiscal = fiscal.AddDate(0, -3, 0)
		revenue *= 0.95
		income *= 0.95
	}

	return statements
}
