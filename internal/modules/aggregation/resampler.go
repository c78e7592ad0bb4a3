// Package aggregation resamples daily bars into weekly and monthly
// rows. Buckets carry canonical start dates (the Monday of the week,
// the first of the month) so a backfilled early day changes a bucket's
// content, never its key.
package aggregation

import (
	"time"

	"github.com/mgalanis/conveyor/internal/domain"
)

// ResampleWeekly collapses daily bars into calendar-week rows. A week
// runs Monday through Sunday and is emitted when it holds at least one
// bar. Input must be ascending by date.
func ResampleWeekly(bars []domain.Bar) []domain.Bar {
	return resample(bars, weekStart)
}

// ResampleMonthly collapses daily bars into one row per calendar month.
func ResampleMonthly(bars []domain.Bar) []domain.Bar {
	return resample(bars, monthStart)
}

func weekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func monthStart(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func resample(bars []domain.Bar, bucketStart func(time.Time) time.Time) []domain.Bar {
	var order []string
	buckets := make(map[string][]domain.Bar)

	for _, bar := range bars {
		day, err := domain.ParseDate(bar.Date)
		if err != nil {
			// The validator reports unparseable dates; they cannot be bucketed.
			continue
		}
		key := domain.FormatDate(bucketStart(day))
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], bar)
	}

	out := make([]domain.Bar, 0, len(order))
	for _, key := range order {
		out = append(out, collapse(key, buckets[key]))
	}
	return out
}

// collapse folds one bucket: open from the first day, close from the
// last, extreme high/low, summed volume. Nil columns are skipped rather
// than zeroed; a column with no observations stays nil.
func collapse(date string, group []domain.Bar) domain.Bar {
	agg := domain.Bar{
		Symbol: group[0].Symbol,
		Date:   date,
		Source: group[len(group)-1].Source,
	}

	var volumeSum int64
	haveVolume := false
	for _, bar := range group {
		if agg.Open == nil && bar.Open != nil {
			agg.Open = bar.Open
		}
		if bar.High != nil && (agg.High == nil || *bar.High > *agg.High) {
			agg.High = bar.High
		}
		if bar.Low != nil && (agg.Low == nil || *bar.Low < *agg.Low) {
			agg.Low = bar.Low
		}
		if bar.Close != nil {
			agg.Close = bar.Close
		}
		if bar.Volume != nil {
			volumeSum += *bar.Volume
			haveVolume = true
		}
	}
	if haveVolume {
		agg.Volume = &volumeSum
	}
	return agg
}
