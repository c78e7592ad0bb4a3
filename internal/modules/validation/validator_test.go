package validation

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgalanis/conveyor/internal/config"
	"github.com/mgalanis/conveyor/internal/domain"
	testingpkg "github.com/mgalanis/conveyor/internal/testing"
)

func newTestValidator() *Validator {
	return NewValidator(config.DefaultThresholds().Validation, zerolog.Nop())
}

func findCheck(t *testing.T, report Report, name string) CheckResult {
	t.Helper()
	for _, result := range report.Results {
		if result.Name == name {
			return result
		}
	}
	t.Fatalf("check %s not found in report", name)
	return CheckResult{}
}

func TestValidate_CleanSeriesPasses(t *testing.T) {
	v := newTestValidator()
	bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 252)

	report := v.Validate("AAPL", DataTypePriceHistorical, bars)

	assert.Equal(t, StatusPass, report.OverallStatus)
	assert.Equal(t, 0, report.CriticalIssues)
	assert.Equal(t, 0, report.WarningIssues)
	assert.Equal(t, 252, report.TotalRows)
	require.Len(t, report.Results, 8)
	for _, result := range report.Results {
		assert.True(t, result.Passed, "check %s should pass on clean data", result.Name)
	}
}

func TestValidate_SingleNullCloseIsWarning(t *testing.T) {
	v := newTestValidator()
	bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 250)
	bars[125].Close = nil

	report := v.Validate("AAPL", DataTypePriceHistorical, bars)

	assert.Equal(t, StatusWarning, report.OverallStatus)
	assert.Equal(t, 0, report.CriticalIssues)
	assert.Equal(t, 1, report.WarningIssues)

	missing := findCheck(t, report, CheckMissingValues)
	assert.False(t, missing.Passed)
	assert.Equal(t, SeverityWarning, missing.Severity, "0.4% nulls stays below the critical threshold")
	assert.Equal(t, 1, missing.RowsFailed)
}

func TestValidate_ManyNullsEscalateToCritical(t *testing.T) {
	v := newTestValidator()
	bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 100)
	for i := 0; i < 15; i++ {
		bars[i].Volume = nil
	}

	report := v.Validate("AAPL", DataTypePriceHistorical, bars)

	missing := findCheck(t, report, CheckMissingValues)
	assert.False(t, missing.Passed)
	assert.Equal(t, SeverityCritical, missing.Severity)
	assert.Equal(t, StatusFail, report.OverallStatus)
}

func TestValidate_DuplicateDates(t *testing.T) {
	v := newTestValidator()
	bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 100)
	bars[50].Date = bars[49].Date

	report := v.Validate("AAPL", DataTypePriceHistorical, bars)

	dup := findCheck(t, report, CheckDuplicates)
	assert.False(t, dup.Passed)
	assert.Equal(t, 1, dup.RowsFailed)
	assert.Equal(t, SeverityWarning, dup.Severity, "1% duplicates stays below the critical threshold")
}

func TestValidate_RangeViolations(t *testing.T) {
	t.Run("single corrupt row is a warning", func(t *testing.T) {
		v := newTestValidator()
		bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 252)
		bars[100].Close = domain.Float64(-5.0)

		report := v.Validate("AAPL", DataTypePriceHistorical, bars)

		rangeCheck := findCheck(t, report, CheckRange)
		assert.False(t, rangeCheck.Passed)
		assert.Equal(t, 1, rangeCheck.RowsFailed)
		assert.Equal(t, SeverityWarning, rangeCheck.Severity)
		assert.Equal(t, StatusWarning, report.OverallStatus)
	})

	t.Run("widespread corruption fails the report", func(t *testing.T) {
		v := newTestValidator()
		bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 40)
		for i := 0; i < 4; i++ {
			high := *bars[i].Low - 1.0
			bars[i].High = domain.Float64(high)
		}

		report := v.Validate("AAPL", DataTypePriceHistorical, bars)

		rangeCheck := findCheck(t, report, CheckRange)
		assert.False(t, rangeCheck.Passed)
		assert.Equal(t, SeverityCritical, rangeCheck.Severity, "10% violations exceeds the critical threshold")
		assert.Equal(t, StatusFail, report.OverallStatus)
	})
}

func TestValidate_DataTypeCheck(t *testing.T) {
	v := newTestValidator()
	bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 50)
	bars[10].Date = "not-a-date"

	report := v.Validate("AAPL", DataTypePriceHistorical, bars)

	dataType := findCheck(t, report, CheckDataType)
	assert.False(t, dataType.Passed)
	assert.Equal(t, SeverityCritical, dataType.Severity)
	assert.Equal(t, StatusFail, report.OverallStatus)
}

func TestValidate_OutlierCheck(t *testing.T) {
	v := newTestValidator()
	bars := testingpkg.NewFlatBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 60, 100.0)
	bars[30].Close = domain.Float64(1000.0)

	report := v.Validate("AAPL", DataTypePriceHistorical, bars)

	outlier := findCheck(t, report, CheckOutlier)
	assert.False(t, outlier.Passed)
	assert.Equal(t, SeverityWarning, outlier.Severity)
	assert.Equal(t, 1, outlier.RowsFailed)
}

func TestValidate_ContinuityCheck(t *testing.T) {
	v := newTestValidator()
	bars := []domain.Bar{
		{Symbol: "AAPL", Date: "2024-01-02", Close: domain.Float64(100), Open: domain.Float64(100), High: domain.Float64(101), Low: domain.Float64(99), Volume: domain.Int64(1000)},
		{Symbol: "AAPL", Date: "2024-01-03", Close: domain.Float64(100), Open: domain.Float64(100), High: domain.Float64(101), Low: domain.Float64(99), Volume: domain.Int64(1000)},
		// 12 calendar days later.
		{Symbol: "AAPL", Date: "2024-01-15", Close: domain.Float64(100), Open: domain.Float64(100), High: domain.Float64(101), Low: domain.Float64(99), Volume: domain.Int64(1000)},
	}

	report := v.Validate("AAPL", DataTypePriceHistorical, bars)

	continuity := findCheck(t, report, CheckContinuity)
	assert.False(t, continuity.Passed)
	assert.Equal(t, 1, continuity.RowsFailed)
	assert.Contains(t, continuity.Issues[0], "12 day gap")
}

func TestValidate_VolumeCheck(t *testing.T) {
	t.Run("few zero-volume days pass", func(t *testing.T) {
		v := newTestValidator()
		bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 50)
		bars[0].Volume = domain.Int64(0)

		report := v.Validate("AAPL", DataTypePriceHistorical, bars)

		volume := findCheck(t, report, CheckVolume)
		assert.True(t, volume.Passed)
		assert.Equal(t, 1, volume.RowsFailed, "zero-volume count stays exact even when passing")
	})

	t.Run("too many zero-volume days fail", func(t *testing.T) {
		v := newTestValidator()
		bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 50)
		for i := 0; i < 15; i++ {
			bars[i].Volume = domain.Int64(0)
		}

		report := v.Validate("AAPL", DataTypePriceHistorical, bars)

		volume := findCheck(t, report, CheckVolume)
		assert.False(t, volume.Passed)
		assert.Equal(t, 15, volume.RowsFailed)
	})
}

func TestValidate_IndicatorDataCheck(t *testing.T) {
	t.Run("short series fails", func(t *testing.T) {
		v := newTestValidator()
		bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 20)

		report := v.Validate("AAPL", DataTypePriceHistorical, bars)

		indicator := findCheck(t, report, CheckIndicatorData)
		assert.False(t, indicator.Passed)
		assert.Equal(t, SeverityCritical, indicator.Severity)
		assert.Equal(t, StatusFail, report.OverallStatus)
	})

	t.Run("199 bars are enough for the short-window set", func(t *testing.T) {
		v := newTestValidator()
		bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 199)

		report := v.Validate("AAPL", DataTypePriceHistorical, bars)

		indicator := findCheck(t, report, CheckIndicatorData)
		assert.True(t, indicator.Passed, "long-window nulls are the gate's concern, not validation's")
		assert.Equal(t, StatusPass, report.OverallStatus)
	})
}

func TestValidateAndClean(t *testing.T) {
	v := newTestValidator()
	bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 50)
	bars[10].Close = nil                  // null critical column
	bars[20].Date = bars[19].Date         // duplicate date
	bars[30].Close = domain.Float64(-5.0) // range violation

	cleaned, report := v.ValidateAndClean("AAPL", DataTypePriceHistorical, bars)

	assert.Len(t, cleaned, 47)
	assert.Equal(t, 3, report.RowsDropped)
	for _, bar := range cleaned {
		require.NotNil(t, bar.Close)
		assert.Greater(t, *bar.Close, 0.0)
	}

	// Keep-first on duplicates: the earlier row's values survive.
	var kept *domain.Bar
	for i := range cleaned {
		if cleaned[i].Date == bars[19].Date {
			require.Nil(t, kept, "exactly one row per date after cleaning")
			kept = &cleaned[i]
		}
	}
	require.NotNil(t, kept)
	assert.Equal(t, *bars[19].Close, *kept.Close)
}

func TestValidateAndClean_NoDropsOnCleanData(t *testing.T) {
	v := newTestValidator()
	bars := testingpkg.NewDailyBars("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 50)

	cleaned, report := v.ValidateAndClean("AAPL", DataTypePriceHistorical, bars)

	assert.Len(t, cleaned, 50)
	assert.Equal(t, 0, report.RowsDropped)
}

func TestQualityScore(t *testing.T) {
	tests := []struct {
		name     string
		report   *Report
		expected float64
	}{
		{"nil report", nil, 0},
		{"clean", &Report{}, 1.0},
		{"one warning", &Report{WarningIssues: 1}, 0.95},
		{"one critical", &Report{CriticalIssues: 1}, 0.65},
		{"critical and warning", &Report{CriticalIssues: 1, WarningIssues: 1}, 0.6},
		{"clamped at zero", &Report{CriticalIssues: 3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, QualityScore(tt.report), 1e-9)
		})
	}
}

func TestValidate_EmptyInput(t *testing.T) {
	v := newTestValidator()
	report := v.Validate("AAPL", DataTypePriceHistorical, nil)

	assert.Equal(t, 0, report.TotalRows)
	indicator := findCheck(t, report, CheckIndicatorData)
	assert.False(t, indicator.Passed, "an empty series cannot feed indicators")
	assert.Equal(t, StatusFail, report.OverallStatus)
}
