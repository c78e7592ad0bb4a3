package validation

import (
	"fmt"
	"math"

	"github.com/mgalanis/conveyor/internal/domain"
	"github.com/mgalanis/conveyor/pkg/formulas"
)

// MinIndicatorRows is the smallest series the indicator stage can work
// with: the MACD slow EMA plus its signal window. Below this every
// required indicator column stays null.
const MinIndicatorRows = 35

func addIssue(issues []string, format string, args ...interface{}) []string {
	if len(issues) >= maxIssues {
		return issues
	}
	return append(issues, fmt.Sprintf(format, args...))
}

// checkMissingValues flags rows with a null in any OHLCV column.
// Severity escalates to critical above the configured row percentage.
func checkMissingValues(bars []domain.Bar, criticalPct float64) CheckResult {
	result := CheckResult{Name: CheckMissingValues, Severity: SeverityWarning, RowsChecked: len(bars)}

	for _, bar := range bars {
		var nullCols []string
		if bar.Open == nil {
			nullCols = append(nullCols, "open")
		}
		if bar.High == nil {
			nullCols = append(nullCols, "high")
		}
		if bar.Low == nil {
			nullCols = append(nullCols, "low")
		}
		if bar.Close == nil {
			nullCols = append(nullCols, "close")
		}
		if bar.Volume == nil {
			nullCols = append(nullCols, "volume")
		}
		if len(nullCols) > 0 {
			result.RowsFailed++
			result.Issues = addIssue(result.Issues, "%s: null %v", bar.Date, nullCols)
		}
	}

	if len(bars) > 0 && float64(result.RowsFailed)/float64(len(bars))*100 > criticalPct {
		result.Severity = SeverityCritical
	}
	result.Passed = result.RowsFailed == 0
	return result
}

// checkDuplicates flags rows whose date already appeared earlier in the
// batch. Severity escalates to critical above the configured percentage.
func checkDuplicates(bars []domain.Bar, criticalPct float64) CheckResult {
	result := CheckResult{Name: CheckDuplicates, Severity: SeverityWarning, RowsChecked: len(bars)}

	seen := make(map[string]bool, len(bars))
	for _, bar := range bars {
		if seen[bar.Date] {
			result.RowsFailed++
			result.Issues = addIssue(result.Issues, "%s: duplicate date", bar.Date)
			continue
		}
		seen[bar.Date] = true
	}

	if len(bars) > 0 && float64(result.RowsFailed)/float64(len(bars))*100 > criticalPct {
		result.Severity = SeverityCritical
	}
	result.Passed = result.RowsFailed == 0
	return result
}

// checkDataType flags rows whose date does not parse or whose numeric
// columns hold NaN or infinities.
func checkDataType(bars []domain.Bar) CheckResult {
	result := CheckResult{Name: CheckDataType, Severity: SeverityCritical, RowsChecked: len(bars)}

	for _, bar := range bars {
		bad := false
		if _, err := domain.ParseDate(bar.Date); err != nil {
			bad = true
			result.Issues = addIssue(result.Issues, "%s: unparseable date", bar.Date)
		}
		for _, field := range []*float64{bar.Open, bar.High, bar.Low, bar.Close} {
			if field != nil && (math.IsNaN(*field) || math.IsInf(*field, 0)) {
				bad = true
				result.Issues = addIssue(result.Issues, "%s: non-finite price", bar.Date)
				break
			}
		}
		if bad {
			result.RowsFailed++
		}
	}

	result.Passed = result.RowsFailed == 0
	return result
}

// checkRange flags rows violating close > 0, high >= low or volume >= 0.
// Null columns are the missing-values check's concern. Severity
// escalates to critical above the configured row percentage; cleaning
// drops violators in either case.
func checkRange(bars []domain.Bar, criticalPct float64) CheckResult {
	result := CheckResult{Name: CheckRange, Severity: SeverityWarning, RowsChecked: len(bars)}

	for _, bar := range bars {
		if !rangeOK(bar) {
			result.RowsFailed++
			result.Issues = addIssue(result.Issues, "%s: range violation", bar.Date)
		}
	}

	if len(bars) > 0 && float64(result.RowsFailed)/float64(len(bars))*100 > criticalPct {
		result.Severity = SeverityCritical
	}
	result.Passed = result.RowsFailed == 0
	return result
}

func rangeOK(bar domain.Bar) bool {
	if bar.Close != nil && *bar.Close <= 0 {
		return false
	}
	if bar.High != nil && bar.Low != nil && *bar.High < *bar.Low {
		return false
	}
	if bar.Volume != nil && *bar.Volume < 0 {
		return false
	}
	return true
}

// checkOutliers flags closes outside the IQR fences. Series too short
// for quartiles pass trivially.
func checkOutliers(bars []domain.Bar, iqrMult float64) CheckResult {
	result := CheckResult{Name: CheckOutlier, Severity: SeverityWarning, RowsChecked: len(bars)}

	closes := make([]float64, 0, len(bars))
	for _, bar := range bars {
		if bar.Close != nil {
			closes = append(closes, *bar.Close)
		}
	}
	if len(closes) < 4 {
		result.Passed = true
		return result
	}

	lower, upper := formulas.IQRBounds(closes, iqrMult)
	for _, bar := range bars {
		if bar.Close == nil {
			continue
		}
		if *bar.Close < lower || *bar.Close > upper {
			result.RowsFailed++
			result.Issues = addIssue(result.Issues, "%s: close %.4f outside [%.4f, %.4f]", bar.Date, *bar.Close, lower, upper)
		}
	}

	result.Passed = result.RowsFailed == 0
	return result
}

// checkContinuity flags gaps between consecutive dates longer than the
// configured calendar-day span. Unparseable dates are skipped here; the
// data-type check reports them.
func checkContinuity(bars []domain.Bar, maxGapDays int) CheckResult {
	result := CheckResult{Name: CheckContinuity, Severity: SeverityWarning, RowsChecked: len(bars)}

	var prevDate string
	for _, bar := range bars {
		cur, err := domain.ParseDate(bar.Date)
		if err != nil {
			continue
		}
		if prevDate != "" {
			prev, err := domain.ParseDate(prevDate)
			if err == nil {
				gap := int(cur.Sub(prev).Hours() / 24)
				if gap > maxGapDays {
					result.RowsFailed++
					result.Issues = addIssue(result.Issues, "%s → %s: %d day gap", prevDate, bar.Date, gap)
				}
			}
		}
		prevDate = bar.Date
	}

	result.Passed = result.RowsFailed == 0
	return result
}

// checkVolume flags the series when zero-volume days exceed the
// configured percentage of rows. RowsFailed always carries the
// zero-volume day count.
func checkVolume(bars []domain.Bar, zeroPct float64) CheckResult {
	result := CheckResult{Name: CheckVolume, Severity: SeverityWarning, RowsChecked: len(bars)}

	for _, bar := range bars {
		if bar.Volume != nil && *bar.Volume == 0 {
			result.RowsFailed++
			result.Issues = addIssue(result.Issues, "%s: zero volume", bar.Date)
		}
	}

	result.Passed = true
	if len(bars) > 0 && float64(result.RowsFailed)/float64(len(bars))*100 > zeroPct {
		result.Passed = false
	}
	return result
}

// checkIndicatorData flags series too short to feed the indicator
// engine. Long-window indicators like SMA200 are allowed to stay null;
// this check only guards the minimum tail the short-window set needs.
func checkIndicatorData(bars []domain.Bar) CheckResult {
	result := CheckResult{Name: CheckIndicatorData, Severity: SeverityCritical, RowsChecked: len(bars)}

	usable := 0
	for _, bar := range bars {
		if bar.Close != nil {
			usable++
		}
	}

	if usable < MinIndicatorRows {
		result.RowsFailed = len(bars)
		result.Issues = addIssue(result.Issues,
			"%d usable closes, need %d for the indicator tail", usable, MinIndicatorRows)
		result.Passed = false
		return result
	}

	result.Passed = true
	return result
}
