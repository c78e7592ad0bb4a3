package validation

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/config"
	"github.com/mgalanis/conveyor/internal/domain"
)

// Validator runs the full check catalogue over a batch of bars.
type Validator struct {
	thresholds config.ValidationThresholds
	log        zerolog.Logger
}

// NewValidator creates a validator with the given thresholds.
func NewValidator(thresholds config.ValidationThresholds, log zerolog.Logger) *Validator {
	return &Validator{
		thresholds: thresholds,
		log:        log.With().Str("component", "validator").Logger(),
	}
}

// Validate runs every check and aggregates the results into a report.
// The overall status is fail when any critical check failed, warning
// when any warning check failed, pass otherwise.
func (v *Validator) Validate(symbol, dataType string, bars []domain.Bar) Report {
	report := Report{
		Symbol:    symbol,
		DataType:  dataType,
		Timestamp: time.Now().UTC(),
		TotalRows: len(bars),
	}

	report.Results = []CheckResult{
		checkMissingValues(bars, v.thresholds.MissingCriticalPct),
		checkDuplicates(bars, v.thresholds.DuplicateCriticalPct),
		checkDataType(bars),
		checkRange(bars, v.thresholds.RangeCriticalPct),
		checkOutliers(bars, v.thresholds.OutlierIQRMultiplier),
		checkContinuity(bars, v.thresholds.MaxGapDays),
		checkVolume(bars, v.thresholds.ZeroVolumePct),
		checkIndicatorData(bars),
	}

	for _, result := range report.Results {
		if result.Passed {
			continue
		}
		switch result.Severity {
		case SeverityCritical:
			report.CriticalIssues++
		case SeverityWarning:
			report.WarningIssues++
		}
	}

	switch {
	case report.CriticalIssues > 0:
		report.OverallStatus = StatusFail
	case report.WarningIssues > 0:
		report.OverallStatus = StatusWarning
	default:
		report.OverallStatus = StatusPass
	}

	v.log.Debug().
		Str("symbol", symbol).
		Str("data_type", dataType).
		Str("status", report.OverallStatus).
		Int("critical", report.CriticalIssues).
		Int("warnings", report.WarningIssues).
		Msg("Validated batch")

	return report
}

// ValidateAndClean validates, then drops rows with a null close,
// duplicate dates (first surviving occurrence wins) and range
// violations. The report's RowsDropped reflects the drops.
func (v *Validator) ValidateAndClean(symbol, dataType string, bars []domain.Bar) ([]domain.Bar, Report) {
	report := v.Validate(symbol, dataType, bars)

	cleaned := make([]domain.Bar, 0, len(bars))
	seen := make(map[string]bool, len(bars))
	for _, bar := range bars {
		if bar.Close == nil || seen[bar.Date] || !rangeOK(bar) {
			report.RowsDropped++
			continue
		}
		seen[bar.Date] = true
		cleaned = append(cleaned, bar)
	}

	if report.RowsDropped > 0 {
		v.log.Info().
			Str("symbol", symbol).
			Int("rows_dropped", report.RowsDropped).
			Int("rows_kept", len(cleaned)).
			Msg("Dropped rows during cleaning")
	}

	return cleaned, report
}
