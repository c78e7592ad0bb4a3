// Package validation runs data-quality checks over fetched bars and
// produces persisted validation reports. Reports drive the ingestion
// and signal-readiness gates.
package validation

import "time"

// Check names, stable across config and stored reports.
const (
	CheckMissingValues = "missing_values"
	CheckDuplicates    = "duplicates"
	CheckDataType      = "data_type"
	CheckRange         = "range"
	CheckOutlier       = "outlier"
	CheckContinuity    = "continuity"
	CheckVolume        = "volume"
	CheckIndicatorData = "indicator_data"
)

// Check severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Report statuses.
const (
	StatusPass    = "pass"
	StatusWarning = "warning"
	StatusFail    = "fail"
)

// Data types a report can cover.
const (
	DataTypePriceHistorical = "price_historical"
	DataTypePriceCurrent    = "price_current"
)

// maxIssues caps the issue list per check. RowsFailed stays exact.
const maxIssues = 10

// CheckResult is the outcome of a single quality check.
type CheckResult struct {
	Name        string   `json:"name"`
	Passed      bool     `json:"passed"`
	Severity    string   `json:"severity"`
	RowsChecked int      `json:"rows_checked"`
	RowsFailed  int      `json:"rows_failed"`
	Issues      []string `json:"issues,omitempty"`
}

// Report aggregates the check results for one validation run.
type Report struct {
	ID             int64         `json:"id,omitempty"`
	Symbol         string        `json:"symbol"`
	DataType       string        `json:"data_type"`
	Timestamp      time.Time     `json:"timestamp"`
	OverallStatus  string        `json:"overall_status"`
	CriticalIssues int           `json:"critical_issues"`
	WarningIssues  int           `json:"warning_issues"`
	RowsDropped    int           `json:"rows_dropped"`
	TotalRows      int           `json:"total_rows"`
	Results        []CheckResult `json:"results,omitempty"`
}

// QualityScore derives a 0..1 score from a report: each failed critical
// check costs 0.35, each failed warning check 0.05, floored at 0. The
// signal-readiness gate compares this against its per-signal threshold.
func QualityScore(report *Report) float64 {
	if report == nil {
		return 0
	}
	score := 1.0 - 0.35*float64(report.CriticalIssues) - 0.05*float64(report.WarningIssues)
	if score < 0 {
		return 0
	}
	return score
}
