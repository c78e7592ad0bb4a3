package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds holds tunable data-quality and indicator parameters.
// Values ship with working defaults; a YAML file can override them.
type Thresholds struct {
	Validation ValidationThresholds `yaml:"validation"`
	Indicators IndicatorThresholds  `yaml:"indicators"`
}

// ValidationThresholds controls when quality checks escalate to critical
type ValidationThresholds struct {
	// MissingCriticalPct escalates missing OHLCV values from warning to
	// critical once the affected row percentage exceeds it.
	MissingCriticalPct float64 `yaml:"missing_critical_pct"`
	// DuplicateCriticalPct escalates duplicate dates to critical.
	DuplicateCriticalPct float64 `yaml:"duplicate_critical_pct"`
	// RangeCriticalPct escalates range violations (negative close,
	// high < low, negative volume) to critical. Violating rows are
	// dropped during cleaning either way.
	RangeCriticalPct float64 `yaml:"range_critical_pct"`
	// OutlierIQRMultiplier sets the fence width for price outliers.
	OutlierIQRMultiplier float64 `yaml:"outlier_iqr_multiplier"`
	// MaxGapDays flags calendar gaps longer than this many days.
	MaxGapDays int `yaml:"max_gap_days"`
	// ZeroVolumePct flags series with more zero-volume rows than this.
	ZeroVolumePct float64 `yaml:"zero_volume_pct"`
}

// IndicatorThresholds controls derived-flag parameters
type IndicatorThresholds struct {
	// VolumeSpikeMultiplier marks a bar as a volume spike when volume
	// exceeds this multiple of the 20-day average.
	VolumeSpikeMultiplier float64 `yaml:"volume_spike_multiplier"`
}

// DefaultThresholds returns the built-in threshold set
func DefaultThresholds() *Thresholds {
	return &Thresholds{
		Validation: ValidationThresholds{
			MissingCriticalPct:   10.0,
			DuplicateCriticalPct: 5.0,
			RangeCriticalPct:     5.0,
			OutlierIQRMultiplier: 3.0,
			MaxGapDays:           7,
			ZeroVolumePct:        20.0,
		},
		Indicators: IndicatorThresholds{
			VolumeSpikeMultiplier: 1.5,
		},
	}
}

// LoadThresholds returns the defaults, overlaid with values from the given
// YAML file when a path is provided. A missing path is not an error; a
// present but unreadable or invalid file is.
func LoadThresholds(path string) (*Thresholds, error) {
	thresholds := DefaultThresholds()
	if path == "" {
		return thresholds, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read thresholds file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, thresholds); err != nil {
		return nil, fmt.Errorf("failed to parse thresholds file %s: %w", path, err)
	}
	return thresholds, nil
}
