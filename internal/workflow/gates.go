package workflow

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/domain"
	"github.com/mgalanis/conveyor/internal/modules/indicators"
	"github.com/mgalanis/conveyor/internal/modules/marketdata"
	"github.com/mgalanis/conveyor/internal/modules/validation"
)

// Gate names as persisted in workflow_gate_results. The readiness gate
// appends the signal type, e.g. "signal_readiness:swing_trend".
const (
	GateIngestion       = "ingestion"
	GateIndicator       = "indicator"
	GateSignalReadiness = "signal_readiness"
)

// Recommended actions on gate failure. The orchestrator maps these to
// retries, skips or a workflow abort.
const (
	ActionRetry          = "RETRY"
	ActionFixDataQuality = "FIX_DATA_QUALITY"
	ActionRecompute      = "RECOMPUTE"
	ActionSkip           = "SKIP"
)

// Readiness verdicts.
const (
	VerdictReady    = "ready"
	VerdictPartial  = "partial"
	VerdictNotReady = "not_ready"
)

// SignalType identifies a downstream signal family with its own
// indicator requirements.
type SignalType string

const (
	SignalSwingTrend SignalType = "swing_trend"
	SignalTechnical  SignalType = "technical"
	SignalHybridLLM  SignalType = "hybrid_llm"
)

// SignalTypes lists every signal family the readiness stage evaluates.
var SignalTypes = []SignalType{SignalSwingTrend, SignalTechnical, SignalHybridLLM}

// GateResult is a gate's report on one symbol. Gates never fail a
// symbol through the error return; a rejected symbol comes back as
// Passed=false with a recommended action, and the error return is
// reserved for storage faults.
type GateResult struct {
	Gate         string
	Passed       bool
	Reason       string
	Action       string
	QualityScore *float64
	Verdict      string
}

// readinessProfile is the per-signal requirement set: the indicator
// columns that must be non-null on the latest row, the minimum number
// of indicator rows, and the minimum validation quality score.
type readinessProfile struct {
	indicators []string
	minRows    int
	minScore   float64
}

var readinessProfiles = map[SignalType]readinessProfile{
	SignalSwingTrend: {
		indicators: []string{"ema_9", "ema_21", "sma_50", "rsi_14", "macd", "atr_14"},
		minRows:    50,
		minScore:   0.8,
	},
	SignalTechnical: {
		indicators: []string{"ema_20", "sma_50", "sma_200", "rsi_14", "macd"},
		minRows:    200,
		minScore:   0.7,
	},
	SignalHybridLLM: {
		indicators: []string{"ema_20", "sma_50", "sma_200", "rsi_14", "macd"},
		minRows:    200,
		minScore:   0.7,
	},
}

// Gates inspects persisted state between stages. All three gates read
// only what earlier stages stored; none of them calls a provider.
type Gates struct {
	bars       *marketdata.BarRepository
	reports    *validation.ReportRepository
	indicators *indicators.Repository
	results    *GateResultRepository
	log        zerolog.Logger
}

// NewGates creates the gate set over the market-data repositories.
func NewGates(bars *marketdata.BarRepository, reports *validation.ReportRepository,
	indicatorRepo *indicators.Repository, results *GateResultRepository, log zerolog.Logger) *Gates {
	return &Gates{
		bars:       bars,
		reports:    reports,
		indicators: indicatorRepo,
		results:    results,
		log:        log.With().Str("component", "workflow_gates").Logger(),
	}
}

// CheckIngestion admits a symbol past the ingestion stage when a daily
// bar exists for the date and the latest validation report did not
// fail outright. A missing bar is worth a retry; a failed report needs
// operator attention before anything downstream may run.
func (g *Gates) CheckIngestion(workflowID, symbol, date string) (*GateResult, error) {
	result := &GateResult{Gate: GateIngestion, Passed: true}

	if date == "" {
		result.Passed = false
		result.Reason = "no daily bars stored"
		result.Action = ActionRetry
		g.persist(workflowID, symbol, StageIngestion, result)
		return result, nil
	}

	hasBar, err := g.bars.HasBar(symbol, date, domain.FrequencyDaily)
	if err != nil {
		return nil, fmt.Errorf("ingestion gate failed to check bars for %s: %w", symbol, err)
	}
	if !hasBar {
		result.Passed = false
		result.Reason = fmt.Sprintf("no daily bar stored for %s", date)
		result.Action = ActionRetry
		g.persist(workflowID, symbol, StageIngestion, result)
		return result, nil
	}

	report, err := g.reports.LatestForSymbol(symbol, validation.DataTypePriceHistorical)
	if err != nil {
		return nil, fmt.Errorf("ingestion gate failed to load report for %s: %w", symbol, err)
	}
	if report == nil {
		result.Passed = false
		result.Reason = "no validation report on record"
		result.Action = ActionRetry
		g.persist(workflowID, symbol, StageIngestion, result)
		return result, nil
	}

	score := validation.QualityScore(report)
	result.QualityScore = &score
	if report.OverallStatus == validation.StatusFail {
		result.Passed = false
		result.Reason = fmt.Sprintf("latest validation report failed with %d critical issues", report.CriticalIssues)
		result.Action = ActionFixDataQuality
	}

	g.persist(workflowID, symbol, StageIngestion, result)
	return result, nil
}

// CheckIndicators admits a symbol past the indicator stage when a row
// exists for the date and the always-required columns (EMA9, SMA200,
// RSI14) are populated. A missing row means the computation did not
// run and is worth recomputing; null columns mean the history is still
// inside a warm-up window, which recomputing cannot fix.
func (g *Gates) CheckIndicators(workflowID, symbol, date string) (*GateResult, error) {
	result := &GateResult{Gate: GateIndicator, Passed: true}

	if date == "" {
		result.Passed = false
		result.Reason = "no indicator rows stored"
		result.Action = ActionRecompute
		g.persist(workflowID, symbol, StageIndicators, result)
		return result, nil
	}

	row, err := g.indicators.GetRow(symbol, date)
	if err != nil {
		return nil, fmt.Errorf("indicator gate failed to load row for %s: %w", symbol, err)
	}
	if row == nil {
		result.Passed = false
		result.Reason = fmt.Sprintf("no indicator row for %s", date)
		result.Action = ActionRecompute
		g.persist(workflowID, symbol, StageIndicators, result)
		return result, nil
	}

	var missing []string
	if row.EMA9 == nil {
		missing = append(missing, "ema_9")
	}
	if row.SMA200 == nil {
		missing = append(missing, "sma_200")
	}
	if row.RSI14 == nil {
		missing = append(missing, "rsi_14")
	}
	if len(missing) > 0 {
		result.Passed = false
		result.Reason = fmt.Sprintf("required indicators still warming up: %s", strings.Join(missing, ", "))
		result.Action = ActionSkip
	}

	g.persist(workflowID, symbol, StageIndicators, result)
	return result, nil
}

// CheckSignalReadiness evaluates whether one signal family may consume
// the symbol. The verdict is ready when the full indicator set is
// populated over enough history with an acceptable quality score,
// partial when exactly one of those is slightly short, and not_ready
// otherwise. Only a quality-score breach escalates beyond a skip.
func (g *Gates) CheckSignalReadiness(workflowID, symbol string, signal SignalType) (*GateResult, error) {
	profile, ok := readinessProfiles[signal]
	if !ok {
		return nil, fmt.Errorf("unknown signal type %q", signal)
	}

	result := &GateResult{Gate: GateSignalReadiness + ":" + string(signal)}

	report, err := g.reports.LatestForSymbol(symbol, validation.DataTypePriceHistorical)
	if err != nil {
		return nil, fmt.Errorf("readiness gate failed to load report for %s: %w", symbol, err)
	}
	score := validation.QualityScore(report)
	result.QualityScore = &score

	rowCount, err := g.indicators.CountRows(symbol)
	if err != nil {
		return nil, fmt.Errorf("readiness gate failed to count rows for %s: %w", symbol, err)
	}

	var missing []string
	latestDate, err := g.indicators.LatestDate(symbol)
	if err != nil {
		return nil, fmt.Errorf("readiness gate failed to find latest row for %s: %w", symbol, err)
	}
	if latestDate == "" {
		missing = append(missing, profile.indicators...)
	} else {
		row, err := g.indicators.GetRow(symbol, latestDate)
		if err != nil {
			return nil, fmt.Errorf("readiness gate failed to load row for %s: %w", symbol, err)
		}
		for _, name := range profile.indicators {
			if indicatorValue(row, name) == nil {
				missing = append(missing, name)
			}
		}
	}

	var reasons []string
	if score < profile.minScore {
		reasons = append(reasons, fmt.Sprintf("quality score %.2f below %.2f threshold", score, profile.minScore))
	}
	if rowCount < profile.minRows {
		reasons = append(reasons, fmt.Sprintf("%d indicator rows stored, %d required", rowCount, profile.minRows))
	}
	if len(missing) > 0 {
		reasons = append(reasons, fmt.Sprintf("indicators missing on latest row: %s", strings.Join(missing, ", ")))
	}

	switch {
	case score < profile.minScore:
		result.Verdict = VerdictNotReady
		result.Action = ActionFixDataQuality
	case len(missing) > 1 || (len(missing) == 1 && rowCount < profile.minRows):
		result.Verdict = VerdictNotReady
		result.Action = ActionSkip
	case len(missing) == 1 || rowCount < profile.minRows:
		result.Verdict = VerdictPartial
		result.Action = ActionSkip
	default:
		result.Verdict = VerdictReady
		result.Passed = true
	}
	result.Reason = strings.Join(reasons, "; ")

	g.persist(workflowID, symbol, StageSignalReadiness, result)
	return result, nil
}

// persist records the gate outcome in the audit trail. A write failure
// is logged but never blocks the pipeline decision.
func (g *Gates) persist(workflowID, symbol string, stage Stage, result *GateResult) {
	if g.results == nil {
		return
	}
	if err := g.results.Insert(workflowID, symbol, stage, *result); err != nil {
		g.log.Warn().
			Err(err).
			Str("workflow_id", workflowID).
			Str("symbol", symbol).
			Str("gate", result.Gate).
			Msg("Failed to persist gate result")
	}
}

// indicatorValue maps a profile column name to the row field.
func indicatorValue(row *indicators.Row, name string) *float64 {
	if row == nil {
		return nil
	}
	switch name {
	case "sma_50":
		return row.SMA50
	case "sma_100":
		return row.SMA100
	case "sma_200":
		return row.SMA200
	case "ema_9":
		return row.EMA9
	case "ema_12":
		return row.EMA12
	case "ema_20":
		return row.EMA20
	case "ema_21":
		return row.EMA21
	case "ema_26":
		return row.EMA26
	case "ema_50":
		return row.EMA50
	case "rsi_14":
		return row.RSI14
	case "macd":
		return row.MACD
	case "macd_signal":
		return row.MACDSignal
	case "atr_14":
		return row.ATR14
	default:
		return nil
	}
}
