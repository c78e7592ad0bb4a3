// Package indicators computes technical indicator rows from daily bars
// and persists them to aggregated_indicators. Derived flags live on the
// same row as the values they summarize; tri-state flags stay nil when
// an input column is still inside its warm-up window.
package indicators

import "time"

// RSI zone labels, ordered from weakest to strongest momentum.
const (
	ZoneOversold   = "oversold"
	ZoneWeak       = "weak"
	ZoneHealthy    = "healthy"
	ZoneNeutral    = "neutral"
	ZoneOverbought = "overbought"
)

// Row is one computed indicator row for (symbol, date). Value columns are
// nil inside their warm-up window; flag columns are nil whenever either
// side of their comparison is.
type Row struct {
	Symbol string `json:"symbol"`
	Date   string `json:"date"`

	SMA50  *float64 `json:"sma_50"`
	SMA100 *float64 `json:"sma_100"`
	SMA200 *float64 `json:"sma_200"`

	EMA9  *float64 `json:"ema_9"`
	EMA12 *float64 `json:"ema_12"`
	EMA20 *float64 `json:"ema_20"`
	EMA21 *float64 `json:"ema_21"`
	EMA26 *float64 `json:"ema_26"`
	EMA50 *float64 `json:"ema_50"`

	RSI14 *float64 `json:"rsi_14"`

	MACD          *float64 `json:"macd"`
	MACDSignal    *float64 `json:"macd_signal"`
	MACDHistogram *float64 `json:"macd_histogram"`

	ATR14 *float64 `json:"atr_14"`

	BBUpper  *float64 `json:"bb_upper"`
	BBMiddle *float64 `json:"bb_middle"`
	BBLower  *float64 `json:"bb_lower"`

	VolumeAvg20 *float64 `json:"volume_avg_20"`

	PriceAboveSMA200 *bool `json:"price_above_sma200"`
	PriceBelowSMA50  *bool `json:"price_below_sma50"`
	PriceBelowSMA200 *bool `json:"price_below_sma200"`

	EMA9AboveEMA21  *bool `json:"ema9_above_ema21"`
	EMA12AboveEMA26 *bool `json:"ema12_above_ema26"`
	EMA20AboveEMA50 *bool `json:"ema20_above_ema50"`

	SMA50AboveSMA200 *bool `json:"sma50_above_sma200"`

	MACDAboveSignal       *bool `json:"macd_above_signal"`
	MACDHistogramPositive *bool `json:"macd_histogram_positive"`

	// RSIZone is one of the Zone constants, or "" while RSI is warming up.
	RSIZone string `json:"rsi_zone"`

	VolumeAboveAverage *bool `json:"volume_above_average"`
	VolumeSpike        *bool `json:"volume_spike"`

	HigherHighs *bool `json:"higher_highs"`
	HigherLows  *bool `json:"higher_lows"`

	ComputedAt time.Time `json:"computed_at"`
}
