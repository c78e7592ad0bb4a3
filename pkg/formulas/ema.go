package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateSMA calculates the Simple Moving Average over the last `length` values
//
// SMA Formula:
//
//	SMA = sum(last N closes) / N
//
// Returns nil if fewer than `length` values are available.
func CalculateSMA(closes []float64, length int) *float64 {
	if length <= 0 || len(closes) < length {
		return nil
	}

	sma := talib.Sma(closes, length)
	if len(sma) > 0 && !isNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}

	return nil
}

// CalculateEMA calculates the Exponential Moving Average over the last `length` values
//
// EMA Formula:
//
//	EMA_today = (Price_today × multiplier) + (EMA_yesterday × (1 - multiplier))
//	where multiplier = 2 / (length + 1)
//	seeded with the SMA of the first `length` values
//
// Returns nil if fewer than `length` values are available. There is no SMA
// fallback: an EMA over too few rows is undefined, not approximated.
func CalculateEMA(closes []float64, length int) *float64 {
	if length <= 0 || len(closes) < length {
		return nil
	}

	ema := talib.Ema(closes, length)
	if len(ema) > 0 && !isNaN(ema[len(ema)-1]) {
		result := ema[len(ema)-1]
		return &result
	}

	return nil
}

// CalculateDistanceFromEMA calculates the percentage distance from EMA
// Returns positive if price is above EMA, negative if below
//
// Formula: (Current Price - EMA) / EMA
func CalculateDistanceFromEMA(closes []float64, length int) *float64 {
	if len(closes) == 0 {
		return nil
	}

	ema := CalculateEMA(closes, length)
	if ema == nil || *ema == 0 {
		return nil
	}

	currentPrice := closes[len(closes)-1]
	distance := (currentPrice - *ema) / *ema
	return &distance
}
