package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateATR calculates the Average True Range using Wilder smoothing
//
// ATR Formula:
//
//	TR = max(high - low, |high - prev_close|, |low - prev_close|)
//	ATR = Wilder-smoothed mean of TR over N periods
//
// Returns nil if fewer than length+1 bars are available.
func CalculateATR(highs, lows, closes []float64, length int) *float64 {
	n := len(closes)
	if length <= 0 || n <= length || len(highs) != n || len(lows) != n {
		return nil
	}

	atr := talib.Atr(highs, lows, closes, length)
	if len(atr) > 0 && !isNaN(atr[len(atr)-1]) {
		result := atr[len(atr)-1]
		return &result
	}

	return nil
}
