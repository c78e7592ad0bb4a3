package formulas

import (
	"github.com/markcheno/go-talib"
)

// Series functions compute indicator values for every index of the input,
// returning slices aligned 1:1 with the input. Entries are nil where the
// indicator is undefined: inside the warm-up window, or at positions where
// the input itself was nil.
//
// Inputs may contain nil gaps (missing bars survive validation as warnings).
// Gaps are bridged by carrying the last observed value forward before the
// computation runs, and the affected output positions are set back to nil
// afterwards so a gap never manufactures an indicator value.

// bridgeGaps converts a nullable series into a dense one for computation.
// Interior and trailing nils carry the previous value forward; leading nils
// take the first observed value. The returned index list records which
// positions were nil so outputs can be re-nulled.
func bridgeGaps(values []*float64) ([]float64, []int) {
	dense := make([]float64, len(values))
	var nilIdx []int

	first := -1
	for i, v := range values {
		if v != nil {
			first = i
			break
		}
	}
	if first == -1 {
		for i := range values {
			nilIdx = append(nilIdx, i)
		}
		return dense, nilIdx
	}

	last := *values[first]
	for i, v := range values {
		if v == nil {
			nilIdx = append(nilIdx, i)
			if i < first {
				dense[i] = *values[first]
				continue
			}
			dense[i] = last
			continue
		}
		last = *v
		dense[i] = last
	}
	return dense, nilIdx
}

// liftSeries converts a dense talib output into a nullable series,
// discarding the warm-up region [0, firstValid) and any position whose
// input was nil.
func liftSeries(dense []float64, firstValid int, nilIdx []int) []*float64 {
	out := make([]*float64, len(dense))
	for i := firstValid; i < len(dense); i++ {
		v := dense[i]
		if isNaN(v) {
			continue
		}
		out[i] = &v
	}
	for _, i := range nilIdx {
		if i < len(out) {
			out[i] = nil
		}
	}
	return out
}

// SMASeries computes a simple moving average for every index.
// Values before index length-1 are nil.
func SMASeries(values []*float64, length int) []*float64 {
	if length <= 0 || len(values) < length {
		return make([]*float64, len(values))
	}
	dense, nilIdx := bridgeGaps(values)
	if len(nilIdx) == len(values) {
		return make([]*float64, len(values))
	}
	return liftSeries(talib.Sma(dense, length), length-1, nilIdx)
}

// EMASeries computes an exponential moving average for every index.
// The first value at index length-1 is seeded with the SMA of the first
// length observations; subsequent values use alpha = 2/(length+1).
func EMASeries(values []*float64, length int) []*float64 {
	if length <= 0 || len(values) < length {
		return make([]*float64, len(values))
	}
	dense, nilIdx := bridgeGaps(values)
	if len(nilIdx) == len(values) {
		return make([]*float64, len(values))
	}
	return liftSeries(talib.Ema(dense, length), length-1, nilIdx)
}

// RSISeries computes a Wilder-smoothed RSI for every index.
// Values before index length are nil (length+1 observations are needed).
func RSISeries(values []*float64, length int) []*float64 {
	if length <= 0 || len(values) < length+1 {
		return make([]*float64, len(values))
	}
	dense, nilIdx := bridgeGaps(values)
	if len(nilIdx) == len(values) {
		return make([]*float64, len(values))
	}
	return liftSeries(talib.Rsi(dense, length), length, nilIdx)
}

// MACDSeries computes the MACD line, signal line and histogram.
// The MACD line is EMA(fast) - EMA(slow), defined from index slow-1.
// The signal line is an EMA(signal) over the MACD line, defined from
// index slow+signal-2, as is the histogram.
func MACDSeries(values []*float64, fast, slow, signal int) (macd, signalLine, histogram []*float64) {
	n := len(values)
	macd = make([]*float64, n)
	signalLine = make([]*float64, n)
	histogram = make([]*float64, n)
	if fast <= 0 || slow <= fast || signal <= 0 || n < slow {
		return macd, signalLine, histogram
	}

	dense, nilIdx := bridgeGaps(values)
	if len(nilIdx) == n {
		return macd, signalLine, histogram
	}

	emaFast := talib.Ema(dense, fast)
	emaSlow := talib.Ema(dense, slow)

	macdStart := slow - 1
	macdDense := make([]float64, n-macdStart)
	for i := macdStart; i < n; i++ {
		macdDense[i-macdStart] = emaFast[i] - emaSlow[i]
	}
	for i := macdStart; i < n; i++ {
		v := macdDense[i-macdStart]
		macd[i] = &v
	}

	if len(macdDense) >= signal {
		sigDense := talib.Ema(macdDense, signal)
		sigStart := macdStart + signal - 1
		for i := sigStart; i < n; i++ {
			sv := sigDense[i-macdStart]
			hv := macdDense[i-macdStart] - sv
			signalLine[i] = &sv
			histogram[i] = &hv
		}
	}

	for _, i := range nilIdx {
		if i < n {
			macd[i] = nil
			signalLine[i] = nil
			histogram[i] = nil
		}
	}
	return macd, signalLine, histogram
}

// ATRSeries computes a Wilder-smoothed average true range for every index.
// A position is nil when any of high, low, close is nil there, or before
// index length.
func ATRSeries(high, low, close []*float64, length int) []*float64 {
	n := len(close)
	if length <= 0 || n <= length || len(high) != n || len(low) != n {
		return make([]*float64, n)
	}

	denseH, nilH := bridgeGaps(high)
	denseL, nilL := bridgeGaps(low)
	denseC, nilC := bridgeGaps(close)
	if len(nilH) == n || len(nilL) == n || len(nilC) == n {
		return make([]*float64, n)
	}

	nilIdx := append(append(append([]int{}, nilH...), nilL...), nilC...)
	return liftSeries(talib.Atr(denseH, denseL, denseC, length), length, nilIdx)
}

// BollingerSeries computes Bollinger Band series: middle is an SMA(length),
// upper and lower sit stdDevMult standard deviations away. Values before
// index length-1 are nil.
func BollingerSeries(values []*float64, length int, stdDevMult float64) (upper, middle, lower []*float64) {
	n := len(values)
	if length <= 0 || n < length {
		return make([]*float64, n), make([]*float64, n), make([]*float64, n)
	}
	dense, nilIdx := bridgeGaps(values)
	if len(nilIdx) == n {
		return make([]*float64, n), make([]*float64, n), make([]*float64, n)
	}
	u, m, l := talib.BBands(dense, length, stdDevMult, stdDevMult, 0)
	return liftSeries(u, length-1, nilIdx), liftSeries(m, length-1, nilIdx), liftSeries(l, length-1, nilIdx)
}

// RollingMeanSeries computes a rolling arithmetic mean, typically used for
// average volume. Identical window semantics to SMASeries.
func RollingMeanSeries(values []*float64, length int) []*float64 {
	return SMASeries(values, length)
}
