package formulas

// MACDResult represents the latest MACD values
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// CalculateMACD calculates the Moving Average Convergence Divergence
//
// MACD Formula:
//
//	MACD Line = EMA(fast) - EMA(slow)
//	Signal Line = EMA(signal) of the MACD Line
//	Histogram = MACD Line - Signal Line
//
// Returns nil until slow+signal-1 values are available, the point where
// the signal line becomes defined.
func CalculateMACD(closes []float64, fast, slow, signal int) *MACDResult {
	n := len(closes)
	if fast <= 0 || slow <= fast || signal <= 0 || n < slow+signal-1 {
		return nil
	}

	values := make([]*float64, n)
	for i := range closes {
		v := closes[i]
		values[i] = &v
	}

	macd, signalLine, histogram := MACDSeries(values, fast, slow, signal)
	last := n - 1
	if macd[last] == nil || signalLine[last] == nil || histogram[last] == nil {
		return nil
	}

	return &MACDResult{
		MACD:      *macd[last],
		Signal:    *signalLine[last],
		Histogram: *histogram[last],
	}
}
