package indicators

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/config"
	"github.com/mgalanis/conveyor/internal/domain"
	"github.com/mgalanis/conveyor/pkg/formulas"
)

// trendWindow is the lookback for the higher-highs / higher-lows flags:
// the latest window is compared against the one immediately before it.
const trendWindow = 20

// Engine computes indicator rows from a daily bar series.
type Engine struct {
	volumeSpikeMult float64
	log             zerolog.Logger
}

// NewEngine creates an indicator engine. A non-positive spike multiplier
// falls back to the built-in default so a zero-value config cannot turn
// every bar into a spike.
func NewEngine(thresholds config.IndicatorThresholds, log zerolog.Logger) *Engine {
	mult := thresholds.VolumeSpikeMultiplier
	if mult <= 0 {
		mult = 1.5
	}
	return &Engine{
		volumeSpikeMult: mult,
		log:             log.With().Str("component", "indicator_engine").Logger(),
	}
}

// Compute produces one Row per input bar. Bars must be ascending by date,
// the order the bar repository returns them in. Columns whose window
// extends past the start of the series stay nil; flags comparing a nil
// column stay nil with it.
func (e *Engine) Compute(symbol string, bars []domain.Bar) ([]Row, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("cannot compute indicators for %s: %w", symbol, domain.ErrNoData)
	}

	n := len(bars)
	closes := make([]*float64, n)
	highs := make([]*float64, n)
	lows := make([]*float64, n)
	volumes := make([]*float64, n)

	usable := 0
	for i, bar := range bars {
		closes[i] = bar.Close
		highs[i] = bar.High
		lows[i] = bar.Low
		if bar.Volume != nil {
			v := float64(*bar.Volume)
			volumes[i] = &v
		}
		if bar.Close != nil {
			usable++
		}
	}
	if usable == 0 {
		return nil, fmt.Errorf("no usable closes for %s: %w", symbol, domain.ErrNoData)
	}

	sma50 := formulas.SMASeries(closes, 50)
	sma100 := formulas.SMASeries(closes, 100)
	sma200 := formulas.SMASeries(closes, 200)
	ema9 := formulas.EMASeries(closes, 9)
	ema12 := formulas.EMASeries(closes, 12)
	ema20 := formulas.EMASeries(closes, 20)
	ema21 := formulas.EMASeries(closes, 21)
	ema26 := formulas.EMASeries(closes, 26)
	ema50 := formulas.EMASeries(closes, 50)
	rsi14 := formulas.RSISeries(closes, 14)
	macd, macdSignal, macdHist := formulas.MACDSeries(closes, 12, 26, 9)
	atr14 := formulas.ATRSeries(highs, lows, closes, 14)
	bbUpper, bbMiddle, bbLower := formulas.BollingerSeries(closes, 20, 2.0)
	volumeAvg20 := formulas.RollingMeanSeries(volumes, trendWindow)

	computedAt := time.Now().UTC()
	rows := make([]Row, 0, n)

	for i, bar := range bars {
		row := Row{
			Symbol:        symbol,
			Date:          bar.Date,
			SMA50:         sma50[i],
			SMA100:        sma100[i],
			SMA200:        sma200[i],
			EMA9:          ema9[i],
			EMA12:         ema12[i],
			EMA20:         ema20[i],
			EMA21:         ema21[i],
			EMA26:         ema26[i],
			EMA50:         ema50[i],
			RSI14:         rsi14[i],
			MACD:          macd[i],
			MACDSignal:    macdSignal[i],
			MACDHistogram: macdHist[i],
			ATR14:         atr14[i],
			BBUpper:       bbUpper[i],
			BBMiddle:      bbMiddle[i],
			BBLower:       bbLower[i],
			VolumeAvg20:   volumeAvg20[i],
			RSIZone:       rsiZone(rsi14[i]),
			ComputedAt:    computedAt,
		}

		row.PriceAboveSMA200 = above(closes[i], sma200[i])
		row.PriceBelowSMA50 = below(closes[i], sma50[i])
		row.PriceBelowSMA200 = below(closes[i], sma200[i])
		row.EMA9AboveEMA21 = above(ema9[i], ema21[i])
		row.EMA12AboveEMA26 = above(ema12[i], ema26[i])
		row.EMA20AboveEMA50 = above(ema20[i], ema50[i])
		row.SMA50AboveSMA200 = above(sma50[i], sma200[i])
		row.MACDAboveSignal = above(macd[i], macdSignal[i])
		row.MACDHistogramPositive = positive(macdHist[i])
		row.VolumeAboveAverage = above(volumes[i], volumeAvg20[i])
		row.VolumeSpike = aboveScaled(volumes[i], volumeAvg20[i], e.volumeSpikeMult)

		if i >= 2*trendWindow-1 {
			recentHigh := windowMax(closes, i-trendWindow+1, i)
			priorHigh := windowMax(closes, i-2*trendWindow+1, i-trendWindow)
			recentLow := windowMin(closes, i-trendWindow+1, i)
			priorLow := windowMin(closes, i-2*trendWindow+1, i-trendWindow)
			row.HigherHighs = above(recentHigh, priorHigh)
			row.HigherLows = above(recentLow, priorLow)
		}

		rows = append(rows, row)
	}

	e.log.Debug().
		Str("symbol", symbol).
		Int("bars", n).
		Int("rows", len(rows)).
		Msg("Computed indicator rows")

	return rows, nil
}

// rsiZone maps an RSI value to its momentum zone. Boundary values belong
// to the lower zone of the pair that shares them, except 70 which stays
// neutral because overbought starts strictly above it.
func rsiZone(rsi *float64) string {
	if rsi == nil {
		return ""
	}
	switch v := *rsi; {
	case v < 30:
		return ZoneOversold
	case v < 45:
		return ZoneWeak
	case v < 60:
		return ZoneHealthy
	case v <= 70:
		return ZoneNeutral
	default:
		return ZoneOverbought
	}
}

func above(a, b *float64) *bool {
	if a == nil || b == nil {
		return nil
	}
	v := *a > *b
	return &v
}

func below(a, b *float64) *bool {
	if a == nil || b == nil {
		return nil
	}
	v := *a < *b
	return &v
}

func positive(a *float64) *bool {
	if a == nil {
		return nil
	}
	v := *a > 0
	return &v
}

func aboveScaled(a, b *float64, mult float64) *bool {
	if a == nil || b == nil {
		return nil
	}
	v := *a > *b*mult
	return &v
}

// windowMax returns the largest non-nil value in values[lo..hi], or nil
// when the window holds none.
func windowMax(values []*float64, lo, hi int) *float64 {
	var max *float64
	for i := lo; i <= hi; i++ {
		if values[i] == nil {
			continue
		}
		if max == nil || *values[i] > *max {
			max = values[i]
		}
	}
	return max
}

func windowMin(values []*float64, lo, hi int) *float64 {
	var min *float64
	for i := lo; i <= hi; i++ {
		if values[i] == nil {
			continue
		}
		if min == nil || *values[i] < *min {
			min = values[i]
		}
	}
	return min
}
