package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrSeries(values ...float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		v := values[i]
		out[i] = &v
	}
	return out
}

func TestSMASeries(t *testing.T) {
	t.Run("basic window", func(t *testing.T) {
		got := SMASeries(ptrSeries(1, 2, 3, 4, 5), 3)
		require.Len(t, got, 5)
		assert.Nil(t, got[0])
		assert.Nil(t, got[1])
		require.NotNil(t, got[2])
		assert.InDelta(t, 2.0, *got[2], 1e-9)
		require.NotNil(t, got[3])
		assert.InDelta(t, 3.0, *got[3], 1e-9)
		require.NotNil(t, got[4])
		assert.InDelta(t, 4.0, *got[4], 1e-9)
	})

	t.Run("insufficient data", func(t *testing.T) {
		got := SMASeries(ptrSeries(1, 2), 3)
		require.Len(t, got, 2)
		assert.Nil(t, got[0])
		assert.Nil(t, got[1])
	})

	t.Run("all nil input", func(t *testing.T) {
		got := SMASeries(make([]*float64, 5), 3)
		for _, v := range got {
			assert.Nil(t, v)
		}
	})

	t.Run("gap is bridged for neighbours but stays nil itself", func(t *testing.T) {
		values := ptrSeries(1, 2, 3, 4, 5)
		values[3] = nil
		got := SMASeries(values, 3)
		// Index 3 was missing in the input, so no output there.
		assert.Nil(t, got[3])
		// Index 4 is computed over the bridged window {3, 3, 5}.
		require.NotNil(t, got[4])
		assert.InDelta(t, (3.0+3.0+5.0)/3.0, *got[4], 1e-9)
	})
}

func TestEMASeries(t *testing.T) {
	got := EMASeries(ptrSeries(1, 2, 3, 4, 5), 3)
	require.Len(t, got, 5)
	assert.Nil(t, got[0])
	assert.Nil(t, got[1])
	// Seeded with SMA(1,2,3) = 2, then alpha = 0.5.
	require.NotNil(t, got[2])
	assert.InDelta(t, 2.0, *got[2], 1e-9)
	require.NotNil(t, got[3])
	assert.InDelta(t, 3.0, *got[3], 1e-9)
	require.NotNil(t, got[4])
	assert.InDelta(t, 4.0, *got[4], 1e-9)
}

func TestRSISeries(t *testing.T) {
	t.Run("warm-up region is nil", func(t *testing.T) {
		closes := make([]*float64, 0, 20)
		for i := 1; i <= 20; i++ {
			v := float64(i)
			closes = append(closes, &v)
		}
		got := RSISeries(closes, 14)
		require.Len(t, got, 20)
		for i := 0; i < 14; i++ {
			assert.Nil(t, got[i], "index %d should be inside warm-up", i)
		}
		for i := 14; i < 20; i++ {
			require.NotNil(t, got[i])
		}
	})

	t.Run("all gains saturate at 100", func(t *testing.T) {
		closes := make([]*float64, 0, 16)
		for i := 1; i <= 16; i++ {
			v := float64(i)
			closes = append(closes, &v)
		}
		got := RSISeries(closes, 14)
		require.NotNil(t, got[15])
		assert.InDelta(t, 100.0, *got[15], 1e-6)
	})

	t.Run("too short", func(t *testing.T) {
		got := RSISeries(ptrSeries(1, 2, 3), 14)
		for _, v := range got {
			assert.Nil(t, v)
		}
	})
}

func TestMACDSeries(t *testing.T) {
	macd, signal, hist := MACDSeries(ptrSeries(1, 2, 3, 4, 5, 6), 2, 3, 2)
	require.Len(t, macd, 6)

	// MACD line defined from slow-1 = index 2.
	assert.Nil(t, macd[1])
	require.NotNil(t, macd[2])
	assert.InDelta(t, 0.5, *macd[2], 1e-9)
	require.NotNil(t, macd[5])
	assert.InDelta(t, 0.5, *macd[5], 1e-9)

	// Signal and histogram defined from slow+signal-2 = index 3.
	assert.Nil(t, signal[2])
	assert.Nil(t, hist[2])
	require.NotNil(t, signal[3])
	assert.InDelta(t, 0.5, *signal[3], 1e-9)
	require.NotNil(t, hist[3])
	assert.InDelta(t, 0.0, *hist[3], 1e-9)
}

func TestMACDSeries_StandardParamsAlignment(t *testing.T) {
	closes := make([]*float64, 0, 40)
	for i := 0; i < 40; i++ {
		v := 100.0 + float64(i)*0.5
		closes = append(closes, &v)
	}
	macd, signal, hist := MACDSeries(closes, 12, 26, 9)

	assert.Nil(t, macd[24])
	assert.NotNil(t, macd[25])
	assert.Nil(t, signal[32])
	assert.NotNil(t, signal[33])
	assert.Nil(t, hist[32])
	assert.NotNil(t, hist[33])
}

func TestATRSeries(t *testing.T) {
	highs := ptrSeries(10, 12)
	lows := ptrSeries(8, 9)
	closes := ptrSeries(9, 11)

	got := ATRSeries(highs, lows, closes, 1)
	require.Len(t, got, 2)
	assert.Nil(t, got[0])
	require.NotNil(t, got[1])
	// TR = max(12-9, |12-9|, |9-9|) = 3
	assert.InDelta(t, 3.0, *got[1], 1e-9)
}

func TestBollingerSeries(t *testing.T) {
	upper, middle, lower := BollingerSeries(ptrSeries(2, 2, 2, 2, 2), 3, 2.0)
	require.Len(t, middle, 5)
	assert.Nil(t, middle[1])
	require.NotNil(t, middle[2])
	assert.InDelta(t, 2.0, *middle[2], 1e-9)
	// Flat series collapses the bands onto the middle.
	require.NotNil(t, upper[2])
	require.NotNil(t, lower[2])
	assert.InDelta(t, 2.0, *upper[2], 1e-9)
	assert.InDelta(t, 2.0, *lower[2], 1e-9)
}

func TestBridgeGaps(t *testing.T) {
	t.Run("interior gap carries forward", func(t *testing.T) {
		values := ptrSeries(1, 2, 3)
		values[1] = nil
		dense, nilIdx := bridgeGaps(values)
		assert.Equal(t, []float64{1, 1, 3}, dense)
		assert.Equal(t, []int{1}, nilIdx)
	})

	t.Run("leading gap takes first observed value", func(t *testing.T) {
		five, six := 5.0, 6.0
		values := []*float64{nil, nil, &five, &six}
		dense, nilIdx := bridgeGaps(values)
		assert.Equal(t, []float64{5, 5, 5, 6}, dense)
		assert.Equal(t, []int{0, 1}, nilIdx)
	})

	t.Run("all nil", func(t *testing.T) {
		_, nilIdx := bridgeGaps(make([]*float64, 3))
		assert.Len(t, nilIdx, 3)
	})
}
