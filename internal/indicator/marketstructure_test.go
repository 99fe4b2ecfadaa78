package indicator

import (
	"testing"

	"go-signals/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trendingCandles builds a steadily trending series with two swing
// spikes. slope > 0 rises from base, slope < 0 falls. The spikes at
// indices 200 and 220 become the engine's swing levels; the close path
// crosses the first (older) level at index 281.
func trendingCandles(n int, base, slope float64, spike float64) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		c := base + slope*float64(i)
		out[i] = model.Candle{
			Ts:     tsBase + int64(i)*model.TF1m.Millis(),
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: 100,
		}
	}
	if slope > 0 {
		out[200].High = spike
		out[220].High = spike + 3
	} else {
		out[200].Low = spike
		out[220].Low = spike - 3
	}
	return out
}

func TestMarketStructureBullishBreak(t *testing.T) {
	t.Parallel()

	// Rising 0.1/bar from 100; swing highs at 128 and 131. The break of
	// the older swing (128) lands exactly on index 281.
	candles := trendingCandles(300, 100, 0.1, 128)
	ms := NewMarketStructure(DefaultMarketStructureParams())

	// No event has reached the last bar yet.
	assert.Empty(t, ms.Compute("BTCUSDT", model.TF1m, candles[:281]))

	got := ms.Compute("BTCUSDT", model.TF1m, candles[:282])
	require.Len(t, got, 1)
	sig := got[0]
	assert.Equal(t, model.SideBuy, sig.Side)
	assert.Equal(t, model.KindBOS, sig.Kind)
	assert.Equal(t, candles[281].Ts, sig.Ts)
	assert.Less(t, sig.StopLoss, sig.Price)
	assert.InDelta(t, candles[281].Low*(1-0.1/100), sig.StopLoss, 1e-9)

	// The same break is not re-emitted once it is no longer the last bar.
	assert.Empty(t, ms.Compute("BTCUSDT", model.TF1m, candles))
	assert.Equal(t, model.StatusBull, ms.Status("BTCUSDT"))
}

func TestMarketStructureBearishBreak(t *testing.T) {
	t.Parallel()

	// Mirror scenario: falling 0.1/bar from 160; swing lows at 132 and
	// 129, break of 132 on index 281.
	candles := trendingCandles(300, 160, -0.1, 132)
	ms := NewMarketStructure(DefaultMarketStructureParams())

	got := ms.Compute("ETHUSDT", model.TF1m, candles[:282])
	require.Len(t, got, 1)
	sig := got[0]
	assert.Equal(t, model.SideSell, sig.Side)
	assert.Equal(t, model.KindBOS, sig.Kind)
	assert.Greater(t, sig.StopLoss, sig.Price)
	assert.InDelta(t, candles[281].High*(1+0.1/100), sig.StopLoss, 1e-9)
	assert.Equal(t, model.StatusBear, ms.Status("ETHUSDT"))
}

func TestMarketStructureSlidingWindowEmitsOnce(t *testing.T) {
	t.Parallel()

	candles := trendingCandles(300, 100, 0.1, 128)
	ms := NewMarketStructure(DefaultMarketStructureParams())

	var fired []model.Signal
	for k := ms.MinCandles(); k <= len(candles); k++ {
		fired = append(fired, ms.Compute("BTCUSDT", model.TF1m, candles[:k])...)
	}
	require.Len(t, fired, 1)
	assert.Equal(t, candles[281].Ts, fired[0].Ts)
	assert.Equal(t, model.SideBuy, fired[0].Side)
}

func TestMarketStructureNeedsEnoughCandles(t *testing.T) {
	t.Parallel()

	ms := NewMarketStructure(DefaultMarketStructureParams())
	assert.Nil(t, ms.Compute("BTCUSDT", model.TF1m, flatCandles(150, 100)))
	assert.Equal(t, model.StatusNA, ms.Status("BTCUSDT"))
}
