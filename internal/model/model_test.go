package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeframeHigher(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TF15m, TF1m.Higher())
	assert.Equal(t, TF4h, TF15m.Higher())
	assert.Equal(t, TF1d, TF4h.Higher())
	assert.Equal(t, TF1w, TF1d.Higher())
	assert.Equal(t, TF4h, Timeframe("bogus").Higher())
}

func TestTimeframeDurationAndMillis(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 15*time.Minute, TF15m.Duration())
	assert.Equal(t, int64(4*60*60*1000), TF4h.Millis())
	assert.Equal(t, time.Minute, Timeframe("bogus").Duration())
}

func TestTimeframePollInterval(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 60*time.Second, TF15m.PollInterval())
	assert.Equal(t, 15*time.Second, TF1m.PollInterval())
	assert.Equal(t, 60*time.Second, TF1w.PollInterval())
}

func TestSideOpposite(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
}

func TestTickerSpreadPct(t *testing.T) {
	t.Parallel()

	tk := Ticker{Last: 100, Bid: 99.95, Ask: 100.05}
	assert.InDelta(t, 0.1, tk.SpreadPct(), 1e-9)
	assert.Zero(t, Ticker{}.SpreadPct())
}

func TestPositionSnapshotPnlPct(t *testing.T) {
	t.Parallel()

	long := PositionSnapshot{Side: SideBuy, EntryPrice: 100, MarkPrice: 102}
	assert.InDelta(t, 2.0, long.PnlPct(), 1e-9)

	short := PositionSnapshot{Side: SideSell, EntryPrice: 100, MarkPrice: 102}
	assert.InDelta(t, -2.0, short.PnlPct(), 1e-9)

	assert.Zero(t, PositionSnapshot{Side: SideBuy}.PnlPct())
}

func TestCompositeSignalStrength(t *testing.T) {
	t.Parallel()

	comp := func(statuses ...Status) CompositeSignal {
		c := CompositeSignal{Indicators: make(map[string]IndicatorState)}
		for i, st := range statuses {
			c.Indicators[string(rune('a'+i))] = IndicatorState{Status: st}
		}
		return c
	}

	side, n := comp(StatusBull, StatusBull, StatusNeutral).Strength()
	assert.Equal(t, SideBuy, side)
	assert.Equal(t, 2, n)

	side, n = comp(StatusBear, StatusBear, StatusBear).Strength()
	assert.Equal(t, SideSell, side)
	assert.Equal(t, 3, n)

	// split decision carries no direction
	side, n = comp(StatusBull, StatusBull, StatusBear, StatusBear).Strength()
	assert.Empty(t, side)
	assert.Zero(t, n)

	side, n = comp(StatusBull, StatusNeutral, StatusNA).Strength()
	assert.Empty(t, side)
	assert.Zero(t, n)
}
