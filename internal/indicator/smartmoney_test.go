package indicator

import (
	"testing"

	"go-signals/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// breakoutCandles builds a flat series with armed swing levels and
// three breaks: up through 110 at index 306, down through 90 at 316,
// down again through 80 at 326. Swing size 3 keeps pivots tight.
func breakoutCandles() []model.Candle {
	c := flatCandles(330, 100)

	c[300].High = 110 // swing high, confirmed at 303
	c[306].Close = 115
	c[306].High = 115.5

	c[310].Low = 90 // swing low, confirmed at 313
	c[316].Close = 85
	c[316].Low = 84.5

	c[320].Low = 80 // swing low, confirmed at 323
	c[326].Close = 75
	c[326].Low = 74.5

	return c
}

func newTestSmartMoney() *SmartMoney {
	p := DefaultSmartMoneyParams()
	p.SwingSize = 3
	return NewSmartMoney(p)
}

func TestSmartMoneyBOSAndCHoCHSequence(t *testing.T) {
	t.Parallel()

	candles := breakoutCandles()
	sm := newTestSmartMoney()

	// Level armed but not yet broken.
	assert.Empty(t, sm.Compute("BTCUSDT", model.TF5m, candles[:306]))
	assert.Equal(t, model.StatusNeutral, sm.Status("BTCUSDT"))

	// First break ever is a plain BOS.
	got := sm.Compute("BTCUSDT", model.TF5m, candles[:307])
	require.Len(t, got, 1)
	assert.Equal(t, model.SideBuy, got[0].Side)
	assert.Equal(t, model.KindBOS, got[0].Kind)
	assert.Equal(t, model.StatusBull, sm.Status("BTCUSDT"))

	// Break against the previous breakout direction is a CHoCH.
	got = sm.Compute("BTCUSDT", model.TF5m, candles[:317])
	require.Len(t, got, 1)
	assert.Equal(t, model.SideSell, got[0].Side)
	assert.Equal(t, model.KindCHoCH, got[0].Kind)
	assert.Equal(t, model.StatusBear, sm.Status("BTCUSDT"))

	// Same-direction continuation is a BOS again.
	got = sm.Compute("BTCUSDT", model.TF5m, candles[:327])
	require.Len(t, got, 1)
	assert.Equal(t, model.SideSell, got[0].Side)
	assert.Equal(t, model.KindBOS, got[0].Kind)

	// Past breaks are not re-emitted on later windows.
	assert.Empty(t, sm.Compute("BTCUSDT", model.TF5m, candles))
}

func TestSmartMoneyLevelConsumedOnce(t *testing.T) {
	t.Parallel()

	candles := breakoutCandles()
	// Close stays above the broken level on the next bar; the level must
	// not fire again.
	candles[307].Close = 118

	sm := newTestSmartMoney()
	got := sm.Compute("BTCUSDT", model.TF5m, candles[:307])
	require.Len(t, got, 1)
	assert.Empty(t, sm.Compute("BTCUSDT", model.TF5m, candles[:308]))
}

func TestSmartMoneyWickConfirmation(t *testing.T) {
	t.Parallel()

	c := flatCandles(310, 100)
	c[300].High = 110 // swing high, confirmed at 303
	// Wick pokes above the level but the close does not.
	c[306].High = 112

	closeConfirmed := newTestSmartMoney()
	assert.Empty(t, closeConfirmed.Compute("BTCUSDT", model.TF5m, c[:307]))

	p := DefaultSmartMoneyParams()
	p.SwingSize = 3
	p.Confirmation = ConfirmWicks
	wickConfirmed := NewSmartMoney(p)
	got := wickConfirmed.Compute("BTCUSDT", model.TF5m, c[:307])
	require.Len(t, got, 1)
	assert.Equal(t, model.SideBuy, got[0].Side)
}

func TestSmartMoneyNeedsEnoughCandles(t *testing.T) {
	t.Parallel()

	sm := newTestSmartMoney()
	assert.Nil(t, sm.Compute("BTCUSDT", model.TF5m, flatCandles(299, 100)))
	assert.Equal(t, model.StatusNA, sm.Status("BTCUSDT"))
}
