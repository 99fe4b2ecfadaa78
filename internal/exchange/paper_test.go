package exchange

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-signals/internal/model"
)

func TestPaperCandlesOrderedAndSized(t *testing.T) {
	t.Parallel()

	p := NewPaper(10_000, nil)
	candles, err := p.FetchClosedCandles(context.Background(), "BTCUSDT", model.TF15m, 500)
	require.NoError(t, err)
	require.Len(t, candles, 500)

	step := model.TF15m.Millis()
	for i := 1; i < len(candles); i++ {
		assert.Equal(t, candles[i-1].Ts+step, candles[i].Ts)
	}
	for _, c := range candles {
		assert.GreaterOrEqual(t, c.High, c.Open)
		assert.GreaterOrEqual(t, c.High, c.Close)
		assert.LessOrEqual(t, c.Low, c.Open)
		assert.LessOrEqual(t, c.Low, c.Close)
	}
}

func TestPaperOrderLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewPaper(10_000, nil)

	require.NoError(t, p.SetLeverage(ctx, "ETHUSDT", 10))

	id, err := p.PlaceMarketOrder(ctx, "ETHUSDT", model.SideBuy, 2.5, 3000, 3500)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	snaps, err := p.FetchPositions(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "ETHUSDT", snaps[0].Symbol)
	assert.Equal(t, model.SideBuy, snaps[0].Side)
	assert.InDelta(t, 2.5, snaps[0].Contracts, 1e-9)
	assert.Equal(t, 10, snaps[0].Leverage)

	require.NoError(t, p.SetTradingStop(ctx, "ETHUSDT", 3100, 3400))
	snaps, err = p.FetchPositions(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 3100, snaps[0].StopLoss, 1e-9)
	assert.InDelta(t, 3400, snaps[0].TakeProfit, 1e-9)

	require.NoError(t, p.ClosePosition(ctx, "ETHUSDT", model.SideSell, 2.5))
	snaps, err = p.FetchPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestPaperRejectsZeroSizeOrder(t *testing.T) {
	t.Parallel()

	p := NewPaper(10_000, nil)
	_, err := p.PlaceMarketOrder(context.Background(), "BTCUSDT", model.SideBuy, 0, 0, 0)
	assert.True(t, IsRejected(err))
}

func TestPaperStopWithoutPositionRejected(t *testing.T) {
	t.Parallel()

	p := NewPaper(10_000, nil)
	err := p.SetTradingStop(context.Background(), "BTCUSDT", 90, 110)
	assert.True(t, IsRejected(err))
}

func TestPaperCancelledContextIsTransient(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPaper(10_000, nil)
	_, err := p.FetchClosedCandles(ctx, "BTCUSDT", model.TF1m, 10)
	assert.True(t, IsTransient(err))
	assert.True(t, errors.Is(err, ErrTransient))
}
