package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go-signals/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *SQLite {
	t.Helper()
	j, err := OpenSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func record(symbol, strategy string, pnl float64, closedAt time.Time) model.TradeRecord {
	return model.TradeRecord{
		Symbol:      symbol,
		Side:        model.SideBuy,
		Strategy:    strategy,
		EntryPrice:  100,
		ExitPrice:   100 + pnl,
		Size:        1,
		Leverage:    10,
		PnlUsd:      pnl,
		PnlPct:      pnl,
		CloseReason: model.CloseReasonTP,
		StopLoss:    99,
		TakeProfit:  102,
		OpenedAt:    closedAt.Add(-time.Hour),
		ClosedAt:    closedAt,
	}
}

func TestSQLiteRecordAndRecent(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(ctx, record("BTCUSDT", "confluence", 25, base)))
	require.NoError(t, j.Record(ctx, record("ETHUSDT", "confluence", -10, base.Add(time.Minute))))

	got, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	assert.Equal(t, "ETHUSDT", got[0].Symbol)
	assert.Equal(t, "BTCUSDT", got[1].Symbol)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, model.SideBuy, got[0].Side)
	assert.Equal(t, model.CloseReasonTP, got[0].CloseReason)
	assert.InDelta(t, -10, got[0].PnlUsd, 1e-9)
}

func TestSQLiteRecentLimit(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(ctx, record("BTCUSDT", "confluence", float64(i), base.Add(time.Duration(i)*time.Minute))))
	}

	got, err := j.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSQLiteSummaryByStrategy(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(ctx, record("BTCUSDT", "confluence", 25, base)))
	require.NoError(t, j.Record(ctx, record("BTCUSDT", "confluence", -10, base.Add(time.Minute))))
	require.NoError(t, j.Record(ctx, record("ETHUSDT", "manual", 5, base.Add(2*time.Minute))))

	got, err := j.SummaryByStrategy(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	byName := map[string]StrategySummary{}
	for _, s := range got {
		byName[s.Strategy] = s
	}
	assert.Equal(t, 2, byName["confluence"].Trades)
	assert.Equal(t, 1, byName["confluence"].Wins)
	assert.InDelta(t, 15, byName["confluence"].PnlUsd, 1e-9)
	assert.Equal(t, 1, byName["manual"].Trades)
}
