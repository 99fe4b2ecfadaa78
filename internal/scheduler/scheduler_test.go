package scheduler

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"go-signals/internal/confluence"
	"go-signals/internal/exchange"
	"go-signals/internal/executor"
	"go-signals/internal/indicator"
	"go-signals/internal/journal"
	"go-signals/internal/model"
	"go-signals/internal/notify"
	"go-signals/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	log := zap.NewNop()
	paper := exchange.NewPaper(1000, log)
	agg := confluence.New(log, paper, indicator.NewRegistry(), confluence.Options{})
	session := risk.NewSession(risk.SessionParams{
		MaxDrawdownPct: 6,
		HardStopPct:    10,
		PauseDuration:  time.Hour,
	}, log, nil)
	ctl := executor.New(log, paper, risk.NewSizer(log, paper), session,
		executor.NewTracker(), journal.NewNop(log), notify.NewLogNotifier(log),
		executor.Params{
			Timeframe:         model.TF1m,
			AutoTrade:         false,
			Leverage:          10,
			RiskPct:           7,
			MinStrength:       2,
			ExitMinStrength:   2,
			ExitConfirmations: 2,
			MaxPositions:      2,
			MaxSpreadPct:      0.15,
			MinQuoteVolume:    5_000_000,
			EntryCooldown:     time.Minute,
		}, nil)
	return New(log, agg, ctl, Options{
		Symbols:         []string{"BTCUSDT", "ETHUSDT"},
		Timeframe:       model.TF1m,
		MonitorInterval: 20 * time.Millisecond,
	})
}

func TestSchedulerRunsAndDrains(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t)
	s.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Metrics().Snapshot().Cycles >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.True(t, s.Stop(5*time.Second), "tasks did not drain")
	snap := s.Metrics().Snapshot()
	assert.GreaterOrEqual(t, snap.Cycles, int64(2))
	assert.Zero(t, snap.Errors)
}

func TestSchedulerDefaultsMonitorInterval(t *testing.T) {
	t.Parallel()

	s := New(zap.NewNop(), nil, nil, Options{Timeframe: model.TF15m})
	assert.Equal(t, model.TF15m.PollInterval(), s.opts.MonitorInterval)
}
