// Package journal persists one record per closed position and serves
// simple performance summaries.
package journal

import (
	"context"

	"go.uber.org/zap"

	"go-signals/internal/model"
)

// Journal records closed trades. Implementations must be safe for
// concurrent use; Record failures are logged by callers, never fatal.
type Journal interface {
	Record(ctx context.Context, tr model.TradeRecord) error
	Recent(ctx context.Context, limit int) ([]model.TradeRecord, error)
	SummaryByStrategy(ctx context.Context) ([]StrategySummary, error)
	Close() error
}

// StrategySummary aggregates closed-trade performance per strategy tag.
type StrategySummary struct {
	Strategy string  `json:"strategy"`
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	PnlUsd   float64 `json:"pnlUsd"`
}

// Nop is the journal used when persistence is disabled: it logs each
// record and keeps nothing.
type Nop struct {
	log *zap.Logger
}

// NewNop creates a log-only journal.
func NewNop(log *zap.Logger) *Nop {
	return &Nop{log: log}
}

func (n *Nop) Record(_ context.Context, tr model.TradeRecord) error {
	n.log.Info("trade_closed",
		zap.String("symbol", tr.Symbol),
		zap.String("side", string(tr.Side)),
		zap.String("strategy", tr.Strategy),
		zap.Float64("pnl_usd", tr.PnlUsd),
		zap.Float64("pnl_pct", tr.PnlPct),
		zap.String("close_reason", string(tr.CloseReason)))
	return nil
}

func (n *Nop) Recent(context.Context, int) ([]model.TradeRecord, error) {
	return nil, nil
}

func (n *Nop) SummaryByStrategy(context.Context) ([]StrategySummary, error) {
	return nil, nil
}

func (n *Nop) Close() error { return nil }
