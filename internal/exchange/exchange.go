// Package exchange defines the contract the trading core expects from a
// derivatives exchange client, plus an in-process paper implementation
// used for demo runs.
package exchange

import (
	"context"
	"errors"

	"go-signals/internal/model"
)

// Client is the capability-shaped collaborator consumed by the core.
// Implementations wrap a real exchange API; all methods may block on
// network I/O and must honor ctx cancellation.
type Client interface {
	// FetchClosedCandles returns up to limit closed candles for the
	// symbol/timeframe, ascending by timestamp. The still-forming candle
	// is always excluded.
	FetchClosedCandles(ctx context.Context, symbol string, tf model.Timeframe, limit int) ([]model.Candle, error)

	FetchTicker(ctx context.Context, symbol string) (model.Ticker, error)
	FetchBalance(ctx context.Context) (model.Balance, error)
	FetchPositions(ctx context.Context) ([]model.PositionSnapshot, error)

	// SetLeverage is idempotent; a "leverage not modified" response is
	// not an error.
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// PlaceMarketOrder submits a market order and returns the order id.
	// SL/TP may be attached atomically when the venue supports it.
	PlaceMarketOrder(ctx context.Context, symbol string, side model.Side, size float64, slPrice, tpPrice float64) (string, error)

	// SetTradingStop sets or replaces exchange-side SL/TP for an open
	// position, independently of order placement.
	SetTradingStop(ctx context.Context, symbol string, slPrice, tpPrice float64) error

	// ClosePosition closes size contracts with a reduce-only market order.
	ClosePosition(ctx context.Context, symbol string, side model.Side, size float64) error
}

// Error classes. Wrap concrete exchange errors with these sentinels so
// the core can branch with errors.Is.
var (
	// ErrTransient marks network/timeout failures on market-data calls;
	// the caller skips the current cycle, no retry.
	ErrTransient = errors.New("transient exchange error")

	// ErrPermission marks authorization failures on optional calls; the
	// caller backs off that (symbol, operation) pair.
	ErrPermission = errors.New("exchange permission denied")

	// ErrRejected marks sizing/liquidity rejections (below minimum, thin
	// book); the caller skips the symbol this cycle.
	ErrRejected = errors.New("order rejected")
)

// IsTransient reports whether err is a skip-this-cycle failure.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsPermission reports whether err is an authorization failure.
func IsPermission(err error) bool { return errors.Is(err, ErrPermission) }

// IsRejected reports whether err is a sizing/liquidity rejection.
func IsRejected(err error) bool { return errors.Is(err, ErrRejected) }
