// Package executor owns the position lifecycle: sized entries, strict
// exchange-side protection, trailing promotion, reversal exits, and the
// session drawdown breaker.
//
// Per-symbol lifecycle: FLAT -> ENTERING -> PROTECTED -> (TRAILING) ->
// CLOSING -> FLAT. FLAT means no tracker entry; ENTERING holds the
// symbol's in-flight slot; PROTECTED is a tracked position with SL/TP
// confirmed on the exchange; TRAILING is the one-shot stop promotion;
// CLOSING is the reduce-only close in flight.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"go-signals/internal/exchange"
	"go-signals/internal/journal"
	"go-signals/internal/model"
	"go-signals/internal/notify"
	"go-signals/internal/risk"
)

const (
	// Risk per entry is capped at this fraction of equity regardless of
	// the configured riskPct.
	maxEquityFraction = 0.30

	// Trailing promotion: once unrealized PnL reaches the trigger, the
	// stop moves to entry +/- the lock, once per position.
	trailTriggerPct = 2.0
	trailLockPct    = 0.5

	// Cooldown for a (symbol, operation) pair after a permission error.
	permissionBackoff = 15 * time.Minute

	// Tolerance when attributing an exchange-side close to SL or TP.
	closeMatchTolerance = 0.002
)

// Params holds the controller's trading configuration.
type Params struct {
	Timeframe         model.Timeframe
	AutoTrade         bool
	Leverage          int
	RiskPct           float64 // percent of equity per entry
	MinStrength       int
	ExitMinStrength   int
	ExitConfirmations int
	MaxPositions      int
	MaxSpreadPct      float64
	MinQuoteVolume    float64
	EntryCooldown     time.Duration
	StrategyTag       string
}

type exitVote struct {
	side  model.Side
	count int
}

// Controller drives entries and exits against the exchange client. All
// of its mutable maps share one mutex; the tracker and risk session
// carry their own locks.
type Controller struct {
	log      *zap.Logger
	client   exchange.Client
	sizer    *risk.Sizer
	session  *risk.Session
	tracker  *Tracker
	journal  journal.Journal
	notifier notify.Notifier
	params   Params
	now      func() time.Time

	mu          sync.Mutex
	inflight    map[string]bool
	lastEntry   map[string]time.Time
	exitVotes   map[string]exitVote
	backoffs    map[string]time.Time
	leverageSet map[string]bool
}

// New creates a controller. A nil now uses wall-clock time.
func New(log *zap.Logger, client exchange.Client, sizer *risk.Sizer, session *risk.Session, tracker *Tracker, jrnl journal.Journal, notifier notify.Notifier, params Params, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{
		log:         log,
		client:      client,
		sizer:       sizer,
		session:     session,
		tracker:     tracker,
		journal:     jrnl,
		notifier:    notifier,
		params:      params,
		now:         now,
		inflight:    make(map[string]bool),
		lastEntry:   make(map[string]time.Time),
		exitVotes:   make(map[string]exitVote),
		backoffs:    make(map[string]time.Time),
		leverageSet: make(map[string]bool),
	}
}

// Tracker exposes the position tracker for the status API.
func (c *Controller) Tracker() *Tracker { return c.tracker }

// Enter opens a position for a qualifying trade signal. Every gate that
// rejects the entry returns nil; only exchange failures surface as
// errors.
func (c *Controller) Enter(ctx context.Context, sig *model.TradeSignal) error {
	if sig == nil || !c.params.AutoTrade {
		return nil
	}
	symbol := sig.Symbol
	if sig.Strength < c.params.MinStrength {
		return nil
	}
	if c.session.Paused() {
		c.log.Info("entry_blocked_by_breaker", zap.String("symbol", symbol))
		return nil
	}
	if _, open := c.tracker.Get(symbol); open {
		return nil
	}
	if !c.cooldownElapsed(symbol) {
		c.log.Debug("entry_in_cooldown", zap.String("symbol", symbol))
		return nil
	}
	if c.tracker.Count() >= c.params.MaxPositions {
		c.log.Debug("max_positions_reached", zap.String("symbol", symbol))
		return nil
	}
	if !c.acquire(symbol) {
		return nil
	}
	defer c.release(symbol)

	ticker, err := c.client.FetchTicker(ctx, symbol)
	if err != nil {
		return fmt.Errorf("fetching ticker for %s: %w", symbol, err)
	}
	if spread := ticker.SpreadPct(); spread > c.params.MaxSpreadPct {
		c.log.Debug("spread_too_wide",
			zap.String("symbol", symbol),
			zap.Float64("spread_pct", spread))
		return nil
	}
	if ticker.QuoteVolume < c.params.MinQuoteVolume {
		c.log.Debug("volume_too_thin",
			zap.String("symbol", symbol),
			zap.Float64("quote_volume", ticker.QuoteVolume))
		return nil
	}

	bal, err := c.client.FetchBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetching balance: %w", err)
	}
	equity := bal.Total

	price := ticker.Last
	if price <= 0 {
		price = sig.EntryPrice
	}
	assess, err := c.sizer.Assess(ctx, symbol, sig.Side, price, c.params.Timeframe, sig.StopLoss, sig.TakeProfit)
	if err != nil {
		return fmt.Errorf("sizing entry for %s: %w", symbol, err)
	}

	riskUsd := equity * c.params.RiskPct / 100 * c.session.RiskScale()
	if ceiling := equity * maxEquityFraction; riskUsd > ceiling {
		riskUsd = ceiling
	}
	size := riskUsd * float64(c.params.Leverage) / price
	if size <= 0 {
		return nil
	}

	c.ensureLeverage(ctx, symbol)

	orderID, err := c.client.PlaceMarketOrder(ctx, symbol, sig.Side, size, assess.StopLoss, assess.TakeProfit)
	if err != nil {
		if exchange.IsRejected(err) {
			c.log.Info("order_rejected",
				zap.String("symbol", symbol),
				zap.Error(err))
			return nil
		}
		return fmt.Errorf("placing %s order for %s: %w", sig.Side, symbol, err)
	}

	// Strict protection: SL/TP must be confirmed on the exchange or the
	// position is closed immediately.
	if err := c.client.SetTradingStop(ctx, symbol, assess.StopLoss, assess.TakeProfit); err != nil {
		c.log.Error("protection_failed_force_closing",
			zap.String("symbol", symbol),
			zap.String("order_id", orderID),
			zap.Error(err))
		if cerr := c.client.ClosePosition(ctx, symbol, sig.Side, size); cerr != nil {
			return fmt.Errorf("force-closing unprotected %s position after stop failure (%v): %w", symbol, err, cerr)
		}
		c.notifier.Notify(ctx, fmt.Sprintf("emergency close %s: SL/TP could not be set (%v)", symbol, err))
		return fmt.Errorf("establishing protection for %s: %w", symbol, err)
	}

	if orderID == "" {
		orderID = ulid.Make().String()
	}
	pos := model.Position{
		ID:             orderID,
		Symbol:         symbol,
		Side:           sig.Side,
		Size:           size,
		Leverage:       c.params.Leverage,
		EntryPrice:     price,
		StopLoss:       assess.StopLoss,
		TakeProfit:     assess.TakeProfit,
		RiskModel:      assess.Model,
		StrategyTag:    c.params.StrategyTag,
		SlTpOnExchange: true,
		OpenedAt:       c.now(),
	}
	c.tracker.Track(pos)
	c.markEntry(symbol)

	c.log.Info("position_opened",
		zap.String("symbol", symbol),
		zap.String("side", string(sig.Side)),
		zap.Float64("size", size),
		zap.Float64("entry", price),
		zap.Float64("stop_loss", assess.StopLoss),
		zap.Float64("take_profit", assess.TakeProfit),
		zap.String("regime", assess.Regime),
		zap.Int("strength", sig.Strength))
	c.notifier.Notify(ctx, fmt.Sprintf("%s %s @ %.6g, SL %.6g TP %.6g (strength %d)",
		sig.Side, symbol, price, assess.StopLoss, assess.TakeProfit, sig.Strength))
	return nil
}

// Manage reconciles local state with the exchange, records closes,
// feeds the drawdown breaker, enforces the redundant local stop, and
// promotes trailing stops.
func (c *Controller) Manage(ctx context.Context) error {
	snaps, err := c.client.FetchPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetching positions: %w", err)
	}
	closed, adopted := c.tracker.Reconcile(snaps)
	for _, cl := range closed {
		c.finalize(ctx, cl, c.classifyClose(cl))
	}
	for _, pos := range adopted {
		c.log.Warn("position_adopted",
			zap.String("symbol", pos.Symbol),
			zap.String("side", string(pos.Side)),
			zap.Float64("size", pos.Size))
	}

	if bal, err := c.client.FetchBalance(ctx); err == nil {
		equity := bal.Free
		for _, s := range snaps {
			equity += s.UnrealizedPnl
		}
		c.session.Observe(equity)
	} else {
		c.log.Warn("balance_fetch_failed", zap.Error(err))
	}

	for _, s := range snaps {
		if s.Contracts <= 0 {
			continue
		}
		pos, ok := c.tracker.Get(s.Symbol)
		if !ok {
			continue
		}
		if reason, hit := c.localStopHit(pos, s.MarkPrice); hit {
			c.log.Warn("local_stop_triggered",
				zap.String("symbol", pos.Symbol),
				zap.String("reason", string(reason)),
				zap.Float64("mark", s.MarkPrice))
			if err := c.closePosition(ctx, pos, reason, s.MarkPrice); err != nil {
				c.log.Error("local_stop_close_failed",
					zap.String("symbol", pos.Symbol),
					zap.Error(err))
			}
			continue
		}
		if !pos.Trailed && s.PnlPct() >= trailTriggerPct {
			c.trail(ctx, pos)
		}
	}
	return nil
}

// CheckReversal counts sustained opposite confluence signals against an
// open position and closes it once confirmed on consecutive cycles.
func (c *Controller) CheckReversal(ctx context.Context, symbol string, side model.Side, strength int, htf model.Status) error {
	pos, ok := c.tracker.Get(symbol)
	if !ok {
		c.resetVotes(symbol)
		return nil
	}
	opp := pos.Side.Opposite()
	htfFavors := (opp == model.SideBuy && htf == model.StatusBull) ||
		(opp == model.SideSell && htf == model.StatusBear)
	if side != opp || strength < c.params.ExitMinStrength || !htfFavors {
		c.resetVotes(symbol)
		return nil
	}

	votes := c.vote(symbol, side)
	c.log.Info("reversal_confirmation",
		zap.String("symbol", symbol),
		zap.String("against", string(pos.Side)),
		zap.Int("votes", votes),
		zap.Int("needed", c.params.ExitConfirmations))
	if votes < c.params.ExitConfirmations {
		return nil
	}
	c.resetVotes(symbol)
	return c.closePosition(ctx, pos, model.CloseReasonSignal, 0)
}

// closePosition closes with a reduce-only order and journals the result.
func (c *Controller) closePosition(ctx context.Context, pos model.Position, reason model.CloseReason, exitPrice float64) error {
	if !c.acquire(pos.Symbol) {
		return nil
	}
	defer c.release(pos.Symbol)

	if err := c.client.ClosePosition(ctx, pos.Symbol, pos.Side, pos.Size); err != nil {
		return fmt.Errorf("closing %s position: %w", pos.Symbol, err)
	}
	cl, ok := c.tracker.Remove(pos.Symbol)
	if !ok {
		cl = Closed{Position: pos, ExitPrice: pos.EntryPrice}
	}
	if exitPrice > 0 {
		cl.ExitPrice = exitPrice
	}
	c.finalize(ctx, cl, reason)
	return nil
}

// finalize writes the journal record and notifies. Journal failures are
// logged, never raised.
func (c *Controller) finalize(ctx context.Context, cl Closed, reason model.CloseReason) {
	pos := cl.Position
	dir := 1.0
	if pos.Side == model.SideSell {
		dir = -1.0
	}
	pnlUsd := (cl.ExitPrice - pos.EntryPrice) * pos.Size * dir
	pnlPct := 0.0
	if pos.EntryPrice > 0 {
		pnlPct = (cl.ExitPrice - pos.EntryPrice) / pos.EntryPrice * 100 * dir
	}

	rec := model.TradeRecord{
		ID:          pos.ID,
		Symbol:      pos.Symbol,
		Side:        pos.Side,
		Strategy:    pos.StrategyTag,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   cl.ExitPrice,
		Size:        pos.Size,
		Leverage:    pos.Leverage,
		PnlUsd:      pnlUsd,
		PnlPct:      pnlPct,
		CloseReason: reason,
		StopLoss:    pos.StopLoss,
		TakeProfit:  pos.TakeProfit,
		OpenedAt:    pos.OpenedAt,
		ClosedAt:    c.now(),
	}
	if err := c.journal.Record(ctx, rec); err != nil {
		c.log.Warn("journal_write_failed",
			zap.String("symbol", pos.Symbol),
			zap.Error(err))
	}
	c.resetVotes(pos.Symbol)
	c.log.Info("position_closed",
		zap.String("symbol", pos.Symbol),
		zap.String("side", string(pos.Side)),
		zap.String("close_reason", string(reason)),
		zap.Float64("pnl_usd", pnlUsd),
		zap.Float64("pnl_pct", pnlPct))
	c.notifier.Notify(ctx, fmt.Sprintf("closed %s %s (%s): %+.2f USDT (%+.2f%%)",
		pos.Side, pos.Symbol, reason, pnlUsd, pnlPct))
}

// trail promotes the stop to entry +/- the lock, once per position.
// Permission failures degrade stop sync to local-only tracking.
func (c *Controller) trail(ctx context.Context, pos model.Position) {
	key := pos.Symbol + "|stop"
	if c.inBackoff(key) {
		return
	}
	newSL := pos.EntryPrice * (1 + trailLockPct/100)
	if pos.Side == model.SideSell {
		newSL = pos.EntryPrice * (1 - trailLockPct/100)
	}
	if err := c.client.SetTradingStop(ctx, pos.Symbol, newSL, pos.TakeProfit); err != nil {
		if exchange.IsPermission(err) {
			c.setBackoff(key)
			c.tracker.Update(pos.Symbol, func(p *model.Position) { p.SlTpOnExchange = false })
			c.log.Warn("stop_sync_degraded_to_local",
				zap.String("symbol", pos.Symbol),
				zap.Error(err))
			return
		}
		c.log.Warn("trailing_stop_failed",
			zap.String("symbol", pos.Symbol),
			zap.Error(err))
		return
	}
	c.tracker.Update(pos.Symbol, func(p *model.Position) {
		p.StopLoss = newSL
		p.Trailed = true
	})
	c.log.Info("trailing_stop_set",
		zap.String("symbol", pos.Symbol),
		zap.Float64("new_stop", newSL))
	c.notifier.Notify(ctx, fmt.Sprintf("%s stop trailed to %.6g", pos.Symbol, newSL))
}

// localStopHit checks the redundant local stop against the mark price.
func (c *Controller) localStopHit(pos model.Position, mark float64) (model.CloseReason, bool) {
	if mark <= 0 {
		return "", false
	}
	if pos.Side == model.SideBuy {
		if pos.StopLoss > 0 && mark <= pos.StopLoss {
			return model.CloseReasonSL, true
		}
		if pos.TakeProfit > 0 && mark >= pos.TakeProfit {
			return model.CloseReasonTP, true
		}
		return "", false
	}
	if pos.StopLoss > 0 && mark >= pos.StopLoss {
		return model.CloseReasonSL, true
	}
	if pos.TakeProfit > 0 && mark <= pos.TakeProfit {
		return model.CloseReasonTP, true
	}
	return "", false
}

// classifyClose attributes an exchange-side close to SL, TP or Manual
// by comparing the exit estimate against the protective levels.
func (c *Controller) classifyClose(cl Closed) model.CloseReason {
	pos := cl.Position
	exit := cl.ExitPrice
	if pos.Side == model.SideBuy {
		if pos.StopLoss > 0 && exit <= pos.StopLoss*(1+closeMatchTolerance) {
			return model.CloseReasonSL
		}
		if pos.TakeProfit > 0 && exit >= pos.TakeProfit*(1-closeMatchTolerance) {
			return model.CloseReasonTP
		}
		return model.CloseReasonManual
	}
	if pos.StopLoss > 0 && exit >= pos.StopLoss*(1-closeMatchTolerance) {
		return model.CloseReasonSL
	}
	if pos.TakeProfit > 0 && exit <= pos.TakeProfit*(1+closeMatchTolerance) {
		return model.CloseReasonTP
	}
	return model.CloseReasonManual
}

// ensureLeverage sets the symbol leverage once. Failures are logged and
// do not block the entry; SetLeverage is idempotent on the exchange.
func (c *Controller) ensureLeverage(ctx context.Context, symbol string) {
	c.mu.Lock()
	done := c.leverageSet[symbol]
	c.mu.Unlock()
	if done {
		return
	}
	if err := c.client.SetLeverage(ctx, symbol, c.params.Leverage); err != nil {
		c.log.Warn("set_leverage_failed",
			zap.String("symbol", symbol),
			zap.Int("leverage", c.params.Leverage),
			zap.Error(err))
		return
	}
	c.mu.Lock()
	c.leverageSet[symbol] = true
	c.mu.Unlock()
}

// acquire claims the symbol's in-flight slot; order mutations for a
// symbol never run concurrently.
func (c *Controller) acquire(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[symbol] {
		return false
	}
	c.inflight[symbol] = true
	return true
}

func (c *Controller) release(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, symbol)
}

func (c *Controller) cooldownElapsed(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.lastEntry[symbol]
	return !ok || c.now().Sub(last) >= c.params.EntryCooldown
}

func (c *Controller) markEntry(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastEntry[symbol] = c.now()
}

func (c *Controller) vote(symbol string, side model.Side) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.exitVotes[symbol]
	if v.side != side {
		v = exitVote{side: side}
	}
	v.count++
	c.exitVotes[symbol] = v
	return v.count
}

func (c *Controller) resetVotes(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.exitVotes, symbol)
}

func (c *Controller) inBackoff(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.backoffs[key]
	return ok && c.now().Before(until)
}

func (c *Controller) setBackoff(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backoffs[key] = c.now().Add(permissionBackoff)
}
