// Package confluence combines the indicator engines into one per-symbol
// verdict, applies the higher-timeframe trend filter, and rate-limits
// repeated alerts.
package confluence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"go-signals/internal/exchange"
	"go-signals/internal/indicator"
	"go-signals/internal/model"
)

// candleLimit is the window requested per evaluation; comfortably above
// every engine's minimum.
const candleLimit = 500

// htfCandleLimit covers the higher-timeframe filter, which only needs
// the EMA market-structure engine.
const htfCandleLimit = 300

// Evaluation is the outcome of one confluence cycle for a symbol.
type Evaluation struct {
	Composite model.CompositeSignal
	Events    []model.Signal // last-bar indicator events
	Trade     *model.TradeSignal
	HTF       model.Status
	Vetoed    bool // a qualifying signal was suppressed by the HTF filter
}

// lastEmit remembers the previously emitted trade direction and strength
// for the anti-spam gate.
type lastEmit struct {
	side     model.Side
	strength int
}

// Options tunes the aggregator's caching behavior.
type Options struct {
	SignalTTL time.Duration // evaluation cache
	HTFTTL    time.Duration // higher-timeframe verdict cache
	Now       func() time.Time
}

// Aggregator owns the indicator registry and a dedicated higher-timeframe
// trend engine. Engine memory is keyed by symbol only, so the HTF filter
// runs on its own engine instance to keep the trading-timeframe memory
// untouched.
type Aggregator struct {
	log       *zap.Logger
	client    exchange.Client
	registry  *indicator.Registry
	htfFilter *indicator.MarketStructure

	evalCache *ttlCache[Evaluation]
	htfCache  *ttlCache[model.Status]

	emitMu sync.Mutex
	prev   map[string]lastEmit
	now    func() time.Time
}

// New creates an aggregator over the given exchange client and registry.
func New(log *zap.Logger, client exchange.Client, registry *indicator.Registry, opts Options) *Aggregator {
	if opts.SignalTTL <= 0 {
		opts.SignalTTL = 10 * time.Second
	}
	if opts.HTFTTL <= 0 {
		opts.HTFTTL = 5 * time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		log:       log,
		client:    client,
		registry:  registry,
		htfFilter: indicator.NewMarketStructure(indicator.DefaultMarketStructureParams()),
		evalCache: newTTLCache[Evaluation](opts.SignalTTL, now),
		htfCache:  newTTLCache[model.Status](opts.HTFTTL, now),
		prev:      make(map[string]lastEmit),
		now:       now,
	}
}

// Evaluate runs every engine for the symbol and composes the result.
// Repeated calls within the signal TTL return the cached evaluation
// without touching the exchange.
func (a *Aggregator) Evaluate(ctx context.Context, symbol string, tf model.Timeframe) (Evaluation, error) {
	key := symbol + "|" + string(tf)
	if ev, ok := a.evalCache.get(key); ok {
		return ev, nil
	}

	candles, err := a.client.FetchClosedCandles(ctx, symbol, tf, candleLimit)
	if err != nil {
		return Evaluation{}, fmt.Errorf("fetching %s %s candles: %w", symbol, tf, err)
	}

	ev := Evaluation{
		Composite: model.CompositeSignal{
			Symbol:     symbol,
			Indicators: make(map[string]model.IndicatorState),
		},
	}
	for _, ind := range a.registry.All() {
		ev.Events = append(ev.Events, ind.Compute(symbol, tf, candles)...)
		ev.Composite.Indicators[ind.Key()] = indicator.State(ind, symbol)
	}
	ev.Composite.Status = composeStatus(ev.Composite.Indicators)
	ev.HTF = a.htfStatus(ctx, symbol, tf)

	side, strength := ev.Composite.Strength()
	if side == "" {
		a.resetEmit(symbol)
	} else if a.htfVetoes(side, ev.HTF) {
		ev.Vetoed = true
		a.log.Debug("signal_filtered_by_htf",
			zap.String("symbol", symbol),
			zap.String("side", string(side)),
			zap.String("htf_status", string(ev.HTF)))
	} else if a.shouldEmit(symbol, side, strength) {
		ev.Trade = a.buildTradeSignal(symbol, side, strength, candles, ev)
		a.log.Info("trade_signal",
			zap.String("symbol", symbol),
			zap.String("side", string(side)),
			zap.Int("strength", strength),
			zap.Float64("entry", ev.Trade.EntryPrice))
	}

	a.evalCache.set(key, ev)
	return ev, nil
}

// InvalidateHTF drops the cached higher-timeframe verdict for a symbol.
func (a *Aggregator) InvalidateHTF(symbol string, tf model.Timeframe) {
	a.htfCache.del(symbol + "|" + string(tf.Higher()))
}

// HTFStatus returns the cached or freshly computed higher-timeframe
// trend verdict for the symbol.
func (a *Aggregator) HTFStatus(ctx context.Context, symbol string, tf model.Timeframe) model.Status {
	return a.htfStatus(ctx, symbol, tf)
}

func (a *Aggregator) htfStatus(ctx context.Context, symbol string, tf model.Timeframe) model.Status {
	htf := tf.Higher()
	key := symbol + "|" + string(htf)
	if st, ok := a.htfCache.get(key); ok {
		return st
	}

	candles, err := a.client.FetchClosedCandles(ctx, symbol, htf, htfCandleLimit)
	if err != nil {
		// The filter fails open: an unavailable higher timeframe never
		// blocks trading, it only stops vetoing.
		a.log.Warn("htf_fetch_failed",
			zap.String("symbol", symbol),
			zap.String("timeframe", string(htf)),
			zap.Error(err))
		return model.StatusNA
	}

	a.htfFilter.Compute(symbol, htf, candles)
	st := a.htfFilter.Status(symbol)
	a.htfCache.set(key, st)
	return st
}

// htfVetoes reports whether the higher-timeframe trend contradicts the
// proposed direction. Neutral or unknown trends never veto.
func (a *Aggregator) htfVetoes(side model.Side, htf model.Status) bool {
	switch side {
	case model.SideBuy:
		return htf == model.StatusBear
	case model.SideSell:
		return htf == model.StatusBull
	default:
		return false
	}
}

// shouldEmit applies the anti-spam gate: a direction change or a strength
// increase passes, an identical or weaker repeat does not.
func (a *Aggregator) shouldEmit(symbol string, side model.Side, strength int) bool {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()
	prev, seen := a.prev[symbol]
	if seen && prev.side == side && strength <= prev.strength {
		return false
	}
	a.prev[symbol] = lastEmit{side: side, strength: strength}
	return true
}

func (a *Aggregator) resetEmit(symbol string) {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()
	delete(a.prev, symbol)
}

// buildTradeSignal assembles the controller-facing signal, preferring
// stop/target suggestions from the agreeing indicator events.
func (a *Aggregator) buildTradeSignal(symbol string, side model.Side, strength int, candles []model.Candle, ev Evaluation) *model.TradeSignal {
	entry := candles[len(candles)-1].Close
	ts := &model.TradeSignal{
		Symbol:     symbol,
		Side:       side,
		Strength:   strength,
		EntryPrice: entry,
		Reason:     reason(ev.Composite, side),
		Time:       a.now(),
	}
	for _, sig := range ev.Events {
		if sig.Side != side {
			continue
		}
		if sig.StopLoss != 0 && ts.StopLoss == 0 {
			ts.StopLoss = sig.StopLoss
		}
		if sig.TakeProfit != 0 && ts.TakeProfit == 0 {
			ts.TakeProfit = sig.TakeProfit
		}
	}
	return ts
}

// composeStatus derives the composite verdict by simple majority.
func composeStatus(states map[string]model.IndicatorState) model.Status {
	bulls, bears := 0, 0
	for _, st := range states {
		switch st.Status {
		case model.StatusBull:
			bulls++
		case model.StatusBear:
			bears++
		}
	}
	switch {
	case bulls > bears && bulls > 0:
		return model.StatusBull
	case bears > bulls && bears > 0:
		return model.StatusBear
	default:
		return model.StatusNeutral
	}
}

// reason summarizes the agreeing indicator details for the journal.
func reason(c model.CompositeSignal, side model.Side) string {
	want := model.StatusBull
	if side == model.SideSell {
		want = model.StatusBear
	}
	out := ""
	for _, key := range []string{indicator.KeyMarketStructure, indicator.KeySmartMoney, indicator.KeyTrendTargets} {
		st, ok := c.Indicators[key]
		if !ok || st.Status != want {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += key + ": " + st.Detail
	}
	return out
}
