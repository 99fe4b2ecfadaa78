// Package indicator implements the three stateful signal engines: EMA
// market structure, smart-money breakout, and supertrend trend targets.
//
// Each engine replays the full candle window on every call so behavior is
// reproducible regardless of when polling starts; only small cross-call
// facts (last swing, last breakout, current trend) persist in per-symbol
// memory owned by the engine.
package indicator

import (
	"sync"

	"go-signals/internal/model"
)

// Indicator keys used across the aggregator and status API.
const (
	KeyMarketStructure = "ema_ms"
	KeySmartMoney      = "smart_money"
	KeyTrendTargets    = "trend_targets"
)

// Indicator is one signal engine. Compute consumes the full closed-candle
// window for a symbol, mutates that symbol's memory, and returns signals
// that fired on the window's last bar. Status and Detail read the memory
// left behind by the most recent Compute.
type Indicator interface {
	Key() string
	MinCandles() int
	Compute(symbol string, tf model.Timeframe, candles []model.Candle) []model.Signal
	Status(symbol string) model.Status
	Detail(symbol string) string
}

// State bundles an indicator's current verdict for the aggregator.
func State(ind Indicator, symbol string) model.IndicatorState {
	return model.IndicatorState{
		Status: ind.Status(symbol),
		Detail: ind.Detail(symbol),
	}
}

// Registry is the fixed, explicitly registered set of indicator engines.
// Missing implementations are a compile-time absence, not a runtime stub.
type Registry struct {
	indicators []Indicator
}

// NewRegistry creates the standard three-engine registry with default
// parameters.
func NewRegistry() *Registry {
	return &Registry{
		indicators: []Indicator{
			NewMarketStructure(DefaultMarketStructureParams()),
			NewSmartMoney(DefaultSmartMoneyParams()),
			NewTrendTargets(DefaultTrendTargetsParams()),
		},
	}
}

// All returns the registered engines in evaluation order.
func (r *Registry) All() []Indicator {
	return r.indicators
}

// ByKey returns the engine with the given key, or nil.
func (r *Registry) ByKey(key string) Indicator {
	for _, ind := range r.indicators {
		if ind.Key() == key {
			return ind
		}
	}
	return nil
}

// memoryMap is a small generic helper owning per-symbol indicator memory.
// The mutex guards the memory itself, not just the map: Compute mutates
// under update while Status/Detail read copies under snapshot, so status
// readers on other goroutines never observe a half-applied pass.
type memoryMap[T any] struct {
	mu  sync.Mutex
	m   map[string]*T
	new func() *T
}

func newMemoryMap[T any](mk func() *T) *memoryMap[T] {
	return &memoryMap[T]{m: make(map[string]*T), new: mk}
}

// update runs fn against the symbol's memory under the lock, creating
// the memory on first use.
func (mm *memoryMap[T]) update(symbol string, fn func(*T)) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	v, ok := mm.m[symbol]
	if !ok {
		v = mm.new()
		mm.m[symbol] = v
	}
	fn(v)
}

// snapshot returns a copy of the symbol's memory, or false when the
// symbol was never computed.
func (mm *memoryMap[T]) snapshot(symbol string) (T, bool) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if v, ok := mm.m[symbol]; ok {
		return *v, true
	}
	var zero T
	return zero, false
}
