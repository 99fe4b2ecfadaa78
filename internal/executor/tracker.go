package executor

import (
	"sync"

	"go-signals/internal/model"
)

// Closed pairs a removed position with the last mark price seen for it,
// used as the exit price estimate when the exchange reports it gone.
type Closed struct {
	Position  model.Position
	ExitPrice float64
}

// Tracker mirrors exchange position state locally. Reconcile is the
// single writer invoked once per cycle before any decision logic reads
// the tracked set, so decisions never see a torn view.
type Tracker struct {
	mu        sync.Mutex
	positions map[string]model.Position
	marks     map[string]float64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		positions: make(map[string]model.Position),
		marks:     make(map[string]float64),
	}
}

// Track stores a freshly opened position.
func (t *Tracker) Track(pos model.Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.positions[pos.Symbol] = pos
	t.marks[pos.Symbol] = pos.EntryPrice
}

// Get returns the tracked position for a symbol.
func (t *Tracker) Get(symbol string) (model.Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.positions[symbol]
	return pos, ok
}

// All returns a copy of every tracked position.
func (t *Tracker) All() []model.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Position, 0, len(t.positions))
	for _, pos := range t.positions {
		out = append(out, pos)
	}
	return out
}

// Count returns the number of tracked positions.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.positions)
}

// Update applies fn to the tracked position, if present.
func (t *Tracker) Update(symbol string, fn func(*model.Position)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.positions[symbol]
	if !ok {
		return false
	}
	fn(&pos)
	t.positions[symbol] = pos
	return true
}

// Remove drops and returns the tracked position along with its last
// known mark price.
func (t *Tracker) Remove(symbol string) (Closed, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.positions[symbol]
	if !ok {
		return Closed{}, false
	}
	mark := t.marks[symbol]
	delete(t.positions, symbol)
	delete(t.marks, symbol)
	if mark == 0 {
		mark = pos.EntryPrice
	}
	return Closed{Position: pos, ExitPrice: mark}, true
}

// Reconcile aligns the tracked set with the exchange snapshots: tracked
// positions no longer reported (or reported with zero contracts) are
// removed and returned as closed; reported positions never seen locally
// are adopted so exit management still covers them.
func (t *Tracker) Reconcile(snaps []model.PositionSnapshot) (closed []Closed, adopted []model.Position) {
	t.mu.Lock()
	defer t.mu.Unlock()

	live := make(map[string]model.PositionSnapshot, len(snaps))
	for _, s := range snaps {
		if s.Contracts > 0 {
			live[s.Symbol] = s
		}
	}

	for symbol, pos := range t.positions {
		s, ok := live[symbol]
		if !ok {
			mark := t.marks[symbol]
			if mark == 0 {
				mark = pos.EntryPrice
			}
			closed = append(closed, Closed{Position: pos, ExitPrice: mark})
			delete(t.positions, symbol)
			delete(t.marks, symbol)
			continue
		}
		t.marks[symbol] = s.MarkPrice
		pos.Size = s.Contracts
		if s.StopLoss > 0 {
			pos.StopLoss = s.StopLoss
		}
		if s.TakeProfit > 0 {
			pos.TakeProfit = s.TakeProfit
		}
		t.positions[symbol] = pos
	}

	for symbol, s := range live {
		if _, ok := t.positions[symbol]; ok {
			continue
		}
		pos := model.Position{
			Symbol:         symbol,
			Side:           s.Side,
			Size:           s.Contracts,
			Leverage:       s.Leverage,
			EntryPrice:     s.EntryPrice,
			StopLoss:       s.StopLoss,
			TakeProfit:     s.TakeProfit,
			StrategyTag:    "adopted",
			SlTpOnExchange: s.StopLoss > 0 || s.TakeProfit > 0,
		}
		t.positions[symbol] = pos
		t.marks[symbol] = s.MarkPrice
		adopted = append(adopted, pos)
	}
	return closed, adopted
}
