package indicator

import (
	"fmt"

	"go-signals/internal/model"
)

// BOSConfirmation selects the price source that confirms a breakout.
type BOSConfirmation string

const (
	ConfirmClose BOSConfirmation = "close"
	ConfirmWicks BOSConfirmation = "wicks"
)

// SmartMoneyParams tunes the smart-money breakout engine.
type SmartMoneyParams struct {
	SwingSize    int
	Confirmation BOSConfirmation
	LabelCHoCH   bool
}

// DefaultSmartMoneyParams returns the published defaults.
func DefaultSmartMoneyParams() SmartMoneyParams {
	return SmartMoneyParams{
		SwingSize:    25,
		Confirmation: ConfirmClose,
		LabelCHoCH:   true,
	}
}

// smartMoneyMemory persists the active swing levels and the direction of
// the last confirmed breakout for one symbol.
type smartMoneyMemory struct {
	prevHigh    float64
	hasHigh     bool
	prevLow     float64
	hasLow      bool
	highActive  bool
	lowActive   bool
	breakoutDir int // +1 bullish, -1 bearish, 0 never broken
}

// SmartMoney detects breaks of large swing levels. Each side keeps a
// single active level that is consumed by its first break and re-armed
// only by a new pivot of the same kind.
type SmartMoney struct {
	params SmartMoneyParams
	mem    *memoryMap[smartMoneyMemory]
}

// NewSmartMoney creates the engine with the given parameters.
func NewSmartMoney(p SmartMoneyParams) *SmartMoney {
	return &SmartMoney{
		params: p,
		mem:    newMemoryMap(func() *smartMoneyMemory { return &smartMoneyMemory{} }),
	}
}

func (sm *SmartMoney) Key() string     { return KeySmartMoney }
func (sm *SmartMoney) MinCandles() int { return 300 }

// Compute replays the window, arming pivots and consuming breaks; only
// breaks on the last bar are surfaced.
func (sm *SmartMoney) Compute(symbol string, _ model.Timeframe, candles []model.Candle) []model.Signal {
	if len(candles) < sm.MinCandles() {
		return nil
	}
	p := sm.params

	hi := highs(candles)
	lo := lows(candles)
	cl := closes(candles)
	n := len(candles) - 1

	var out []model.Signal

	sm.mem.update(symbol, func(mem *smartMoneyMemory) {
		for i := 0; i < len(candles); i++ {
			if ph, ok := PivotHigh(hi, i, p.SwingSize); ok {
				mem.prevHigh = ph
				mem.hasHigh = true
				mem.highActive = true
			}
			if pl, ok := PivotLow(lo, i, p.SwingSize); ok {
				mem.prevLow = pl
				mem.hasLow = true
				mem.lowActive = true
			}

			highSrc, lowSrc := cl[i], cl[i]
			if p.Confirmation == ConfirmWicks {
				highSrc, lowSrc = hi[i], lo[i]
			}

			if mem.hasHigh && mem.highActive && highSrc > mem.prevHigh {
				mem.highActive = false
				kind := model.KindBOS
				if p.LabelCHoCH && mem.breakoutDir == -1 {
					kind = model.KindCHoCH
				}
				mem.breakoutDir = 1
				if i == n {
					out = append(out, model.Signal{
						Symbol:  symbol,
						Side:    model.SideBuy,
						Kind:    kind,
						Message: fmt.Sprintf("bullish breakout (%s) above %.6g, close %.6g", kind, mem.prevHigh, cl[i]),
						Ts:      candles[i].Ts,
						Price:   cl[i],
					})
				}
			}
			if mem.hasLow && mem.lowActive && lowSrc < mem.prevLow {
				mem.lowActive = false
				kind := model.KindBOS
				if p.LabelCHoCH && mem.breakoutDir == 1 {
					kind = model.KindCHoCH
				}
				mem.breakoutDir = -1
				if i == n {
					out = append(out, model.Signal{
						Symbol:  symbol,
						Side:    model.SideSell,
						Kind:    kind,
						Message: fmt.Sprintf("bearish breakout (%s) below %.6g, close %.6g", kind, mem.prevLow, cl[i]),
						Ts:      candles[i].Ts,
						Price:   cl[i],
					})
				}
			}
		}
	})
	return out
}

// Status maps the last breakout direction to a directional verdict.
func (sm *SmartMoney) Status(symbol string) model.Status {
	mem, ok := sm.mem.snapshot(symbol)
	if !ok {
		return model.StatusNA
	}
	switch {
	case mem.breakoutDir > 0:
		return model.StatusBull
	case mem.breakoutDir < 0:
		return model.StatusBear
	default:
		return model.StatusNeutral
	}
}

func (sm *SmartMoney) Detail(symbol string) string {
	switch sm.Status(symbol) {
	case model.StatusBull:
		return "last breakout up"
	case model.StatusBear:
		return "last breakout down"
	case model.StatusNeutral:
		return "no breakout yet"
	default:
		return "no data"
	}
}
