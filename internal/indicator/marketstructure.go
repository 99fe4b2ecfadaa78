package indicator

import (
	"fmt"

	"go-signals/internal/model"
)

// MarketStructureParams tunes the EMA market-structure engine.
type MarketStructureParams struct {
	EMALength    int
	SwingLength  int
	SwingCooloff int // bars between plotted swings, in timeframe units
	BOSCooloff   int // bars between breaks of the same direction
	SLBufferPct  float64
}

// DefaultMarketStructureParams returns the published defaults.
func DefaultMarketStructureParams() MarketStructureParams {
	return MarketStructureParams{
		EMALength:    50,
		SwingLength:  5,
		SwingCooloff: 10,
		BOSCooloff:   15,
		SLBufferPct:  0.1,
	}
}

// marketStructureMemory persists the cross-call swing/breakout facts for
// one symbol. Cooloffs are tracked as timestamps, not indices, so candle
// gaps do not shorten them.
type marketStructureMemory struct {
	lastSwingHigh    float64
	lastSwingHighTs  int64
	lastSwingLow     float64
	lastSwingLowTs   int64
	prevSwingHigh    float64
	hasPrevSwingHigh bool
	prevSwingLow     float64
	hasPrevSwingLow  bool
	lastBullBOSTs    int64
	lastBearBOSTs    int64
	lastBOSDir       int // +1 bullish, -1 bearish, 0 none
	emaTrend         int
}

// MarketStructure detects swing pivots and EMA-trend-aligned breaks of
// structure over a replayed candle window.
type MarketStructure struct {
	params MarketStructureParams
	mem    *memoryMap[marketStructureMemory]
}

// NewMarketStructure creates the engine with the given parameters.
func NewMarketStructure(p MarketStructureParams) *MarketStructure {
	return &MarketStructure{
		params: p,
		mem:    newMemoryMap(func() *marketStructureMemory { return &marketStructureMemory{} }),
	}
}

func (ms *MarketStructure) Key() string     { return KeyMarketStructure }
func (ms *MarketStructure) MinCandles() int { return 200 }

// barsSince converts a timestamp distance to whole bars. A zero lastTs
// means "never", which always satisfies any cooloff.
func barsSince(lastTs, curTs, tfMillis int64) int64 {
	if lastTs == 0 || tfMillis <= 0 {
		return 1 << 40
	}
	return (curTs - lastTs) / tfMillis
}

// Compute replays the window, updating swing/BOS memory on every index
// and surfacing signals only for events on the last bar.
func (ms *MarketStructure) Compute(symbol string, tf model.Timeframe, candles []model.Candle) []model.Signal {
	if len(candles) < ms.MinCandles() {
		return nil
	}
	p := ms.params
	tfMillis := tf.Millis()

	hi := highs(candles)
	lo := lows(candles)
	cl := closes(candles)
	ema := EMA(cl, p.EMALength)
	n := len(candles) - 1

	var out []model.Signal

	ms.mem.update(symbol, func(mem *marketStructureMemory) {
		for i := 1; i < len(candles); i++ {
			curTs := candles[i].Ts
			trend := 0
			if ema[i] > ema[i-1] {
				trend = 1
			} else if ema[i] < ema[i-1] {
				trend = -1
			}

			if ph, ok := PivotHigh(hi, i, p.SwingLength); ok &&
				barsSince(mem.lastSwingHighTs, curTs, tfMillis) >= int64(p.SwingCooloff) {
				if mem.lastSwingHighTs != 0 {
					mem.prevSwingHigh = mem.lastSwingHigh
					mem.hasPrevSwingHigh = true
				}
				mem.lastSwingHigh = ph
				mem.lastSwingHighTs = curTs
			}
			if pl, ok := PivotLow(lo, i, p.SwingLength); ok &&
				barsSince(mem.lastSwingLowTs, curTs, tfMillis) >= int64(p.SwingCooloff) {
				if mem.lastSwingLowTs != 0 {
					mem.prevSwingLow = mem.lastSwingLow
					mem.hasPrevSwingLow = true
				}
				mem.lastSwingLow = pl
				mem.lastSwingLowTs = curTs
			}

			bullish := barsSince(mem.lastBullBOSTs, curTs, tfMillis) >= int64(p.BOSCooloff) &&
				trend == 1 && mem.hasPrevSwingHigh &&
				cl[i] > mem.prevSwingHigh && cl[i-1] <= mem.prevSwingHigh
			bearish := barsSince(mem.lastBearBOSTs, curTs, tfMillis) >= int64(p.BOSCooloff) &&
				trend == -1 && mem.hasPrevSwingLow &&
				cl[i] < mem.prevSwingLow && cl[i-1] >= mem.prevSwingLow

			if bullish {
				mem.lastBullBOSTs = curTs
				kind := model.KindBOS
				if mem.lastBOSDir == -1 {
					kind = model.KindCHoCH
				}
				mem.lastBOSDir = 1
				if i == n {
					sl := lo[i] * (1 - p.SLBufferPct/100)
					out = append(out, model.Signal{
						Symbol:   symbol,
						Side:     model.SideBuy,
						Kind:     kind,
						Message:  fmt.Sprintf("bullish %s above %.6g, close %.6g", kind, mem.prevSwingHigh, cl[i]),
						Ts:       curTs,
						Price:    cl[i],
						StopLoss: sl,
					})
				}
			}
			if bearish {
				mem.lastBearBOSTs = curTs
				kind := model.KindBOS
				if mem.lastBOSDir == 1 {
					kind = model.KindCHoCH
				}
				mem.lastBOSDir = -1
				if i == n {
					sl := hi[i] * (1 + p.SLBufferPct/100)
					out = append(out, model.Signal{
						Symbol:   symbol,
						Side:     model.SideSell,
						Kind:     kind,
						Message:  fmt.Sprintf("bearish %s below %.6g, close %.6g", kind, mem.prevSwingLow, cl[i]),
						Ts:       curTs,
						Price:    cl[i],
						StopLoss: sl,
					})
				}
			}
		}

		switch {
		case ema[n] > ema[n-1]:
			mem.emaTrend = 1
		case ema[n] < ema[n-1]:
			mem.emaTrend = -1
		default:
			mem.emaTrend = 0
		}
	})
	return out
}

// Status maps the last EMA-trend sign to a directional verdict.
func (ms *MarketStructure) Status(symbol string) model.Status {
	mem, ok := ms.mem.snapshot(symbol)
	if !ok {
		return model.StatusNA
	}
	switch {
	case mem.emaTrend > 0:
		return model.StatusBull
	case mem.emaTrend < 0:
		return model.StatusBear
	default:
		return model.StatusNeutral
	}
}

func (ms *MarketStructure) Detail(symbol string) string {
	switch ms.Status(symbol) {
	case model.StatusBull:
		return "EMA trend up"
	case model.StatusBear:
		return "EMA trend down"
	case model.StatusNeutral:
		return "EMA trend flat"
	default:
		return "no data"
	}
}
