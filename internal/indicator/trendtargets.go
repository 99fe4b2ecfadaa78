package indicator

import (
	"fmt"

	"go-signals/internal/model"
)

// TrendTargetsParams tunes the supertrend trend-flip engine.
type TrendTargetsParams struct {
	Factor       float64
	ATRPeriod    int
	WMALength    int
	EMALength    int
	VolATRPeriod int     // ATR length for SL distance
	SLMultiplier float64 // ATR multiples below/above the flip bar
	TP1          float64 // fractions of the entry-to-SL distance
	TP2          float64
	TP3          float64
}

// DefaultTrendTargetsParams returns the published defaults.
func DefaultTrendTargetsParams() TrendTargetsParams {
	return TrendTargetsParams{
		Factor:       12.0,
		ATRPeriod:    90,
		WMALength:    40,
		EMALength:    14,
		VolATRPeriod: 14,
		SLMultiplier: 5.0,
		TP1:          0.5,
		TP2:          1.0,
		TP3:          1.5,
	}
}

// trendTargetsMemory persists the current trend sign for one symbol.
type trendTargetsMemory struct {
	trend int // +1 up, -1 down, 0 unknown
}

// TrendTargets smooths a wide supertrend band midline into a trend line
// and signals on fresh flips with ATR-derived stop and layered targets.
type TrendTargets struct {
	params TrendTargetsParams
	mem    *memoryMap[trendTargetsMemory]
}

// NewTrendTargets creates the engine with the given parameters.
func NewTrendTargets(p TrendTargetsParams) *TrendTargets {
	return &TrendTargets{
		params: p,
		mem:    newMemoryMap(func() *trendTargetsMemory { return &trendTargetsMemory{} }),
	}
}

func (tt *TrendTargets) Key() string     { return KeyTrendTargets }
func (tt *TrendTargets) MinCandles() int { return 300 }

// supertrendBands returns the ratcheted lower and upper bands around hl2.
// Each band depends on its own prior value, so the rule is applied
// bar-by-bar: the lower band may only rise unless the previous close
// broke below it, and symmetrically for the upper band.
func supertrendBands(candles []model.Candle, factor float64, atrPeriod int) (lower, upper []float64) {
	n := len(candles)
	atr := ATR(candles, atrPeriod)
	lower = make([]float64, n)
	upper = make([]float64, n)
	for i, c := range candles {
		hl2 := (c.High + c.Low) / 2
		lower[i] = hl2 - factor*atr[i]
		upper[i] = hl2 + factor*atr[i]
	}
	for i := 1; i < n; i++ {
		prevClose := candles[i-1].Close
		if !(lower[i] > lower[i-1] || prevClose < lower[i-1]) {
			lower[i] = lower[i-1]
		}
		if !(upper[i] < upper[i-1] || prevClose > upper[i-1]) {
			upper[i] = upper[i-1]
		}
	}
	return lower, upper
}

// Compute replays the window to recover the trend sign, then emits a
// signal only when the last bar is a fresh flip.
func (tt *TrendTargets) Compute(symbol string, _ model.Timeframe, candles []model.Candle) []model.Signal {
	if len(candles) < tt.MinCandles() {
		return nil
	}
	p := tt.params
	n := len(candles) - 1

	lower, upper := supertrendBands(candles, p.Factor, p.ATRPeriod)
	mid := make([]float64, len(candles))
	for i := range mid {
		mid[i] = (lower[i] + upper[i]) / 2
	}
	tl := EMA(WMA(mid, p.WMALength), p.EMALength)

	// The flip test is a cross of the trend line against itself shifted
	// by one bar.
	shifted := make([]float64, len(tl))
	shifted[0] = tl[0]
	copy(shifted[1:], tl[:len(tl)-1])

	var trend, trendBeforeLast int
	tt.mem.update(symbol, func(mem *trendTargetsMemory) {
		trend = mem.trend
		trendBeforeLast = trend
		for i := 1; i < len(candles); i++ {
			if i == n {
				trendBeforeLast = trend
			}
			if crossover(tl, shifted, i) {
				trend = 1
			} else if crossunder(tl, shifted, i) {
				trend = -1
			}
		}
		mem.trend = trend
	})

	longFlip := trend == 1 && trendBeforeLast <= 0
	shortFlip := trend == -1 && trendBeforeLast >= 0
	if !longFlip && !shortFlip {
		return nil
	}

	vol := ATR(candles, p.VolATRPeriod)
	entry := candles[n].Close
	var out []model.Signal

	if longFlip {
		sl := candles[n].Low - vol[n]*p.SLMultiplier
		dist := abs(entry - sl)
		out = append(out, model.Signal{
			Symbol:     symbol,
			Side:       model.SideBuy,
			Kind:       model.KindTrend,
			Message:    fmt.Sprintf("trend flip up, entry %.6g SL %.6g TP %.6g/%.6g/%.6g", entry, sl, entry+dist*p.TP1, entry+dist*p.TP2, entry+dist*p.TP3),
			Ts:         candles[n].Ts,
			Price:      entry,
			StopLoss:   sl,
			TakeProfit: entry + dist*p.TP2,
		})
	}
	if shortFlip {
		sl := candles[n].High + vol[n]*p.SLMultiplier
		dist := abs(entry - sl)
		out = append(out, model.Signal{
			Symbol:     symbol,
			Side:       model.SideSell,
			Kind:       model.KindTrend,
			Message:    fmt.Sprintf("trend flip down, entry %.6g SL %.6g TP %.6g/%.6g/%.6g", entry, sl, entry-dist*p.TP1, entry-dist*p.TP2, entry-dist*p.TP3),
			Ts:         candles[n].Ts,
			Price:      entry,
			StopLoss:   sl,
			TakeProfit: entry - dist*p.TP2,
		})
	}
	return out
}

// Status maps the persisted trend sign to a directional verdict.
func (tt *TrendTargets) Status(symbol string) model.Status {
	mem, ok := tt.mem.snapshot(symbol)
	if !ok {
		return model.StatusNA
	}
	switch {
	case mem.trend > 0:
		return model.StatusBull
	case mem.trend < 0:
		return model.StatusBear
	default:
		return model.StatusNeutral
	}
}

func (tt *TrendTargets) Detail(symbol string) string {
	switch tt.Status(symbol) {
	case model.StatusBull:
		return "trend up"
	case model.StatusBear:
		return "trend down"
	case model.StatusNeutral:
		return "trend flat"
	default:
		return "no data"
	}
}
