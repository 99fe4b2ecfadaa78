// Package risk derives volatility-adjusted stop/target levels and runs
// the session-level drawdown breaker.
package risk

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"go-signals/internal/exchange"
	"go-signals/internal/indicator"
	"go-signals/internal/model"
)

// Volatility regimes derived from ATR as a percentage of entry price.
const (
	RegimeLowVol    = "low_vol"
	RegimeNormalVol = "normal_vol"
	RegimeHighVol   = "high_vol"
)

// Sizing constants. SL distance is ATR scaled by a regime multiplier;
// the reward:risk ratio widens with the EMA20/EMA50 trend gap.
const (
	lowVolThreshold  = 0.65
	highVolThreshold = 1.70

	lowVolSLMult    = 1.45
	normalVolSLMult = 1.25
	highVolSLMult   = 1.05

	baseRR       = 1.9
	midGapRR     = 2.4 // gapPct >= 0.45
	wideGapRR    = 3.0 // gapPct >= 0.90
	highVolRRAdj = 0.25
	lowVolRRAdj  = 0.20

	slPctMin = 0.45
	slPctMax = 2.8
	tpPctMin = 1.0
	tpPctMax = 7.5

	rrMin = 1.6
	rrMax = 3.2

	// Blending a strategy-native request with the market model.
	strategyWeight = 0.45
	marketWeight   = 0.55
	blendSlPctMax  = 3.0
	blendTpPctMax  = 8.0
	blendRRMax     = 3.5

	sizerCandleLimit = 120
	sizerMinCandles  = 30
)

// Assessment is the sizer's output for one prospective entry.
type Assessment struct {
	AtrPct float64 `json:"atrPct"`
	GapPct float64 `json:"gapPct"`
	Regime string  `json:"regime"`

	SlPct float64 `json:"slPct"` // distance from entry, percent
	TpPct float64 `json:"tpPct"`
	RR    float64 `json:"rr"`

	StopLoss   float64 `json:"stopLoss"`
	TakeProfit float64 `json:"takeProfit"`
	Model      string  `json:"model"` // "market" or "blended"
}

// Sizer computes SL/TP levels from recent volatility and trend strength.
type Sizer struct {
	log    *zap.Logger
	client exchange.Client
}

// NewSizer creates a sizer reading market data from the given client.
func NewSizer(log *zap.Logger, client exchange.Client) *Sizer {
	return &Sizer{log: log, client: client}
}

// Assess fetches a short candle window and derives SL/TP for an entry at
// entryPrice. strategySL/strategyTP are optional (zero = absent); when
// present they are blended with the market-derived levels instead of
// overriding them.
func (s *Sizer) Assess(ctx context.Context, symbol string, side model.Side, entryPrice float64, tf model.Timeframe, strategySL, strategyTP float64) (Assessment, error) {
	if entryPrice <= 0 {
		return Assessment{}, fmt.Errorf("invalid entry price %.6g for %s", entryPrice, symbol)
	}
	candles, err := s.client.FetchClosedCandles(ctx, symbol, tf, sizerCandleLimit)
	if err != nil {
		return Assessment{}, fmt.Errorf("fetching %s %s candles for sizing: %w", symbol, tf, err)
	}
	if len(candles) < sizerMinCandles {
		return Assessment{}, fmt.Errorf("only %d candles for %s %s, need %d", len(candles), symbol, tf, sizerMinCandles)
	}

	atr := indicator.ATR(candles, 14)
	cl := make([]float64, len(candles))
	for i, c := range candles {
		cl[i] = c.Close
	}
	ema20 := indicator.EMA(cl, 20)
	ema50 := indicator.EMA(cl, 50)

	last := len(candles) - 1
	atrPct := atr[last] / entryPrice * 100
	gapPct := abs(ema20[last]-ema50[last]) / entryPrice * 100

	a := Levels(side, entryPrice, atrPct, gapPct, strategySL, strategyTP)
	s.log.Debug("risk_assessment",
		zap.String("symbol", symbol),
		zap.String("regime", a.Regime),
		zap.Float64("atr_pct", a.AtrPct),
		zap.Float64("gap_pct", a.GapPct),
		zap.Float64("sl_pct", a.SlPct),
		zap.Float64("tp_pct", a.TpPct),
		zap.Float64("rr", a.RR),
		zap.String("model", a.Model))
	return a, nil
}

// Levels is the pure sizing calculation. Exposed separately so the
// market model can be exercised without an exchange client.
func Levels(side model.Side, entryPrice, atrPct, gapPct, strategySL, strategyTP float64) Assessment {
	a := Assessment{AtrPct: atrPct, GapPct: gapPct, Model: "market"}

	mult := normalVolSLMult
	a.Regime = RegimeNormalVol
	switch {
	case atrPct < lowVolThreshold:
		mult = lowVolSLMult
		a.Regime = RegimeLowVol
	case atrPct > highVolThreshold:
		mult = highVolSLMult
		a.Regime = RegimeHighVol
	}

	rr := baseRR
	switch {
	case gapPct >= 0.90:
		rr = wideGapRR
	case gapPct >= 0.45:
		rr = midGapRR
	}
	switch a.Regime {
	case RegimeHighVol:
		rr += highVolRRAdj
	case RegimeLowVol:
		rr -= lowVolRRAdj
	}
	rr = clamp(rr, rrMin, rrMax)

	a.SlPct = clamp(atrPct*mult, slPctMin, slPctMax)
	a.TpPct = clamp(a.SlPct*rr, tpPctMin, tpPctMax)
	a.RR = a.TpPct / a.SlPct

	// Strategy-native levels are folded in rather than preferred; the
	// market model keeps the final say on overall distance bounds.
	if strategySL > 0 || strategyTP > 0 {
		stratSlPct := a.SlPct
		if strategySL > 0 {
			stratSlPct = abs(entryPrice-strategySL) / entryPrice * 100
		}
		stratTpPct := a.TpPct
		if strategyTP > 0 {
			stratTpPct = abs(strategyTP-entryPrice) / entryPrice * 100
		}

		a.SlPct = clamp(strategyWeight*stratSlPct+marketWeight*a.SlPct, slPctMin, blendSlPctMax)
		blendedTp := clamp(strategyWeight*stratTpPct+marketWeight*a.TpPct, tpPctMin, blendTpPctMax)
		a.RR = clamp(blendedTp/a.SlPct, rrMin, blendRRMax)
		a.TpPct = clamp(a.SlPct*a.RR, tpPctMin, blendTpPctMax)
		a.RR = a.TpPct / a.SlPct
		a.Model = "blended"
	}

	if side == model.SideBuy {
		a.StopLoss = entryPrice * (1 - a.SlPct/100)
		a.TakeProfit = entryPrice * (1 + a.TpPct/100)
	} else {
		a.StopLoss = entryPrice * (1 + a.SlPct/100)
		a.TakeProfit = entryPrice * (1 - a.TpPct/100)
	}
	return a
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
