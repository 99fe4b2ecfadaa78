package risk

import (
	"testing"

	"go-signals/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestLevelsBounds(t *testing.T) {
	t.Parallel()

	atrs := []float64{0, 0.1, 0.45, 0.65, 1.0, 1.69, 1.7, 1.71, 2.5, 5, 20, 100}
	gaps := []float64{0, 0.2, 0.45, 0.9, 2.5, 10}
	strategies := []struct{ sl, tp float64 }{
		{0, 0},       // market only
		{98, 108},    // wide strategy request
		{99.9, 100.2}, // tight strategy request
		{80, 150},    // absurd strategy request
	}

	for _, atr := range atrs {
		for _, gap := range gaps {
			for _, st := range strategies {
				a := Levels(model.SideBuy, 100, atr, gap, st.sl, st.tp)
				assert.GreaterOrEqual(t, a.SlPct, 0.45, "atr=%v gap=%v st=%v", atr, gap, st)
				assert.LessOrEqual(t, a.SlPct, 3.0, "atr=%v gap=%v st=%v", atr, gap, st)
				assert.GreaterOrEqual(t, a.TpPct, 1.0, "atr=%v gap=%v st=%v", atr, gap, st)
				assert.LessOrEqual(t, a.TpPct, 8.0, "atr=%v gap=%v st=%v", atr, gap, st)
				rr := a.TpPct / a.SlPct
				assert.GreaterOrEqual(t, rr, 1.6-1e-9, "atr=%v gap=%v st=%v", atr, gap, st)
				assert.LessOrEqual(t, rr, 3.5+1e-9, "atr=%v gap=%v st=%v", atr, gap, st)
			}
		}
	}
}

func TestLevelsRegimes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		atrPct string
		atr    float64
		regime string
		slPct  float64
	}{
		{"low", 0.5, RegimeLowVol, 0.5 * 1.45},
		{"normal", 1.0, RegimeNormalVol, 1.0 * 1.25},
		{"high", 2.0, RegimeHighVol, 2.0 * 1.05},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.atrPct, func(t *testing.T) {
			t.Parallel()
			a := Levels(model.SideBuy, 100, tc.atr, 0, 0, 0)
			assert.Equal(t, tc.regime, a.Regime)
			assert.InDelta(t, tc.slPct, a.SlPct, 1e-9)
		})
	}
}

func TestLevelsRewardRiskTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		atrPct float64
		gapPct float64
		wantRR float64
	}{
		{"base", 1.0, 0, 1.9},
		{"mid_gap", 1.0, 0.5, 2.4},
		{"wide_gap", 1.0, 1.0, 3.0},
		{"low_vol_discount", 0.5, 0, 1.7},
		{"high_vol_premium_clamped", 2.0, 1.0, 3.2},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := Levels(model.SideBuy, 100, tc.atrPct, tc.gapPct, 0, 0)
			assert.InDelta(t, tc.wantRR, a.RR, 1e-9)
		})
	}
}

func TestLevelsStraddleEntry(t *testing.T) {
	t.Parallel()

	long := Levels(model.SideBuy, 100, 1.0, 0.5, 0, 0)
	assert.Less(t, long.StopLoss, 100.0)
	assert.Greater(t, long.TakeProfit, 100.0)

	short := Levels(model.SideSell, 100, 1.0, 0.5, 0, 0)
	assert.Greater(t, short.StopLoss, 100.0)
	assert.Less(t, short.TakeProfit, 100.0)

	// Even a strategy request on the wrong side of entry cannot invert
	// the output.
	inverted := Levels(model.SideBuy, 100, 1.0, 0.5, 103, 95)
	assert.Less(t, inverted.StopLoss, 100.0)
	assert.Greater(t, inverted.TakeProfit, 100.0)
}

func TestLevelsBlendsStrategyRequest(t *testing.T) {
	t.Parallel()

	// Market model at atrPct=1.0, gap=0: sl 1.25%, tp 2.375%.
	// Strategy request: sl 2%, tp 8%.
	a := Levels(model.SideBuy, 100, 1.0, 0, 98, 108)
	assert.Equal(t, "blended", a.Model)

	wantSl := 0.45*2.0 + 0.55*1.25
	assert.InDelta(t, wantSl, a.SlPct, 1e-9)

	wantTp := 0.45*8.0 + 0.55*2.375
	assert.InDelta(t, wantTp, a.TpPct, 1e-9)
	assert.InDelta(t, wantTp/wantSl, a.RR, 1e-9)
}
