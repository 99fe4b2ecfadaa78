package indicator

import "go-signals/internal/model"

// EMA returns the exponentially weighted series of values, seeded with the
// first value (Pine-style ema over the full history).
func EMA(values []float64, length int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(length+1)
	e := values[0]
	out[0] = e
	for i := 1; i < len(values); i++ {
		e += alpha * (values[i] - e)
		out[i] = e
	}
	return out
}

// WMA returns the linearly weighted moving average series. Indices with
// fewer than length samples carry the raw value, matching the reference
// implementation's warm-up behavior.
func WMA(values []float64, length int) []float64 {
	out := make([]float64, len(values))
	weightSum := float64(length*(length+1)) / 2
	for i := range values {
		if i+1 < length {
			out[i] = values[i]
			continue
		}
		var acc float64
		for j := 0; j < length; j++ {
			acc += values[i-length+1+j] * float64(j+1)
		}
		out[i] = acc / weightSum
	}
	return out
}

// TrueRange returns the true-range series for the candle window.
func TrueRange(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		if i == 0 {
			out[i] = c.High - c.Low
			continue
		}
		prevClose := candles[i-1].Close
		out[i] = max3(c.High-c.Low, abs(c.High-prevClose), abs(c.Low-prevClose))
	}
	return out
}

// ATR returns the EMA-smoothed true-range series. Pine's atr() uses RMA;
// the EMA variant is what the signal definitions are calibrated against.
func ATR(candles []model.Candle, length int) []float64 {
	return EMA(TrueRange(candles), length)
}

// PivotHigh reports the confirmed swing high at offset lookback behind
// index i: highs[i-lookback] must strictly exceed every high within
// lookback bars on both sides.
func PivotHigh(highs []float64, i, lookback int) (float64, bool) {
	j := i - lookback
	if j-lookback < 0 || j+lookback >= len(highs) {
		return 0, false
	}
	c := highs[j]
	for k := j - lookback; k < j; k++ {
		if highs[k] >= c {
			return 0, false
		}
	}
	for k := j + 1; k <= j+lookback; k++ {
		if highs[k] >= c {
			return 0, false
		}
	}
	return c, true
}

// PivotLow is the mirrored swing-low counterpart of PivotHigh.
func PivotLow(lows []float64, i, lookback int) (float64, bool) {
	j := i - lookback
	if j-lookback < 0 || j+lookback >= len(lows) {
		return 0, false
	}
	c := lows[j]
	for k := j - lookback; k < j; k++ {
		if lows[k] <= c {
			return 0, false
		}
	}
	for k := j + 1; k <= j+lookback; k++ {
		if lows[k] <= c {
			return 0, false
		}
	}
	return c, true
}

// crossover reports a at index i crossing above b.
func crossover(a, b []float64, i int) bool {
	return a[i] > b[i] && a[i-1] <= b[i-1]
}

// crossunder reports a at index i crossing below b.
func crossunder(a, b []float64, i int) bool {
	return a[i] < b[i] && a[i-1] >= b[i-1]
}

func closes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func highs(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

func lows(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
