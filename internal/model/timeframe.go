package model

import "time"

// Timeframe is a candle interval such as "1m", "15m", "1h".
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
	TF1w  Timeframe = "1w"
)

// htfMap maps each trading timeframe to the higher timeframe used only
// as a directional filter.
var htfMap = map[Timeframe]Timeframe{
	TF1m:  TF15m,
	TF5m:  TF1h,
	TF15m: TF4h,
	TF1h:  TF4h,
	TF4h:  TF1d,
	TF1d:  TF1w,
}

// pollIntervals holds the default evaluation interval per timeframe.
// Empirically chosen defaults, overridable through configuration.
var pollIntervals = map[Timeframe]time.Duration{
	TF1m:  15 * time.Second,
	TF5m:  30 * time.Second,
	TF15m: 60 * time.Second,
	TF1h:  120 * time.Second,
	TF4h:  300 * time.Second,
	TF1d:  600 * time.Second,
}

// Duration returns the bar length of the timeframe. Unknown timeframes
// fall back to one minute.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	case TF1w:
		return 7 * 24 * time.Hour
	default:
		return time.Minute
	}
}

// Millis returns the bar length in unix milliseconds.
func (tf Timeframe) Millis() int64 {
	return tf.Duration().Milliseconds()
}

// Higher returns the higher timeframe used for the trend filter.
func (tf Timeframe) Higher() Timeframe {
	if htf, ok := htfMap[tf]; ok {
		return htf
	}
	return TF4h
}

// PollInterval returns the default evaluation interval for the timeframe.
func (tf Timeframe) PollInterval() time.Duration {
	if iv, ok := pollIntervals[tf]; ok {
		return iv
	}
	return 60 * time.Second
}
