// Package model defines shared data types used across all signald modules.
package model

import "time"

// Side represents a trading direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other trading direction.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Status represents an indicator or composite verdict.
type Status string

const (
	StatusBull    Status = "bull"
	StatusBear    Status = "bear"
	StatusNeutral Status = "neutral"
	StatusNA      Status = "na"
)

// SignalKind labels the structural event behind an indicator signal.
type SignalKind string

const (
	KindBOS   SignalKind = "BOS"
	KindCHoCH SignalKind = "CHoCH"
	KindTrend SignalKind = "Trend"
)

// CloseReason records why a position was closed.
type CloseReason string

const (
	CloseReasonSL     CloseReason = "SL"
	CloseReasonTP     CloseReason = "TP"
	CloseReasonSignal CloseReason = "Signal"
	CloseReasonManual CloseReason = "Manual"
)

// Candle is a single closed OHLCV bar. Candles are immutable once fetched
// and ordered ascending by Ts; the forming bar is never included.
type Candle struct {
	Ts     int64   `json:"ts"` // open time, unix milliseconds
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Ticker is a point-in-time market quote for a symbol.
type Ticker struct {
	Symbol      string  `json:"symbol"`
	Last        float64 `json:"last"`
	Bid         float64 `json:"bid"`
	Ask         float64 `json:"ask"`
	QuoteVolume float64 `json:"quoteVolume"` // 24h quote turnover
}

// SpreadPct returns the bid/ask spread as a percentage of the last price.
func (t Ticker) SpreadPct() float64 {
	if t.Last <= 0 {
		return 0
	}
	return (t.Ask - t.Bid) / t.Last * 100
}

// Balance is the account balance snapshot returned by the exchange.
type Balance struct {
	Free  float64 `json:"free"`
	Total float64 `json:"total"`
}

// PositionSnapshot mirrors the exchange's view of an open position.
type PositionSnapshot struct {
	Symbol        string  `json:"symbol"`
	Side          Side    `json:"side"`
	Contracts     float64 `json:"contracts"`
	EntryPrice    float64 `json:"entryPrice"`
	MarkPrice     float64 `json:"markPrice"`
	UnrealizedPnl float64 `json:"unrealizedPnl"`
	Leverage      int     `json:"leverage"`
	StopLoss      float64 `json:"stopLoss"`
	TakeProfit    float64 `json:"takeProfit"`
}

// PnlPct returns the unrealized PnL as a percentage of the entry price,
// positive when the position is in profit.
func (p PositionSnapshot) PnlPct() float64 {
	if p.EntryPrice <= 0 || p.MarkPrice <= 0 {
		return 0
	}
	raw := (p.MarkPrice - p.EntryPrice) / p.EntryPrice * 100
	if p.Side == SideSell {
		return -raw
	}
	return raw
}

// Signal is a single structural event emitted by an indicator on the last
// bar of a window. SL/TP fields are suggestions; zero means none.
type Signal struct {
	Symbol     string     `json:"symbol"`
	Side       Side       `json:"side"`
	Kind       SignalKind `json:"kind"`
	Message    string     `json:"message"`
	Ts         int64      `json:"ts"` // bar timestamp, unix milliseconds
	Price      float64    `json:"price"`
	StopLoss   float64    `json:"stopLoss,omitempty"`
	TakeProfit float64    `json:"takeProfit,omitempty"`
}

// IndicatorState is a single indicator's verdict for one evaluation cycle.
type IndicatorState struct {
	Status Status         `json:"status"`
	Detail string         `json:"detail"`
	Raw    map[string]any `json:"raw,omitempty"`
}

// CompositeSignal aggregates per-indicator states for one symbol and cycle.
type CompositeSignal struct {
	Symbol     string                    `json:"symbol"`
	Status     Status                    `json:"status"`
	Indicators map[string]IndicatorState `json:"indicators"`
}

// Strength returns the trade direction and the count of agreeing
// indicators. Direction is empty unless at least two indicators agree
// and outnumber the opposition.
func (c CompositeSignal) Strength() (Side, int) {
	bulls, bears := 0, 0
	for _, st := range c.Indicators {
		switch st.Status {
		case StatusBull:
			bulls++
		case StatusBear:
			bears++
		}
	}
	if bulls >= 2 && bulls > bears {
		return SideBuy, bulls
	}
	if bears >= 2 && bears > bulls {
		return SideSell, bears
	}
	return "", 0
}

// TradeSignal is the per-cycle output of the confluence aggregator,
// consumed by the execution controller.
type TradeSignal struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Strength   int       `json:"strength"` // agreeing indicators, 0..3
	EntryPrice float64   `json:"entryPrice"`
	StopLoss   float64   `json:"stopLoss"`
	TakeProfit float64   `json:"takeProfit"`
	Reason     string    `json:"reason"`
	Time       time.Time `json:"time"`
}

// Position is the locally tracked mirror of an exchange position.
type Position struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Side           Side      `json:"side"`
	Size           float64   `json:"size"`
	Leverage       int       `json:"leverage"`
	EntryPrice     float64   `json:"entryPrice"`
	StopLoss       float64   `json:"stopLoss"`
	TakeProfit     float64   `json:"takeProfit"`
	RiskModel      string    `json:"riskModel"`
	StrategyTag    string    `json:"strategyTag"`
	SlTpOnExchange bool      `json:"slTpOnExchange"`
	Trailed        bool      `json:"trailed"`
	OpenedAt       time.Time `json:"openedAt"`
}

// APIResponse is the envelope for REST API responses.
type APIResponse struct {
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TradeRecord is one journal row per closed position.
type TradeRecord struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"side"`
	Strategy    string      `json:"strategy"`
	EntryPrice  float64     `json:"entryPrice"`
	ExitPrice   float64     `json:"exitPrice"`
	Size        float64     `json:"size"`
	Leverage    int         `json:"leverage"`
	PnlUsd      float64     `json:"pnlUsd"`
	PnlPct      float64     `json:"pnlPct"`
	CloseReason CloseReason `json:"closeReason"`
	StopLoss    float64     `json:"stopLoss"`
	TakeProfit  float64     `json:"takeProfit"`
	OpenedAt    time.Time   `json:"openedAt"`
	ClosedAt    time.Time   `json:"closedAt"`
}
