package exchange

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go-signals/internal/model"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Paper is an in-process simulated exchange. It generates random-walk
// candles per symbol and keeps a simple position ledger, so the full
// daemon can run end-to-end without credentials.
type Paper struct {
	mu        sync.Mutex
	rng       *rand.Rand
	logger    *zap.Logger
	balance   model.Balance
	positions map[string]*model.PositionSnapshot
	leverage  map[string]int
	base      map[string]float64 // anchor price per symbol
	now       func() time.Time
}

// NewPaper creates a paper exchange seeded with the given starting equity.
func NewPaper(startEquity float64, logger *zap.Logger) *Paper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Paper{
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:    logger,
		balance:   model.Balance{Free: startEquity, Total: startEquity},
		positions: make(map[string]*model.PositionSnapshot),
		leverage:  make(map[string]int),
		base:      make(map[string]float64),
		now:       time.Now,
	}
}

func (p *Paper) anchor(symbol string) float64 {
	if v, ok := p.base[symbol]; ok {
		return v
	}
	v := 100.0
	switch {
	case strings.HasPrefix(symbol, "BTC"):
		v = 65000
	case strings.HasPrefix(symbol, "ETH"):
		v = 3200
	case strings.HasPrefix(symbol, "SOL"):
		v = 150
	}
	p.base[symbol] = v
	return v
}

// FetchClosedCandles synthesizes a deterministic-per-call random walk with
// a slow sine drift, ascending by timestamp, forming candle excluded.
func (p *Paper) FetchClosedCandles(ctx context.Context, symbol string, tf model.Timeframe, limit int) ([]model.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	anchor := p.anchor(symbol)
	step := tf.Millis()
	end := p.now().UnixMilli() / step * step // open of the forming candle
	out := make([]model.Candle, 0, limit)

	price := anchor
	for i := 0; i < limit; i++ {
		ts := end - int64(limit-i)*step
		drift := math.Sin(float64(ts/step)/40.0) * anchor * 0.002
		noise := (p.rng.Float64() - 0.5) * anchor * 0.004
		open := price
		close := open + drift + noise
		high := math.Max(open, close) + p.rng.Float64()*anchor*0.001
		low := math.Min(open, close) - p.rng.Float64()*anchor*0.001
		out = append(out, model.Candle{
			Ts:     ts,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: 50 + p.rng.Float64()*200,
		})
		price = close
	}
	p.base[symbol] = price
	return out, nil
}

func (p *Paper) FetchTicker(ctx context.Context, symbol string) (model.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return model.Ticker{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	last := p.anchor(symbol)
	spread := last * 0.0002
	return model.Ticker{
		Symbol:      symbol,
		Last:        last,
		Bid:         last - spread/2,
		Ask:         last + spread/2,
		QuoteVolume: 25_000_000,
	}, nil
}

func (p *Paper) FetchBalance(ctx context.Context) (model.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}

func (p *Paper) FetchPositions(ctx context.Context) ([]model.PositionSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]model.PositionSnapshot, 0, len(p.positions))
	for sym, pos := range p.positions {
		snap := *pos
		snap.MarkPrice = p.anchor(sym)
		diff := snap.MarkPrice - snap.EntryPrice
		if snap.Side == model.SideSell {
			diff = -diff
		}
		snap.UnrealizedPnl = diff * snap.Contracts
		out = append(out, snap)
	}
	return out, nil
}

func (p *Paper) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leverage[symbol] = leverage
	return nil
}

func (p *Paper) PlaceMarketOrder(ctx context.Context, symbol string, side model.Side, size float64, slPrice, tpPrice float64) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("%w: size %.8f below minimum", ErrRejected, size)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	price := p.anchor(symbol)
	p.positions[symbol] = &model.PositionSnapshot{
		Symbol:     symbol,
		Side:       side,
		Contracts:  size,
		EntryPrice: price,
		MarkPrice:  price,
		Leverage:   p.leverage[symbol],
		StopLoss:   slPrice,
		TakeProfit: tpPrice,
	}
	id := ulid.Make().String()
	p.logger.Info("paper_order_filled",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("size", size),
		zap.Float64("price", price),
		zap.String("order_id", id),
	)
	return id, nil
}

func (p *Paper) SetTradingStop(ctx context.Context, symbol string, slPrice, tpPrice float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return fmt.Errorf("%w: no position for %s", ErrRejected, symbol)
	}
	pos.StopLoss = slPrice
	pos.TakeProfit = tpPrice
	return nil
}

func (p *Paper) ClosePosition(ctx context.Context, symbol string, side model.Side, size float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return nil // already flat, reduce-only close is a no-op
	}
	mark := p.anchor(symbol)
	diff := mark - pos.EntryPrice
	if pos.Side == model.SideSell {
		diff = -diff
	}
	p.balance.Free += diff * size
	p.balance.Total += diff * size

	pos.Contracts -= size
	if pos.Contracts <= 1e-9 {
		delete(p.positions, symbol)
	}
	p.logger.Info("paper_position_closed",
		zap.String("symbol", symbol),
		zap.Float64("size", size),
		zap.Float64("pnl", diff*size),
	)
	return nil
}
