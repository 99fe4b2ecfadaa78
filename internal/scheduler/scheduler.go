// Package scheduler runs the periodic evaluation tasks: symbol
// monitoring, the auto-trade scan, and exit-rule enforcement. Each task
// has its own interval; tasks may overlap, and the controller's
// in-flight set keeps order mutations per symbol serialized.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"go-signals/internal/confluence"
	"go-signals/internal/executor"
	"go-signals/internal/model"
)

// exitInterval drives position management independently of the trading
// timeframe; the redundant local stop should not wait a full bar.
const exitInterval = 20 * time.Second

// taskTimeout bounds one task invocation. A canceled scheduler lets the
// in-flight invocation finish within this budget instead of cutting an
// order operation short.
const taskTimeout = 2 * time.Minute

// Options configures the scheduler.
type Options struct {
	Symbols         []string
	Timeframe       model.Timeframe
	MonitorInterval time.Duration // 0 = derive from timeframe
}

// Scheduler owns the task goroutines and their lifecycles.
type Scheduler struct {
	log     *zap.Logger
	agg     *confluence.Aggregator
	ctl     *executor.Controller
	opts    Options
	metrics *Metrics

	wg   sync.WaitGroup
	stop context.CancelFunc
}

// New creates a scheduler over the aggregator and controller.
func New(log *zap.Logger, agg *confluence.Aggregator, ctl *executor.Controller, opts Options) *Scheduler {
	if opts.MonitorInterval <= 0 {
		opts.MonitorInterval = opts.Timeframe.PollInterval()
	}
	return &Scheduler{
		log:     log,
		agg:     agg,
		ctl:     ctl,
		opts:    opts,
		metrics: &Metrics{},
	}
}

// Metrics exposes the activity counters for the status API.
func (s *Scheduler) Metrics() *Metrics { return s.metrics }

// Start launches the task goroutines. They run until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.stop = context.WithCancel(ctx)

	s.spawn(ctx, "monitor", s.opts.MonitorInterval, s.runScan)
	s.spawn(ctx, "exits", exitInterval, s.runExits)

	s.log.Info("scheduler_started",
		zap.Strings("symbols", s.opts.Symbols),
		zap.String("timeframe", string(s.opts.Timeframe)),
		zap.Duration("monitor_interval", s.opts.MonitorInterval))
}

// Stop cancels the tasks and waits for in-flight invocations to drain,
// bounded by timeout. It returns false if the drain timed out.
func (s *Scheduler) Stop(timeout time.Duration) bool {
	if s.stop != nil {
		s.stop()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		s.log.Warn("scheduler_drain_timeout", zap.Duration("timeout", timeout))
		return false
	}
}

// spawn runs fn immediately and then on every tick until ctx is
// canceled. Each invocation gets a detached context so cancellation
// never interrupts an order operation mid-flight.
func (s *Scheduler) spawn(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run := func() {
			cctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
			defer cancel()
			fn(cctx)
		}
		run()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.log.Debug("task_stopped", zap.String("task", name))
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}

// runScan evaluates every symbol: logs the composite verdict, hands
// qualifying signals to the controller, and feeds the reversal counter.
func (s *Scheduler) runScan(ctx context.Context) {
	for _, symbol := range s.opts.Symbols {
		s.metrics.cycles.Add(1)
		ev, err := s.agg.Evaluate(ctx, symbol, s.opts.Timeframe)
		if err != nil {
			s.metrics.errors.Add(1)
			s.log.Warn("evaluation_failed",
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}
		if ev.Vetoed {
			s.metrics.filteredByHTF.Add(1)
		}
		s.log.Debug("symbol_evaluated",
			zap.String("symbol", symbol),
			zap.String("status", string(ev.Composite.Status)),
			zap.String("htf", string(ev.HTF)))

		if ev.Trade != nil {
			s.metrics.signals.Add(1)
			if err := s.ctl.Enter(ctx, ev.Trade); err != nil {
				s.metrics.errors.Add(1)
				s.log.Error("entry_failed",
					zap.String("symbol", symbol),
					zap.Error(err))
			}
		}

		side, strength := ev.Composite.Strength()
		if err := s.ctl.CheckReversal(ctx, symbol, side, strength, ev.HTF); err != nil {
			s.metrics.errors.Add(1)
			s.log.Error("reversal_exit_failed",
				zap.String("symbol", symbol),
				zap.Error(err))
		}
	}
}

// runExits reconciles positions and enforces stops and trailing.
func (s *Scheduler) runExits(ctx context.Context) {
	if err := s.ctl.Manage(ctx); err != nil {
		s.metrics.errors.Add(1)
		s.log.Warn("position_management_failed", zap.Error(err))
	}
}
