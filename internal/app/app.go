// Package app wires the daemon: exchange client, indicator engines,
// confluence aggregator, risk, execution, scheduler, and the status API.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go-signals/internal/api"
	"go-signals/internal/config"
	"go-signals/internal/confluence"
	"go-signals/internal/exchange"
	"go-signals/internal/executor"
	"go-signals/internal/indicator"
	"go-signals/internal/journal"
	"go-signals/internal/model"
	"go-signals/internal/notify"
	"go-signals/internal/risk"
	"go-signals/internal/scheduler"
)

// paperStartEquity seeds the simulated account in demo mode.
const paperStartEquity = 10_000

// drainTimeout bounds the scheduler shutdown wait.
const drainTimeout = 30 * time.Second

// App owns every daemon component and their shutdown order.
type App struct {
	cfg     *config.Config
	log     *zap.Logger
	client  exchange.Client
	journal journal.Journal
	session *risk.Session
	sched   *scheduler.Scheduler
	server  *api.Server
}

// New builds the daemon from configuration.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	var client exchange.Client
	switch {
	case cfg.Exchange.Demo || cfg.Exchange.Name == "paper":
		client = exchange.NewPaper(paperStartEquity, log)
	default:
		return nil, fmt.Errorf("exchange %q not supported; set exchange.demo for the paper exchange", cfg.Exchange.Name)
	}

	var jrnl journal.Journal
	if cfg.Journal.Path != "" {
		sj, err := journal.OpenSQLite(cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
		jrnl = sj
	} else {
		jrnl = journal.NewNop(log)
	}

	tf := model.Timeframe(cfg.Trading.Timeframe)
	registry := indicator.NewRegistry()
	agg := confluence.New(log, client, registry, confluence.Options{
		SignalTTL: time.Duration(cfg.Scheduler.SignalCacheSec) * time.Second,
		HTFTTL:    time.Duration(cfg.Scheduler.HTFCacheSec) * time.Second,
	})
	session := risk.NewSession(risk.SessionParams{
		MaxDrawdownPct: cfg.Risk.MaxDrawdownPct,
		HardStopPct:    cfg.Risk.HardStopPct,
		PauseDuration:  time.Duration(cfg.Risk.RiskPauseMinutes) * time.Minute,
	}, log, nil)

	tracker := executor.NewTracker()
	ctl := executor.New(log, client, risk.NewSizer(log, client), session, tracker,
		jrnl, notify.NewLogNotifier(log), executor.Params{
			Timeframe:         tf,
			AutoTrade:         cfg.Trading.AutoTrade,
			Leverage:          cfg.Trading.Leverage,
			RiskPct:           cfg.Trading.RiskPct,
			MinStrength:       cfg.Trading.MinStrength,
			ExitMinStrength:   cfg.Trading.ExitMinStrength,
			ExitConfirmations: cfg.Trading.ExitConfirmations,
			MaxPositions:      cfg.Trading.MaxPositions,
			MaxSpreadPct:      cfg.Trading.MaxSpreadPct,
			MinQuoteVolume:    cfg.Trading.MinQuoteVolume,
			EntryCooldown:     time.Duration(cfg.Trading.EntryCooldownSec) * time.Second,
			StrategyTag:       "confluence",
		}, nil)

	sched := scheduler.New(log, agg, ctl, scheduler.Options{
		Symbols:         cfg.Trading.Symbols,
		Timeframe:       tf,
		MonitorInterval: time.Duration(cfg.Scheduler.MonitorIntervalSec) * time.Second,
	})

	server := api.NewServer(cfg.API.ListenAddress, log, tracker, session,
		sched.Metrics(), registry, agg, jrnl, cfg.Trading.Symbols, tf)

	return &App{
		cfg:     cfg,
		log:     log,
		client:  client,
		journal: jrnl,
		session: session,
		sched:   sched,
		server:  server,
	}, nil
}

// Run starts the scheduler and API server and blocks until ctx is
// canceled, then drains tasks and closes the journal.
func (a *App) Run(ctx context.Context) error {
	if bal, err := a.client.FetchBalance(ctx); err == nil {
		a.session.Reset(bal.Total)
	} else {
		a.log.Warn("initial_balance_fetch_failed", zap.Error(err))
	}

	a.log.Info("daemon_started",
		zap.String("env", a.cfg.App.Env),
		zap.Strings("symbols", a.cfg.Trading.Symbols),
		zap.String("timeframe", a.cfg.Trading.Timeframe),
		zap.Bool("auto_trade", a.cfg.Trading.AutoTrade),
		zap.String("api_address", a.cfg.API.ListenAddress))

	a.sched.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Run(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		runErr = <-errCh // server shuts down on the same ctx
	case err := <-errCh:
		runErr = err
	}

	a.sched.Stop(drainTimeout)
	if err := a.journal.Close(); err != nil {
		a.log.Warn("journal_close_failed", zap.Error(err))
	}
	a.log.Info("daemon_stopped")
	return runErr
}
