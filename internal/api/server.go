// Package api serves the local REST status interface for the daemon.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"go-signals/internal/confluence"
	"go-signals/internal/executor"
	"go-signals/internal/indicator"
	"go-signals/internal/journal"
	"go-signals/internal/model"
	"go-signals/internal/risk"
	"go-signals/internal/scheduler"
)

// Command is an operator instruction posted to /api/command.
type Command struct {
	Type    string `json:"type"` // "pause", "resume" or "refresh_htf"
	Minutes int    `json:"minutes,omitempty"`
}

// Server is the REST status server. It only reads daemon state, except
// for the pause/resume command which drives the risk session.
type Server struct {
	log      *zap.Logger
	tracker  *executor.Tracker
	session  *risk.Session
	metrics  *scheduler.Metrics
	registry *indicator.Registry
	agg      *confluence.Aggregator
	journal  journal.Journal
	symbols  []string
	tf       model.Timeframe

	mux     *http.ServeMux
	srv     *http.Server
	address string
	started time.Time
}

// NewServer creates the status server.
func NewServer(address string, log *zap.Logger, tracker *executor.Tracker, session *risk.Session, metrics *scheduler.Metrics, registry *indicator.Registry, agg *confluence.Aggregator, jrnl journal.Journal, symbols []string, tf model.Timeframe) *Server {
	s := &Server{
		log:      log,
		tracker:  tracker,
		session:  session,
		metrics:  metrics,
		registry: registry,
		agg:      agg,
		journal:  jrnl,
		symbols:  symbols,
		tf:       tf,
		mux:      http.NewServeMux(),
		address:  address,
		started:  time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/positions", s.handlePositions)
	s.mux.HandleFunc("/api/signals", s.handleSignals)
	s.mux.HandleFunc("/api/trades", s.handleTrades)
	s.mux.HandleFunc("/api/performance", s.handlePerformance)
	s.mux.HandleFunc("/api/command", s.handleCommand)
}

// Handler returns the route handler, for tests.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.mux)
}

// Run starts the HTTP server and shuts it down when ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:    s.address,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api_server_started", zap.String("address", s.address))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.APIResponse{
		Data:      map[string]string{"status": "ok"},
		Timestamp: time.Now(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.APIResponse{
		Data: map[string]any{
			"symbols":       s.symbols,
			"timeframe":     s.tf,
			"uptimeSec":     int(time.Since(s.started).Seconds()),
			"openPositions": s.tracker.Count(),
			"session":       s.session.Snapshot(),
			"metrics":       s.metrics.Snapshot(),
		},
		Timestamp: time.Now(),
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.APIResponse{
		Data:      s.tracker.All(),
		Timestamp: time.Now(),
	})
}

// symbolSignals is the per-symbol payload of /api/signals.
type symbolSignals struct {
	Indicators map[string]model.IndicatorState `json:"indicators"`
	HTF        model.Status                    `json:"htf"`
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]symbolSignals, len(s.symbols))
	for _, symbol := range s.symbols {
		states := make(map[string]model.IndicatorState)
		for _, ind := range s.registry.All() {
			states[ind.Key()] = indicator.State(ind, symbol)
		}
		out[symbol] = symbolSignals{
			Indicators: states,
			HTF:        s.agg.HTFStatus(r.Context(), symbol, s.tf),
		}
	}
	writeJSON(w, http.StatusOK, model.APIResponse{
		Data:      out,
		Timestamp: time.Now(),
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.journal.Recent(r.Context(), 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, model.APIResponse{
			Error:     err.Error(),
			Timestamp: time.Now(),
		})
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{
		Data:      trades,
		Timestamp: time.Now(),
	})
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	summary, err := s.journal.SummaryByStrategy(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, model.APIResponse{
			Error:     err.Error(),
			Timestamp: time.Now(),
		})
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{
		Data:      summary,
		Timestamp: time.Now(),
	})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, model.APIResponse{
			Error:     "POST required",
			Timestamp: time.Now(),
		})
		return
	}

	var cmd Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, model.APIResponse{
			Error:     "invalid JSON: " + err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	switch cmd.Type {
	case "pause":
		minutes := cmd.Minutes
		if minutes <= 0 {
			minutes = 60
		}
		s.session.Pause(time.Duration(minutes)*time.Minute, "operator")
	case "resume":
		s.session.Resume()
	case "refresh_htf":
		for _, symbol := range s.symbols {
			s.agg.InvalidateHTF(symbol, s.tf)
		}
	default:
		writeJSON(w, http.StatusBadRequest, model.APIResponse{
			Error:     "unknown command type: " + cmd.Type,
			Timestamp: time.Now(),
		})
		return
	}

	s.log.Info("api_command", zap.String("type", cmd.Type))
	writeJSON(w, http.StatusOK, model.APIResponse{
		Data:      map[string]string{"status": "applied"},
		Timestamp: time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
