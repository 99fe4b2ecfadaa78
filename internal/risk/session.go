package risk

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// riskScaleFloor bounds the linear scale-down applied to new-entry risk
// while the session is in drawdown but below the breaker threshold.
const riskScaleFloor = 0.35

// SessionParams configures the drawdown breaker.
type SessionParams struct {
	MaxDrawdownPct float64 // pause when drawdown from peak reaches this
	HardStopPct    float64 // pause when drawdown from session start reaches this
	PauseDuration  time.Duration
}

// Session tracks equity watermarks for one connected account and trips
// the drawdown breaker. peakEquity only increases; both watermarks are
// reset when the controller reconnects.
type Session struct {
	params SessionParams
	log    *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	startEquity float64
	peakEquity  float64
	lastEquity  float64
	pauseUntil  time.Time
	pauseReason string
}

// NewSession creates a session with zeroed watermarks. A nil now uses
// wall-clock time.
func NewSession(params SessionParams, log *zap.Logger, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{params: params, log: log, now: now}
}

// Reset clears the watermarks, starting a fresh session at equity.
func (s *Session) Reset(equity float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startEquity = equity
	s.peakEquity = equity
	s.lastEquity = equity
	s.pauseUntil = time.Time{}
	s.pauseReason = ""
}

// Observe records the current equity, advances the peak watermark, and
// trips the breaker when either drawdown threshold is reached. It
// returns true when this observation newly tripped the breaker.
func (s *Session) Observe(equity float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.startEquity == 0 {
		s.startEquity = equity
	}
	if equity > s.peakEquity {
		s.peakEquity = equity
	}
	s.lastEquity = equity

	if s.pausedLocked() {
		return false
	}

	ddPeak := drawdownPct(s.peakEquity, equity)
	ddStart := drawdownPct(s.startEquity, equity)

	reason := ""
	switch {
	case ddPeak >= s.params.MaxDrawdownPct:
		reason = "max_drawdown_from_peak"
	case ddStart >= s.params.HardStopPct:
		reason = "hard_stop_from_start"
	}
	if reason == "" {
		return false
	}

	s.pauseUntil = s.now().Add(s.params.PauseDuration)
	s.pauseReason = reason
	s.log.Warn("drawdown_breaker_tripped",
		zap.String("reason", reason),
		zap.Float64("equity", equity),
		zap.Float64("peak_equity", s.peakEquity),
		zap.Float64("start_equity", s.startEquity),
		zap.Float64("dd_from_peak_pct", ddPeak),
		zap.Float64("dd_from_start_pct", ddStart),
		zap.Time("pause_until", s.pauseUntil))
	return true
}

// Paused reports whether new entries are currently blocked.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pausedLocked()
}

func (s *Session) pausedLocked() bool {
	return !s.pauseUntil.IsZero() && s.now().Before(s.pauseUntil)
}

// Pause blocks new entries for d, independent of drawdown. Used by the
// operator pause command.
func (s *Session) Pause(d time.Duration, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseUntil = s.now().Add(d)
	s.pauseReason = reason
}

// Resume lifts any active pause immediately.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseUntil = time.Time{}
	s.pauseReason = ""
}

// RiskScale returns the multiplier applied to new-entry risk. It falls
// linearly with the drawdown-from-peak ratio down to the floor.
func (s *Session) RiskScale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.params.MaxDrawdownPct <= 0 || s.peakEquity <= 0 {
		return 1.0
	}
	ratio := drawdownPct(s.peakEquity, s.lastEquity) / s.params.MaxDrawdownPct
	if ratio <= 0 {
		return 1.0
	}
	if ratio > 1 {
		ratio = 1
	}
	return 1.0 - ratio*(1.0-riskScaleFloor)
}

// SessionState is a read-only snapshot for the status API.
type SessionState struct {
	StartEquity float64   `json:"startEquity"`
	PeakEquity  float64   `json:"peakEquity"`
	LastEquity  float64   `json:"lastEquity"`
	Paused      bool      `json:"paused"`
	PauseUntil  time.Time `json:"pauseUntil,omitempty"`
	PauseReason string    `json:"pauseReason,omitempty"`
	RiskScale   float64   `json:"riskScale"`
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() SessionState {
	scale := s.RiskScale()
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		StartEquity: s.startEquity,
		PeakEquity:  s.peakEquity,
		LastEquity:  s.lastEquity,
		Paused:      s.pausedLocked(),
		PauseUntil:  s.pauseUntil,
		PauseReason: s.pauseReason,
		RiskScale:   scale,
	}
}

func drawdownPct(watermark, equity float64) float64 {
	if watermark <= 0 {
		return 0
	}
	dd := (watermark - equity) / watermark * 100
	if dd < 0 {
		return 0
	}
	return dd
}
