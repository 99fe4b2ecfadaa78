package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"go-signals/internal/confluence"
	"go-signals/internal/exchange"
	"go-signals/internal/executor"
	"go-signals/internal/indicator"
	"go-signals/internal/journal"
	"go-signals/internal/model"
	"go-signals/internal/risk"
	"go-signals/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *executor.Tracker, *risk.Session) {
	t.Helper()
	log := zap.NewNop()
	tracker := executor.NewTracker()
	session := risk.NewSession(risk.SessionParams{
		MaxDrawdownPct: 6,
		HardStopPct:    10,
		PauseDuration:  time.Hour,
	}, log, nil)
	registry := indicator.NewRegistry()
	agg := confluence.New(log, exchange.NewPaper(10_000, log), registry, confluence.Options{})
	srv := NewServer("127.0.0.1:0", log, tracker, session, &scheduler.Metrics{},
		registry, agg, journal.NewNop(log),
		[]string{"BTCUSDT"}, model.TF15m)
	return srv, tracker, session
}

func doRequest(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, model.APIResponse) {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp model.APIResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	rec, _ := doRequest(t, srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	srv, tracker, _ := newTestServer(t)
	tracker.Track(model.Position{Symbol: "BTCUSDT", Side: model.SideBuy, Size: 1, EntryPrice: 100})

	rec, resp := doRequest(t, srv, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, data["openPositions"])
	assert.Equal(t, "15m", data["timeframe"])
}

func TestPositionsEndpoint(t *testing.T) {
	t.Parallel()

	srv, tracker, _ := newTestServer(t)
	tracker.Track(model.Position{Symbol: "ETHUSDT", Side: model.SideSell, Size: 2, EntryPrice: 3000})

	rec, resp := doRequest(t, srv, http.MethodGet, "/api/positions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	list, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
}

func TestSignalsEndpoint(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	rec, resp := doRequest(t, srv, http.MethodGet, "/api/signals", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	sym, ok := data["BTCUSDT"].(map[string]any)
	require.True(t, ok)
	states, ok := sym["indicators"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, states, "ema_ms")
	assert.Contains(t, states, "smart_money")
	assert.Contains(t, states, "trend_targets")

	htf, ok := sym["htf"].(string)
	require.True(t, ok)
	assert.Contains(t, []string{"bull", "bear", "neutral", "na"}, htf)
}

func TestRefreshHTFCommand(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	rec, _ := doRequest(t, srv, http.MethodGet, "/api/signals", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := doRequest(t, srv, http.MethodPost, "/api/command", `{"type":"refresh_htf"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "applied", data["status"])
}

func TestPauseAndResumeCommands(t *testing.T) {
	t.Parallel()

	srv, _, session := newTestServer(t)

	rec, _ := doRequest(t, srv, http.MethodPost, "/api/command", `{"type":"pause","minutes":30}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, session.Paused())

	rec, _ = doRequest(t, srv, http.MethodPost, "/api/command", `{"type":"resume"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, session.Paused())
}

func TestCommandValidation(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	rec, _ := doRequest(t, srv, http.MethodGet, "/api/command", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec, _ = doRequest(t, srv, http.MethodPost, "/api/command", `{"type":"selfdestruct"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, srv, http.MethodPost, "/api/command", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
