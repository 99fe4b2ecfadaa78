package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, `
app:
  env: prod
trading:
  symbols: [BTCUSDT]
`))
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "logs/signald.log", cfg.App.LogFile)
	assert.Equal(t, 50, cfg.App.LogMaxSizeMB)
	assert.Equal(t, 10, cfg.App.LogMaxBackups)
	assert.Equal(t, 30, cfg.App.LogMaxAgeDays)
	assert.Equal(t, []string{"BTCUSDT"}, cfg.Trading.Symbols)
	assert.Equal(t, "15m", cfg.Trading.Timeframe)
	assert.Equal(t, 10, cfg.Trading.Leverage)
	assert.InDelta(t, 7.0, cfg.Trading.RiskPct, 1e-9)
	assert.Equal(t, 2, cfg.Trading.MinStrength)
	assert.Equal(t, 2, cfg.Trading.ExitConfirmations)
	assert.InDelta(t, 6.0, cfg.Risk.MaxDrawdownPct, 1e-9)
	assert.Equal(t, 60, cfg.Risk.RiskPauseMinutes)
	assert.Equal(t, 10, cfg.Scheduler.SignalCacheSec)
	assert.Equal(t, 300, cfg.Scheduler.HTFCacheSec)
	assert.Equal(t, "127.0.0.1:8787", cfg.API.ListenAddress)
	assert.Equal(t, "paper", cfg.Exchange.Name)
	assert.True(t, cfg.Exchange.Demo)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		yaml string
	}{
		{"risk_too_high", "trading:\n  riskPct: 50\n"},
		{"leverage_out_of_range", "trading:\n  leverage: 200\n"},
		{"bad_timeframe", "trading:\n  timeframe: 2m\n"},
		{"bad_min_strength", "trading:\n  minStrength: 1\n"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.validate())
	assert.NotEmpty(t, cfg.Trading.Symbols)
}
