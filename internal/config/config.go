// Package config handles loading and validating signald configuration from YAML files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the signald daemon.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Trading   TradingConfig   `yaml:"trading"`
	Risk      RiskConfig      `yaml:"risk"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Journal   JournalConfig   `yaml:"journal"`
	API       APIConfig       `yaml:"api"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Env           string `yaml:"env"`
	LogLevel      string `yaml:"logLevel"`
	LogFile       string `yaml:"logFile"`
	LogMaxSizeMB  int    `yaml:"logMaxSizeMB"`
	LogMaxBackups int    `yaml:"logMaxBackups"`
	LogMaxAgeDays int    `yaml:"logMaxAgeDays"`
}

// ExchangeConfig selects the exchange collaborator.
type ExchangeConfig struct {
	Name string `yaml:"name"`
	Demo bool   `yaml:"demo"` // use the in-process paper exchange
}

// TradingConfig holds signal and entry gating settings.
type TradingConfig struct {
	Symbols           []string `yaml:"symbols"`
	Timeframe         string   `yaml:"timeframe"`
	AutoTrade         bool     `yaml:"autoTrade"`
	Leverage          int      `yaml:"leverage"`
	RiskPct           float64  `yaml:"riskPct"`           // % of equity per entry
	MinStrength       int      `yaml:"minStrength"`       // agreeing indicators required to enter
	ExitMinStrength   int      `yaml:"exitMinStrength"`   // agreeing indicators required to exit on reversal
	ExitConfirmations int      `yaml:"exitConfirmations"` // consecutive cycles before a reversal exit
	MaxPositions      int      `yaml:"maxPositions"`
	MaxSpreadPct      float64  `yaml:"maxSpreadPct"`
	MinQuoteVolume    float64  `yaml:"minQuoteVolume"` // 24h quote turnover floor
	EntryCooldownSec  int      `yaml:"entryCooldownSec"`
}

// RiskConfig holds the portfolio drawdown breaker settings.
type RiskConfig struct {
	MaxDrawdownPct   float64 `yaml:"maxDrawdownPct"` // pause when drawdown from peak reaches this
	HardStopPct      float64 `yaml:"hardStopPct"`    // pause when drawdown from session start reaches this
	RiskPauseMinutes int     `yaml:"riskPauseMinutes"`
}

// SchedulerConfig holds per-task polling overrides.
type SchedulerConfig struct {
	MonitorIntervalSec int `yaml:"monitorIntervalSec"` // 0 = derive from timeframe
	SignalCacheSec     int `yaml:"signalCacheSec"`
	HTFCacheSec        int `yaml:"htfCacheSec"`
}

// JournalConfig holds trade journal settings.
type JournalConfig struct {
	Path string `yaml:"path"` // sqlite file; empty disables persistence
}

// APIConfig holds REST status server settings.
type APIConfig struct {
	ListenAddress string `yaml:"listenAddress"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with all defaults applied, suitable for
// demo runs without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults applies sensible defaults for optional fields.
func (c *Config) setDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.LogFile == "" {
		c.App.LogFile = "logs/signald.log"
	}
	if c.App.LogMaxSizeMB == 0 {
		c.App.LogMaxSizeMB = 50
	}
	if c.App.LogMaxBackups == 0 {
		c.App.LogMaxBackups = 10
	}
	if c.App.LogMaxAgeDays == 0 {
		c.App.LogMaxAgeDays = 30
	}
	if c.Exchange.Name == "" {
		c.Exchange.Name = "paper"
		c.Exchange.Demo = true
	}
	if len(c.Trading.Symbols) == 0 {
		c.Trading.Symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	}
	if c.Trading.Timeframe == "" {
		c.Trading.Timeframe = "15m"
	}
	if c.Trading.Leverage == 0 {
		c.Trading.Leverage = 10
	}
	if c.Trading.RiskPct == 0 {
		c.Trading.RiskPct = 7.0
	}
	if c.Trading.MinStrength == 0 {
		c.Trading.MinStrength = 2
	}
	if c.Trading.ExitMinStrength == 0 {
		c.Trading.ExitMinStrength = 2
	}
	if c.Trading.ExitConfirmations == 0 {
		c.Trading.ExitConfirmations = 2
	}
	if c.Trading.MaxPositions == 0 {
		c.Trading.MaxPositions = 2
	}
	if c.Trading.MaxSpreadPct == 0 {
		c.Trading.MaxSpreadPct = 0.15
	}
	if c.Trading.MinQuoteVolume == 0 {
		c.Trading.MinQuoteVolume = 5_000_000
	}
	if c.Trading.EntryCooldownSec == 0 {
		c.Trading.EntryCooldownSec = 300
	}
	if c.Risk.MaxDrawdownPct == 0 {
		c.Risk.MaxDrawdownPct = 6.0
	}
	if c.Risk.HardStopPct == 0 {
		c.Risk.HardStopPct = 10.0
	}
	if c.Risk.RiskPauseMinutes == 0 {
		c.Risk.RiskPauseMinutes = 60
	}
	if c.Scheduler.SignalCacheSec == 0 {
		c.Scheduler.SignalCacheSec = 10
	}
	if c.Scheduler.HTFCacheSec == 0 {
		c.Scheduler.HTFCacheSec = 300
	}
	if c.API.ListenAddress == "" {
		c.API.ListenAddress = "127.0.0.1:8787"
	}
}

// validate rejects configurations that cannot be traded safely.
func (c *Config) validate() error {
	if c.Trading.RiskPct < 0 || c.Trading.RiskPct > 30 {
		return fmt.Errorf("trading.riskPct %.1f out of range (0, 30]", c.Trading.RiskPct)
	}
	if c.Trading.Leverage < 1 || c.Trading.Leverage > 100 {
		return fmt.Errorf("trading.leverage %d out of range [1, 100]", c.Trading.Leverage)
	}
	if c.Trading.MinStrength < 2 || c.Trading.MinStrength > 3 {
		return fmt.Errorf("trading.minStrength %d out of range [2, 3]", c.Trading.MinStrength)
	}
	switch c.Trading.Timeframe {
	case "1m", "5m", "15m", "1h", "4h", "1d":
	default:
		return fmt.Errorf("trading.timeframe %q not supported", c.Trading.Timeframe)
	}
	return nil
}
