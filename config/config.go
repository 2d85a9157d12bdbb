// Package config loads and validates the backtester's YAML configuration.
// Environment variables (optionally from a .env file) override the file
// values they map to.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/backtester/market"
)

// Config is the complete backtester configuration.
type Config struct {
	Account  AccountConfig  `yaml:"account"`
	Data     DataConfig     `yaml:"data"`
	Engine   EngineConfig   `yaml:"engine"`
	Journal  JournalConfig  `yaml:"journal"`
	Strategy StrategyConfig `yaml:"strategy"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Instruments overrides or extends the built-in instrument table,
	// keyed by symbol.
	Instruments map[string]market.InstrumentMeta `yaml:"instruments,omitempty"`
}

type AccountConfig struct {
	Balance  float64 `yaml:"balance"`
	Currency string  `yaml:"currency"`
}

type DataConfig struct {
	Dir       string `yaml:"dir"`
	Symbol    string `yaml:"symbol"`
	Timeframe string `yaml:"timeframe"`
	Start     string `yaml:"start,omitempty"`
	End       string `yaml:"end,omitempty"`
}

type EngineConfig struct {
	// ErrorPolicy is "fail_fast" (default) or "skip_bar".
	ErrorPolicy string `yaml:"error_policy,omitempty"`
}

type JournalConfig struct {
	Type       string `yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `yaml:"trades_file,omitempty"`
	EquityFile string `yaml:"equity_file,omitempty"`
	DBPath     string `yaml:"db_path,omitempty"`
}

type StrategyConfig struct {
	Name string `yaml:"name"`

	LotSize        float64 `yaml:"lot_size,omitempty"`
	StopLossPips   float64 `yaml:"stop_loss_pips,omitempty"`
	TakeProfitPips float64 `yaml:"take_profit_pips,omitempty"`

	EMAPeriod     int     `yaml:"ema_period,omitempty"`
	RSIPeriod     int     `yaml:"rsi_period,omitempty"`
	RSIOverbought float64 `yaml:"rsi_overbought,omitempty"`
	RSIOversold   float64 `yaml:"rsi_oversold,omitempty"`

	// Model strategy only.
	ModelPath           string  `yaml:"model_path,omitempty"`
	ScalerPath          string  `yaml:"scaler_path,omitempty"`
	Lookback            int     `yaml:"lookback,omitempty"`
	PredictionThreshold float64 `yaml:"prediction_threshold,omitempty"`
	MinConfidence       float64 `yaml:"min_confidence,omitempty"`
}

type SweepConfig struct {
	Workers int    `yaml:"workers,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text or json
}

// Load reads the YAML file at path, applies environment overrides, and
// validates the result. A .env file in the working directory is loaded
// first when present.
func Load(path string) (*Config, error) {
	// Missing .env is fine; a present-but-broken one is not.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv maps BACKTESTER_* variables over the file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("BACKTESTER_BALANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Account.Balance = f
		}
	}
	if v := os.Getenv("BACKTESTER_DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv("BACKTESTER_SYMBOL"); v != "" {
		c.Data.Symbol = v
	}
	if v := os.Getenv("BACKTESTER_TIMEFRAME"); v != "" {
		c.Data.Timeframe = v
	}
	if v := os.Getenv("BACKTESTER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for use.
func (c *Config) Validate() error {
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}
	if c.Data.Symbol == "" {
		return fmt.Errorf("data.symbol is required")
	}
	if _, err := market.ParseTimeframe(c.Data.Timeframe); err != nil {
		return fmt.Errorf("data.timeframe: %w", err)
	}
	if _, _, err := c.DataRange(); err != nil {
		return err
	}

	switch c.Engine.ErrorPolicy {
	case "", "fail_fast", "skip_bar":
	default:
		return fmt.Errorf("engine.error_policy must be fail_fast or skip_bar, got %q", c.Engine.ErrorPolicy)
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal.trades_file and journal.equity_file required for csv journal")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite journal")
		}
	default:
		return fmt.Errorf("journal.type must be none, csv or sqlite, got %q", c.Journal.Type)
	}

	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}

	if c.Sweep.Timeout != "" {
		if _, err := time.ParseDuration(c.Sweep.Timeout); err != nil {
			return fmt.Errorf("sweep.timeout: %w", err)
		}
	}
	if c.Sweep.Workers < 0 {
		return fmt.Errorf("sweep.workers must not be negative")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// Timeframe returns the parsed data timeframe. Call after Validate.
func (c *Config) Timeframe() market.Timeframe {
	tf, _ := market.ParseTimeframe(c.Data.Timeframe)
	return tf
}

// DataRange parses the optional start/end bounds. An empty bound is the
// zero time (open-ended).
func (c *Config) DataRange() (start, end time.Time, err error) {
	if c.Data.Start != "" {
		if start, err = parseDate(c.Data.Start); err != nil {
			return start, end, fmt.Errorf("data.start: %w", err)
		}
	}
	if c.Data.End != "" {
		if end, err = parseDate(c.Data.End); err != nil {
			return start, end, fmt.Errorf("data.end: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return start, end, fmt.Errorf("data.end must be after data.start")
	}
	return start, end, nil
}

// SweepTimeout returns the parsed per-run timeout, zero when unset.
func (c *Config) SweepTimeout() time.Duration {
	if c.Sweep.Timeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Sweep.Timeout)
	return d
}

// Instrument resolves the configured symbol against the override table
// first, then the built-in defaults.
func (c *Config) Instrument() market.InstrumentMeta {
	if m, ok := c.Instruments[strings.ToUpper(c.Data.Symbol)]; ok {
		return m
	}
	return market.Lookup(nil, c.Data.Symbol)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%q: want RFC3339 or YYYY-MM-DD", s)
}

// Default returns the baseline configuration a file is merged over.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Balance:  10_000,
			Currency: "USD",
		},
		Data: DataConfig{
			Dir:       "./data",
			Symbol:    "EURUSD",
			Timeframe: "H1",
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Strategy: StrategyConfig{
			Name: "ema-cross",
		},
		Sweep: SweepConfig{
			Workers: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
