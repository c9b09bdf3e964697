package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Each component receives only
// the section it needs at construction.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Market    MarketConfig    `yaml:"market"`
	Retention RetentionConfig `yaml:"retention"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Proxy     string          `yaml:"proxy"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type FetchConfig struct {
	Symbols         []string `yaml:"symbols"`
	IntervalMinutes int      `yaml:"interval_minutes"`
	CandleInterval  string   `yaml:"candle_interval"`
	PauseMs         int      `yaml:"pause_ms"`
}

type MarketConfig struct {
	Open        string `yaml:"open"`
	Close       string `yaml:"close"`
	TradingDays []int  `yaml:"trading_days"` // time.Weekday values, 0=Sunday
	Timezone    string `yaml:"timezone"`
}

type RetentionConfig struct {
	Days        int    `yaml:"days"`
	CleanupTime string `yaml:"cleanup_time"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FETCH_SYMBOLS"); v != "" {
		cfg.Fetch.Symbols = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Fetch.Symbols = append(cfg.Fetch.Symbols, strings.ToUpper(s))
			}
		}
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}

	// Defaults
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/stocks.db"
	}
	if len(cfg.Fetch.Symbols) == 0 {
		cfg.Fetch.Symbols = []string{"AAPL", "GOOGL", "MSFT", "TSLA", "AMZN", "NVDA", "META"}
	}
	if cfg.Fetch.IntervalMinutes == 0 {
		cfg.Fetch.IntervalMinutes = 5
	}
	if cfg.Fetch.CandleInterval == "" {
		cfg.Fetch.CandleInterval = "5m"
	}
	if cfg.Fetch.PauseMs == 0 {
		cfg.Fetch.PauseMs = 500
	}
	if cfg.Market.Open == "" {
		cfg.Market.Open = "09:30"
	}
	if cfg.Market.Close == "" {
		cfg.Market.Close = "16:00"
	}
	if len(cfg.Market.TradingDays) == 0 {
		cfg.Market.TradingDays = []int{1, 2, 3, 4, 5} // Monday to Friday
	}
	if cfg.Market.Timezone == "" {
		cfg.Market.Timezone = "America/New_York"
	}
	if cfg.Retention.Days == 0 {
		cfg.Retention.Days = 30
	}
	if cfg.Retention.CleanupTime == "" {
		cfg.Retention.CleanupTime = "06:00"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}

	return cfg, nil
}

// Validate checks that all fields are usable.
func (c *Config) Validate() error {
	if c.Fetch.IntervalMinutes <= 0 {
		return fmt.Errorf("fetch.interval_minutes must be positive")
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("retention.days must be positive")
	}
	if _, _, err := ParseClock(c.Market.Open); err != nil {
		return fmt.Errorf("market.open: %w", err)
	}
	if _, _, err := ParseClock(c.Market.Close); err != nil {
		return fmt.Errorf("market.close: %w", err)
	}
	if _, _, err := ParseClock(c.Retention.CleanupTime); err != nil {
		return fmt.Errorf("retention.cleanup_time: %w", err)
	}
	for _, d := range c.Market.TradingDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("market.trading_days: %d is not a weekday (0=Sunday..6=Saturday)", d)
		}
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}
	return nil
}

// ParseClock parses an "HH:MM" wall-clock string.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	return t.Hour(), t.Minute(), nil
}
