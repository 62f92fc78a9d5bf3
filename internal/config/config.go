// Package config loads the strat-tester YAML configuration and applies
// environment variable overrides.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for strat-tester.
type Config struct {
	Storage     Storage     `yaml:"storage"`
	Backtest    Backtest    `yaml:"backtest"`
	Permutation Permutation `yaml:"permutation"`
	Alpaca      Alpaca      `yaml:"alpaca"`
	Logging     Logging     `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Backtest defines simulation and scoring parameters.
type Backtest struct {
	// InitialCapital is the starting equity for every run.
	InitialCapital float64 `yaml:"initial_capital"`

	// BarsPerYear annualizes the Sharpe ratio. The default assumes hourly
	// bars over a 252-trading-day year.
	BarsPerYear float64 `yaml:"bars_per_year"`
}

// Permutation controls the significance test.
type Permutation struct {
	Count   int    `yaml:"count"`
	Seed    uint64 `yaml:"seed"`
	Workers int    `yaml:"workers"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	DataURL         string `yaml:"data_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no config file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, fills unset fields with defaults, and then applies
// environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyDefaults fills zero-valued fields with working defaults so a partial
// config file stays usable.
func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/strat-tester.db"
	}
	if cfg.Backtest.InitialCapital == 0 {
		cfg.Backtest.InitialCapital = 10000
	}
	if cfg.Backtest.BarsPerYear == 0 {
		cfg.Backtest.BarsPerYear = 252 * 24
	}
	if cfg.Permutation.Count == 0 {
		cfg.Permutation.Count = 100
	}
	if cfg.Permutation.Seed == 0 {
		cfg.Permutation.Seed = 42
	}
	if cfg.Permutation.Workers == 0 {
		cfg.Permutation.Workers = 1
	}
	if cfg.Alpaca.RateLimitPerMin == 0 {
		cfg.Alpaca.RateLimitPerMin = 200
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars take highest priority; these are the
	// canonical names the SDK reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
