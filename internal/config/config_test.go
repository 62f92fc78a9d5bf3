package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATA_DIR", "SQLITE_PATH", "LOG_LEVEL",
		"ALPACA_API_KEY", "ALPACA_API_SECRET", "ALPACA_DATA_URL",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "strat-tester-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}
	return tmpFile.Name()
}

func TestLoadFullConfig(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
storage:
  data_dir: "/tmp/strat-tester/data"
  sqlite_path: "/tmp/strat-tester/runs.db"
backtest:
  initial_capital: 25000
  bars_per_year: 252
permutation:
  count: 500
  seed: 7
  workers: 4
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
  rate_limit_per_min: 100
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/strat-tester/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/strat-tester/data")
	}
	if cfg.Storage.SQLitePath != "/tmp/strat-tester/runs.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/strat-tester/runs.db")
	}

	// -- Backtest --
	if cfg.Backtest.InitialCapital != 25000 {
		t.Errorf("Backtest.InitialCapital = %v, want 25000", cfg.Backtest.InitialCapital)
	}
	if cfg.Backtest.BarsPerYear != 252 {
		t.Errorf("Backtest.BarsPerYear = %v, want 252", cfg.Backtest.BarsPerYear)
	}

	// -- Permutation --
	if cfg.Permutation.Count != 500 {
		t.Errorf("Permutation.Count = %d, want 500", cfg.Permutation.Count)
	}
	if cfg.Permutation.Seed != 7 {
		t.Errorf("Permutation.Seed = %d, want 7", cfg.Permutation.Seed)
	}
	if cfg.Permutation.Workers != 4 {
		t.Errorf("Permutation.Workers = %d, want 4", cfg.Permutation.Workers)
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if cfg.Alpaca.RateLimitPerMin != 100 {
		t.Errorf("Alpaca.RateLimitPerMin = %d, want 100", cfg.Alpaca.RateLimitPerMin)
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
storage:
  data_dir: "/custom/data"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.DataDir != "/custom/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/custom/data")
	}
	if cfg.Backtest.InitialCapital != 10000 {
		t.Errorf("default InitialCapital = %v, want 10000", cfg.Backtest.InitialCapital)
	}
	if cfg.Backtest.BarsPerYear != 252*24 {
		t.Errorf("default BarsPerYear = %v, want %v", cfg.Backtest.BarsPerYear, 252*24)
	}
	if cfg.Permutation.Count != 100 || cfg.Permutation.Seed != 42 || cfg.Permutation.Workers != 1 {
		t.Errorf("default Permutation = %+v, want count=100 seed=42 workers=1", cfg.Permutation)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestDefaultMatchesLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	if cfg.Backtest.InitialCapital != 10000 || cfg.Permutation.Seed != 42 {
		t.Errorf("Default() = %+v, want standard defaults", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path.yaml"); err == nil {
		t.Error("Load of missing file did not error")
	}
}
