package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subhashjprasad/strat-tester/internal/backtest"
	"github.com/subhashjprasad/strat-tester/internal/config"
	"github.com/subhashjprasad/strat-tester/internal/domain"
	"github.com/subhashjprasad/strat-tester/internal/fetch"
	"github.com/subhashjprasad/strat-tester/internal/loader"
	"github.com/subhashjprasad/strat-tester/internal/report"
	"github.com/subhashjprasad/strat-tester/internal/store"
	"github.com/subhashjprasad/strat-tester/internal/strategy"
	"github.com/subhashjprasad/strat-tester/internal/strategy/builtins"
	"github.com/subhashjprasad/strat-tester/internal/util"
)

const version = "0.1.0"

const dateLayout = "2006-01-02"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: strat-tester <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  run          Backtest a strategy and print a JSON report\n")
	fmt.Fprintf(os.Stderr, "  permutation  Run a permutation significance test\n")
	fmt.Fprintf(os.Stderr, "  fetch        Download hourly bars from Alpaca into the bar store\n")
	fmt.Fprintf(os.Stderr, "  runs         List saved runs\n")
	fmt.Fprintf(os.Stderr, "  version      Print the version\n")
	fmt.Fprintf(os.Stderr, "\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(ctx, os.Args[2:], false)
	case "permutation":
		err = cmdRun(ctx, os.Args[2:], true)
	case "fetch":
		err = cmdFetch(ctx, os.Args[2:])
	case "runs":
		err = cmdRuns(ctx, os.Args[2:])
	case "version":
		fmt.Printf("strat-tester %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the config path from the flag or environment and loads
// it. A missing file is not fatal: defaults apply.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = "config/strat-tester.yaml"
		if p := os.Getenv("STRAT_TESTER_CONFIG"); p != "" {
			path = p
		}
	}
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func setupLogger(cfg *config.Config) {
	util.SetDefault(util.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))
}

func newRegistry() *strategy.Registry {
	reg := strategy.NewRegistry()
	reg.Register(builtins.NewSMACross(10, 30))
	return reg
}

// loadBars reads bars either from a CSV export or from the parquet store.
func loadBars(ctx context.Context, cfg *config.Config, csvPath, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if csvPath != "" {
		return loader.LoadCSVFile(csvPath, symbol)
	}
	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	return pstore.ReadBars(ctx, symbol, start, end)
}

// cmdRun handles both the run and permutation commands. The two share input
// handling and the metrics pipeline; permutation adds the significance test
// on top.
func cmdRun(ctx context.Context, args []string, permutation bool) error {
	name := "run"
	if permutation {
		name = "permutation"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to config file")
	symbol := fs.String("symbol", "", "symbol to test (required)")
	csvPath := fs.String("csv", "", "load bars from a CSV file instead of the bar store")
	stratName := fs.String("strategy", "sma-cross", "strategy to evaluate")
	startStr := fs.String("start", "", "start date YYYY-MM-DD (bar store only)")
	endStr := fs.String("end", "", "end date YYYY-MM-DD (bar store only)")
	capital := fs.Float64("capital", 0, "initial capital (overrides config)")
	save := fs.Bool("save", false, "persist the run to the run store")

	var nPerm *int
	var seed *uint64
	var workers *int
	if permutation {
		nPerm = fs.Int("n", 0, "number of permutations (overrides config)")
		seed = fs.Uint64("seed", 0, "PRNG seed (overrides config)")
		workers = fs.Int("workers", 0, "parallel workers (overrides config)")
	}
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return fail(err)
	}
	setupLogger(cfg)

	if *symbol == "" && *csvPath == "" {
		return fail(errors.New("one of -symbol or -csv is required"))
	}
	if *capital > 0 {
		cfg.Backtest.InitialCapital = *capital
	}

	start, end, err := parseRange(*startStr, *endStr)
	if err != nil {
		return fail(err)
	}

	bars, err := loadBars(ctx, cfg, *csvPath, *symbol, start, end)
	if err != nil {
		return fail(err)
	}

	strat, ok := newRegistry().Get(*stratName)
	if !ok {
		return fail(fmt.Errorf("unknown strategy %q", *stratName))
	}

	signals, err := strategy.Run(strat, bars)
	if err != nil {
		return fail(err)
	}

	trajectory, trades, err := backtest.Simulate(bars, signals, cfg.Backtest.InitialCapital)
	if err != nil {
		return fail(err)
	}
	metrics, err := backtest.ComputeMetrics(trajectory, bars, trades, cfg.Backtest.InitialCapital, cfg.Backtest.BarsPerYear)
	if err != nil {
		return fail(err)
	}

	var result *report.Result
	var permReport backtest.PermutationReport
	if permutation {
		pcfg := backtest.PermutationConfig{
			Permutations:   cfg.Permutation.Count,
			Seed:           cfg.Permutation.Seed,
			Workers:        cfg.Permutation.Workers,
			InitialCapital: cfg.Backtest.InitialCapital,
		}
		if *nPerm > 0 {
			pcfg.Permutations = *nPerm
		}
		if *seed > 0 {
			pcfg.Seed = *seed
		}
		if *workers > 0 {
			pcfg.Workers = *workers
		}
		permReport, err = backtest.PermutationTest(bars, signals, pcfg)
		if err != nil {
			return fail(err)
		}
		result = report.NewPermutationResult(metrics, permReport, trades)
	} else {
		_, benchmark, err := backtest.BuyAndHold(bars, cfg.Backtest.InitialCapital, cfg.Backtest.BarsPerYear)
		if err != nil {
			return fail(err)
		}
		result = report.NewBacktestResult(bars, trajectory, benchmark, metrics, trades)
	}

	if err := result.Write(os.Stdout); err != nil {
		return err
	}

	if *save {
		if err := saveRun(ctx, cfg, *symbol, strat.Name(), metrics, trades, permutation, permReport); err != nil {
			slog.Error("saving run", "err", err)
			return err
		}
	}
	return nil
}

// fail prints an error envelope to stdout so callers always get a JSON
// response, then returns the error for the non-zero exit code.
func fail(err error) error {
	if werr := report.NewErrorResult(err).Write(os.Stdout); werr != nil {
		slog.Error("writing error report", "err", werr)
	}
	return err
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Now()
	var err error
	if startStr != "" {
		if start, err = time.Parse(dateLayout, startStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -start: %w", err)
		}
	}
	if endStr != "" {
		if end, err = time.Parse(dateLayout, endStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -end: %w", err)
		}
		// Make the end date inclusive.
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	return start, end, nil
}

func saveRun(ctx context.Context, cfg *config.Config, symbol, stratName string, metrics backtest.Metrics, trades []backtest.Trade, permutation bool, permReport backtest.PermutationReport) error {
	rstore, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer rstore.Close()

	run := &store.Run{
		Symbol:         symbol,
		Strategy:       stratName,
		TestType:       "backtest",
		CreatedAt:      time.Now().UTC(),
		InitialCapital: cfg.Backtest.InitialCapital,
		FinalValue:     metrics.FinalValue,
		TotalReturn:    metrics.TotalReturn,
		SharpeRatio:    metrics.SharpeRatio,
		MaxDrawdown:    metrics.MaxDrawdown,
		Alpha:          metrics.Alpha,
		TotalTrades:    len(trades),
		Trades:         trades,
	}
	if permutation {
		run.TestType = "permutation"
		pv := permReport.PValue
		np := permReport.Permutations
		run.PValue = &pv
		run.Permutations = &np
	}

	if err := rstore.SaveRun(ctx, run); err != nil {
		return err
	}
	slog.Info("run saved", "id", run.ID, "symbol", symbol, "strategy", stratName, "type", run.TestType)
	return nil
}

func cmdFetch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to config file")
	symbol := fs.String("symbol", "", "symbol to fetch (required)")
	startStr := fs.String("start", "", "start date YYYY-MM-DD (required)")
	endStr := fs.String("end", "", "end date YYYY-MM-DD (default today)")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	if *symbol == "" || *startStr == "" {
		fs.Usage()
		return errors.New("-symbol and -start are required")
	}
	start, end, err := parseRange(*startStr, *endStr)
	if err != nil {
		return err
	}
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		return errors.New("alpaca credentials not configured")
	}

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	fetcher := fetch.NewAlpacaFetcher(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, pstore, cfg.Alpaca.RateLimitPerMin)

	n, err := fetcher.Fetch(ctx, *symbol, start, end)
	if err != nil {
		slog.Error("fetch failed", "symbol", *symbol, "err", err)
		return err
	}
	fmt.Printf("fetched %d bars for %s\n", n, *symbol)
	return nil
}

func cmdRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to config file")
	limit := fs.Int("limit", 20, "maximum number of runs to list")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	rstore, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer rstore.Close()

	runs, err := rstore.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no saved runs")
		return nil
	}

	fmt.Printf("%-5s %-8s %-12s %-12s %-20s %10s %8s %8s %7s\n",
		"ID", "SYMBOL", "STRATEGY", "TYPE", "CREATED", "RETURN%", "SHARPE", "ALPHA", "TRADES")
	for _, r := range runs {
		extra := ""
		if r.PValue != nil {
			extra = fmt.Sprintf("  p=%.4f", *r.PValue)
		}
		fmt.Printf("%-5d %-8s %-12s %-12s %-20s %10.2f %8.3f %8.2f %7d%s\n",
			r.ID, r.Symbol, r.Strategy, r.TestType, r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.TotalReturn, r.SharpeRatio, r.Alpha, r.TotalTrades, extra)
	}
	return nil
}
