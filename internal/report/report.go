// Package report assembles backtest and permutation results into the JSON
// envelope consumed by downstream charting and the CLI. The envelope always
// carries an explicit success flag so failures are distinguishable from
// empty results.
package report

import (
	"encoding/json"
	"io"
	"math"

	"github.com/subhashjprasad/strat-tester/internal/backtest"
	"github.com/subhashjprasad/strat-tester/internal/domain"
)

const (
	// maxCurvePoints caps the decimated equity curves for charting.
	maxCurvePoints = 500

	// Trade log caps for the two test types.
	maxBacktestTrades    = 50
	maxPermutationTrades = 10

	dateLayout = "2006-01-02 15:04:05"
)

// CurvePoint is one sampled value of an equity trajectory.
type CurvePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// TradeView is the serialized form of an executed trade.
type TradeView struct {
	Date   string  `json:"date"`
	Action string  `json:"action"`
	Price  float64 `json:"price"`
	Shares float64 `json:"shares"`
}

// Result is the top-level envelope for one run.
type Result struct {
	Success         bool                        `json:"success"`
	TestType        string                      `json:"test_type,omitempty"`
	Metrics         *backtest.Metrics           `json:"metrics,omitempty"`
	PermutationTest *backtest.PermutationReport `json:"permutation_test,omitempty"`
	EquityCurve     []CurvePoint                `json:"equity_curve,omitempty"`
	BenchmarkCurve  []CurvePoint                `json:"benchmark_curve,omitempty"`
	Trades          []TradeView                 `json:"trades"`
	TotalTrades     int                         `json:"total_trades"`
	Error           string                      `json:"error,omitempty"`
}

// NewBacktestResult builds the envelope for a standard backtest: metrics,
// decimated strategy and benchmark curves, and the trade log capped at 50
// entries (TotalTrades preserves the full count).
func NewBacktestResult(bars []domain.Bar, trajectory, benchmark []float64, metrics backtest.Metrics, trades []backtest.Trade) *Result {
	return &Result{
		Success:        true,
		TestType:       "backtest",
		Metrics:        &metrics,
		EquityCurve:    SampleCurve(bars, trajectory),
		BenchmarkCurve: SampleCurve(bars, benchmark),
		Trades:         tradeViews(trades, maxBacktestTrades),
		TotalTrades:    len(trades),
	}
}

// NewPermutationResult builds the envelope for a permutation test run. The
// trade log is capped harder than for a plain backtest since the focus is
// the significance report.
func NewPermutationResult(metrics backtest.Metrics, permutation backtest.PermutationReport, trades []backtest.Trade) *Result {
	return &Result{
		Success:         true,
		TestType:        "permutation",
		Metrics:         &metrics,
		PermutationTest: &permutation,
		Trades:          tradeViews(trades, maxPermutationTrades),
		TotalTrades:     len(trades),
	}
}

// NewErrorResult builds a failure envelope carrying the error description.
func NewErrorResult(err error) *Result {
	return &Result{
		Success: false,
		Trades:  []TradeView{},
		Error:   err.Error(),
	}
}

// Write serializes the envelope as a single JSON document.
func (r *Result) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	return enc.Encode(r)
}

// SampleCurve decimates a trajectory to at most maxCurvePoints entries by
// taking every k-th bar, with values rounded to cents. Trajectories shorter
// than the cap pass through whole.
func SampleCurve(bars []domain.Bar, trajectory []float64) []CurvePoint {
	if len(trajectory) == 0 || len(bars) != len(trajectory) {
		return nil
	}
	step := len(trajectory) / maxCurvePoints
	if step < 1 {
		step = 1
	}
	points := make([]CurvePoint, 0, len(trajectory)/step+1)
	for i := 0; i < len(trajectory); i += step {
		points = append(points, CurvePoint{
			Date:  bars[i].Timestamp.Format(dateLayout),
			Value: roundCents(trajectory[i]),
		})
	}
	return points
}

func tradeViews(trades []backtest.Trade, limit int) []TradeView {
	if len(trades) > limit {
		trades = trades[:limit]
	}
	views := make([]TradeView, len(trades))
	for i, t := range trades {
		views[i] = TradeView{
			Date:   t.Timestamp.Format(dateLayout),
			Action: string(t.Action),
			Price:  t.Price,
			Shares: t.Shares,
		}
	}
	return views
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
