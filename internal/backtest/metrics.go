package backtest

import (
	"fmt"
	"math"

	"github.com/subhashjprasad/strat-tester/internal/domain"
)

// DefaultBarsPerYear is the annualization factor used for the Sharpe ratio:
// 252 trading days of 24 hourly bars. It is a fixed policy, not detected
// from bar spacing; callers with non-hourly data must pass their own
// bars-per-year value.
const DefaultBarsPerYear = 252 * 24

// Metrics is the derived performance snapshot for one equity trajectory.
// All fields are rounded once, at construction: two decimals for currency
// and percent fields, three for the Sharpe ratio.
type Metrics struct {
	TotalReturn    float64   `json:"total_return"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	WinRate        float64   `json:"win_rate"`
	AvgTradeReturn float64   `json:"avg_trade_return"`
	FinalValue     float64   `json:"final_value"`
	Alpha          float64   `json:"alpha"`
	Benchmark      Benchmark `json:"benchmark"`
}

// ComputeMetrics scores an equity trajectory against the buy-and-hold
// benchmark computed over the same bars and capital. The trade log is used
// only for WinRate and AvgTradeReturn, which are derived from completed
// buy/sell round trips; pass nil when no trade log exists and both report
// zero. The function is pure: the same inputs always produce an identical
// record.
func ComputeMetrics(trajectory []float64, bars []domain.Bar, trades []Trade, initialCapital, barsPerYear float64) (Metrics, error) {
	if len(trajectory) == 0 {
		return Metrics{}, fmt.Errorf("compute metrics: %w", ErrEmptySeries)
	}

	bench, _, err := BuyAndHold(bars, initialCapital, barsPerYear)
	if err != nil {
		return Metrics{}, fmt.Errorf("compute metrics: %w", err)
	}

	finalValue := trajectory[len(trajectory)-1]
	totalReturn := (finalValue - initialCapital) / initialCapital * 100
	winRate, avgTradeReturn := tradeStats(trades)

	return Metrics{
		TotalReturn:    round2(totalReturn),
		SharpeRatio:    round3(sharpeRatio(simpleReturns(trajectory), barsPerYear)),
		MaxDrawdown:    round2(maxDrawdown(trajectory)),
		WinRate:        round2(winRate),
		AvgTradeReturn: round2(avgTradeReturn),
		FinalValue:     round2(finalValue),
		Alpha:          round2(totalReturn - bench.TotalReturn),
		Benchmark:      bench,
	}, nil
}

// simpleReturns computes per-step simple returns over a trajectory, skipping
// entries whose ratio is not finite (zero or near-zero previous values).
func simpleReturns(trajectory []float64) []float64 {
	if len(trajectory) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(trajectory)-1)
	for i := 1; i < len(trajectory); i++ {
		r := (trajectory[i] - trajectory[i-1]) / trajectory[i-1]
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		returns = append(returns, r)
	}
	return returns
}

// sharpeRatio annualizes the mean and volatility of the per-step returns
// with the given bars-per-year factor. It is zero for an empty sample or
// zero volatility.
func sharpeRatio(returns []float64, barsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := meanOf(returns)
	std := stddev(returns, mean)
	if std == 0 {
		return 0
	}
	annualizedReturn := mean * barsPerYear
	annualizedVol := std * math.Sqrt(barsPerYear)
	return annualizedReturn / annualizedVol
}

// maxDrawdown returns the largest percentage decline from a running peak,
// as a non-positive number.
func maxDrawdown(trajectory []float64) float64 {
	peak := trajectory[0]
	worst := 0.0
	for _, v := range trajectory {
		if v > peak {
			peak = v
		}
		dd := (v - peak) / peak * 100
		if dd < worst {
			worst = dd
		}
	}
	return worst
}

// tradeStats derives the win rate and average per-trade return (both in
// percent) from completed buy/sell round trips. A position still open at the
// end of the run is ignored.
func tradeStats(trades []Trade) (winRate, avgReturn float64) {
	var (
		entry     float64
		open      bool
		wins      int
		completed int
		sum       float64
	)
	for _, t := range trades {
		switch t.Action {
		case TradeBuy:
			entry = t.Price
			open = true
		case TradeSell:
			if !open {
				continue
			}
			r := (t.Price - entry) / entry * 100
			sum += r
			completed++
			if r > 0 {
				wins++
			}
			open = false
		}
	}
	if completed == 0 {
		return 0, 0
	}
	return float64(wins) / float64(completed) * 100, sum / float64(completed)
}

func meanOf(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation about the given mean.
func stddev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
