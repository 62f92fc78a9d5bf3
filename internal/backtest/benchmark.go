package backtest

import (
	"fmt"

	"github.com/subhashjprasad/strat-tester/internal/domain"
)

// Benchmark holds the buy-and-hold statistics a strategy is scored against.
type Benchmark struct {
	TotalReturn float64 `json:"total_return"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	FinalValue  float64 `json:"final_value"`
}

// BuyAndHold computes the benchmark trajectory that buys the full position
// at the first bar's close and never sells. It is the closed-form equivalent
// of Simulate with a [Buy, Hold, Hold, ...] signal series and yields
// numerically identical trajectories. barsPerYear is the annualization
// factor for the Sharpe ratio; pass DefaultBarsPerYear for hourly bars.
func BuyAndHold(bars []domain.Bar, initialCapital, barsPerYear float64) (Benchmark, []float64, error) {
	if len(bars) == 0 {
		return Benchmark{}, nil, fmt.Errorf("buy and hold: %w", ErrEmptySeries)
	}
	if initialCapital <= 0 {
		return Benchmark{}, nil, fmt.Errorf("buy and hold: capital %v: %w", initialCapital, ErrInvalidCapital)
	}

	shares := initialCapital / bars[0].Close
	trajectory := make([]float64, len(bars))
	for i, bar := range bars {
		trajectory[i] = shares * bar.Close
	}

	finalValue := trajectory[len(trajectory)-1]
	bench := Benchmark{
		TotalReturn: round2((finalValue - initialCapital) / initialCapital * 100),
		SharpeRatio: round3(sharpeRatio(simpleReturns(trajectory), barsPerYear)),
		MaxDrawdown: round2(maxDrawdown(trajectory)),
		FinalValue:  round2(finalValue),
	}
	return bench, trajectory, nil
}
