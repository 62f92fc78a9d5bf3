// Package backtest simulates a trading strategy against historical bars,
// scores the resulting equity trajectory against a buy-and-hold benchmark,
// and can assess statistical significance via a permutation test.
//
// All components are pure: inputs are fully materialized before a call,
// every run owns its own state, and nothing is shared across calls.
package backtest

import (
	"fmt"
	"time"

	"github.com/subhashjprasad/strat-tester/internal/domain"
)

// position is the simulator's process state: all capital is held either as
// cash (flat) or as the instrument (long). It never outlives a single run.
type position int8

const (
	flat position = iota
	long
)

// TradeAction identifies the side of an executed trade.
type TradeAction string

const (
	TradeBuy  TradeAction = "buy"
	TradeSell TradeAction = "sell"
)

// Trade records a single position transition during a simulation run. The
// trade log is append-only and ordered by emission time.
type Trade struct {
	Timestamp time.Time   `json:"date"`
	Action    TradeAction `json:"action"`
	Price     float64     `json:"price"`
	Shares    float64     `json:"shares"`
}

// Simulate replays the signal series over the bar series with whole-capital,
// long-only allocation and returns the per-bar mark-to-market equity
// trajectory together with the trade log.
//
// Bars are processed strictly in index order. A Buy signal while flat
// converts the entire cash balance to shares at that bar's close; a Sell
// signal while long converts the entire share balance back to cash. Every
// other signal/position combination is a no-op, including out-of-domain
// signal values, which are deliberately tolerated as Hold. The trajectory
// always has exactly len(bars) entries, with trajectory[0] reflecting the
// decision made at bar 0.
func Simulate(bars []domain.Bar, signals []domain.Signal, initialCapital float64) ([]float64, []Trade, error) {
	if len(bars) == 0 {
		return nil, nil, fmt.Errorf("simulate: %w", ErrEmptySeries)
	}
	if len(signals) != len(bars) {
		return nil, nil, fmt.Errorf("simulate: %d signals for %d bars: %w", len(signals), len(bars), ErrLengthMismatch)
	}
	if initialCapital <= 0 {
		return nil, nil, fmt.Errorf("simulate: capital %v: %w", initialCapital, ErrInvalidCapital)
	}

	var (
		pos        = flat
		cash       = initialCapital
		shares     float64
		trajectory = make([]float64, 0, len(bars))
		trades     []Trade
	)

	for i, bar := range bars {
		price := bar.Close

		switch {
		case signals[i] == domain.SignalBuy && pos == flat:
			shares = cash / price
			cash = 0
			pos = long
			trades = append(trades, Trade{
				Timestamp: bar.Timestamp,
				Action:    TradeBuy,
				Price:     price,
				Shares:    shares,
			})

		case signals[i] == domain.SignalSell && pos == long:
			cash = shares * price
			trades = append(trades, Trade{
				Timestamp: bar.Timestamp,
				Action:    TradeSell,
				Price:     price,
				Shares:    shares,
			})
			shares = 0
			pos = flat
		}

		if pos == long {
			trajectory = append(trajectory, shares*price)
		} else {
			trajectory = append(trajectory, cash)
		}
	}

	return trajectory, trades, nil
}
