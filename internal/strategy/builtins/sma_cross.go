// Package builtins provides built-in strategy implementations that ship with
// strat-tester.
package builtins

import (
	"fmt"

	"github.com/subhashjprasad/strat-tester/internal/domain"
	"github.com/subhashjprasad/strat-tester/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It emits a
// buy signal when the short-period SMA rises above the long-period SMA while
// flat, and a sell signal when it falls below while long. Bars inside the
// long-period warmup window always emit hold.
type SMACross struct {
	shortPeriod int
	longPeriod  int
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods.
func NewSMACross(short, long int) *SMACross {
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
	}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Signals computes the crossover decisions for the full bar series.
func (s *SMACross) Signals(bars []domain.Bar) ([]domain.Signal, error) {
	if s.shortPeriod <= 0 || s.longPeriod <= s.shortPeriod {
		return nil, fmt.Errorf("invalid SMA periods short=%d long=%d", s.shortPeriod, s.longPeriod)
	}

	shortMA := rollingMean(bars, s.shortPeriod)
	longMA := rollingMean(bars, s.longPeriod)

	signals := make([]domain.Signal, len(bars))
	inPosition := false
	for i := range bars {
		if i < s.longPeriod {
			continue // warmup: hold
		}
		switch {
		case shortMA[i] > longMA[i] && !inPosition:
			signals[i] = domain.SignalBuy
			inPosition = true
		case shortMA[i] < longMA[i] && inPosition:
			signals[i] = domain.SignalSell
			inPosition = false
		}
	}
	return signals, nil
}

// rollingMean computes the trailing simple moving average of close prices
// over the given window. Indices before a full window hold zero.
func rollingMean(bars []domain.Bar, window int) []float64 {
	means := make([]float64, len(bars))
	sum := 0.0
	for i, bar := range bars {
		sum += bar.Close
		if i >= window {
			sum -= bars[i-window].Close
		}
		if i >= window-1 {
			means[i] = sum / float64(window)
		}
	}
	return means
}
