// Package strategy defines the Strategy interface for signal generators and
// provides a Registry for managing multiple strategy implementations.
package strategy

import (
	"fmt"
	"sort"

	"github.com/subhashjprasad/strat-tester/internal/backtest"
	"github.com/subhashjprasad/strat-tester/internal/domain"
)

// Strategy maps a bar series to an equal-length signal series. A strategy is
// a pure function of its input: it must not retain state between calls and
// must not look ahead of the bar it is deciding for.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Signals returns one Buy/Sell/Hold decision per input bar.
	Signals(bars []domain.Bar) ([]domain.Signal, error)
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run invokes the strategy and validates that its output is aligned with the
// input bars. A wrong-length signal series is reported as a length mismatch
// rather than passed through to the simulator.
func Run(s Strategy, bars []domain.Bar) ([]domain.Signal, error) {
	signals, err := s.Signals(bars)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", s.Name(), err)
	}
	if len(signals) != len(bars) {
		return nil, fmt.Errorf("strategy %s returned %d signals for %d bars: %w",
			s.Name(), len(signals), len(bars), backtest.ErrLengthMismatch)
	}
	return signals, nil
}
