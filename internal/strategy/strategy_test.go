package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/subhashjprasad/strat-tester/internal/backtest"
	"github.com/subhashjprasad/strat-tester/internal/domain"
)

// stubStrategy is a minimal Strategy implementation used in registry tests.
type stubStrategy struct {
	name    string
	signals []domain.Signal
	err     error
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Signals(_ []domain.Bar) ([]domain.Signal, error) {
	return s.signals, s.err
}

func testBars(n int) []domain.Bar {
	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{
			Symbol:    "TEST",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Close:     100 + float64(i),
		}
	}
	return bars
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	s := &stubStrategy{name: "test-strategy"}

	r.Register(s)

	got, ok := r.Get("test-strategy")
	if !ok {
		t.Fatal("Get returned false for registered strategy")
	}
	if got.Name() != "test-strategy" {
		t.Errorf("Get returned strategy with Name() = %q, want %q", got.Name(), "test-strategy")
	}
}

func TestRegistryGet_NotFound(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nonexistent")
	if ok {
		t.Error("Get returned true for unregistered strategy")
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubStrategy{name: "alpha"})
	r.Register(&stubStrategy{name: "beta"})

	names := r.List()
	if len(names) != 2 {
		t.Fatalf("List returned %d names, want 2", len(names))
	}
	// List returns sorted names.
	if names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List returned %v, want [alpha beta]", names)
	}
}

func TestRunValidatesAlignment(t *testing.T) {
	bars := testBars(3)

	aligned := &stubStrategy{name: "ok", signals: make([]domain.Signal, 3)}
	signals, err := Run(aligned, bars)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(signals) != 3 {
		t.Errorf("Run returned %d signals, want 3", len(signals))
	}

	short := &stubStrategy{name: "short", signals: make([]domain.Signal, 2)}
	if _, err := Run(short, bars); !errors.Is(err, backtest.ErrLengthMismatch) {
		t.Errorf("short output: err = %v, want ErrLengthMismatch", err)
	}

	failing := &stubStrategy{name: "broken", err: errors.New("no data")}
	if _, err := Run(failing, bars); err == nil {
		t.Error("Run swallowed the strategy's own error")
	}
}
