package backtest

import (
	"errors"
	"testing"

	"github.com/subhashjprasad/strat-tester/internal/domain"
)

func permutationFixture() ([]domain.Bar, []domain.Signal) {
	bars := makeBars(100, 104, 99, 108, 112, 107, 115, 111, 118, 120)
	signals := []domain.Signal{
		domain.SignalBuy, domain.SignalHold, domain.SignalHold, domain.SignalHold,
		domain.SignalSell, domain.SignalBuy, domain.SignalHold, domain.SignalSell,
		domain.SignalBuy, domain.SignalHold,
	}
	return bars, signals
}

func TestPermutationTestDeterministic(t *testing.T) {
	bars, signals := permutationFixture()
	cfg := PermutationConfig{
		Permutations:   100,
		Seed:           42,
		Workers:        1,
		InitialCapital: 10000,
	}

	first, err := PermutationTest(bars, signals, cfg)
	if err != nil {
		t.Fatalf("PermutationTest: %v", err)
	}
	second, err := PermutationTest(bars, signals, cfg)
	if err != nil {
		t.Fatalf("PermutationTest: %v", err)
	}
	if first != second {
		t.Errorf("same seed produced different reports:\n  first  %+v\n  second %+v", first, second)
	}
}

func TestPermutationTestWorkerCountInvariant(t *testing.T) {
	bars, signals := permutationFixture()
	base := PermutationConfig{Permutations: 50, Seed: 7, InitialCapital: 10000}

	sequential := base
	sequential.Workers = 1
	parallel := base
	parallel.Workers = 8

	seqReport, err := PermutationTest(bars, signals, sequential)
	if err != nil {
		t.Fatalf("PermutationTest (sequential): %v", err)
	}
	parReport, err := PermutationTest(bars, signals, parallel)
	if err != nil {
		t.Fatalf("PermutationTest (parallel): %v", err)
	}
	if seqReport != parReport {
		t.Errorf("worker count changed the report:\n  workers=1 %+v\n  workers=8 %+v", seqReport, parReport)
	}
}

func TestPermutationTestReportShape(t *testing.T) {
	bars, signals := permutationFixture()
	report, err := PermutationTest(bars, signals, PermutationConfig{
		Permutations:   200,
		Seed:           1,
		Workers:        4,
		InitialCapital: 10000,
	})
	if err != nil {
		t.Fatalf("PermutationTest: %v", err)
	}

	if report.Requested != 200 {
		t.Errorf("Requested = %d, want 200", report.Requested)
	}
	if report.Permutations != 200 {
		t.Errorf("Permutations = %d, want 200 (no run can fail when the original succeeded)", report.Permutations)
	}
	if report.PValue < 0 || report.PValue > 1 {
		t.Errorf("PValue = %v, want within [0, 1]", report.PValue)
	}
	wantPercentile := round1((1 - report.PValue) * 100)
	if report.Percentile != wantPercentile {
		t.Errorf("Percentile = %v, want %v", report.Percentile, wantPercentile)
	}
	if report.Significant != (report.PValue < 0.05) {
		t.Errorf("Significant = %v inconsistent with PValue %v", report.Significant, report.PValue)
	}
}

func TestPermutationTestDifferentSeedsDiffer(t *testing.T) {
	bars := makeBars(
		100, 103.2, 98.7, 108.9, 111.4, 104.3, 117.8, 109.2, 121.6, 119.9,
		126.3, 114.8, 131.1, 127.4, 135.6, 122.2, 140.9, 137.3, 129.8, 144.5,
	)
	signals := make([]domain.Signal, len(bars))
	for i := range signals {
		switch i % 3 {
		case 0:
			signals[i] = domain.SignalBuy
		case 1:
			signals[i] = domain.SignalHold
		case 2:
			signals[i] = domain.SignalSell
		}
	}
	base := PermutationConfig{Permutations: 100, InitialCapital: 10000, Workers: 1}

	a := base
	a.Seed = 1
	b := base
	b.Seed = 2

	reportA, err := PermutationTest(bars, signals, a)
	if err != nil {
		t.Fatalf("PermutationTest: %v", err)
	}
	reportB, err := PermutationTest(bars, signals, b)
	if err != nil {
		t.Fatalf("PermutationTest: %v", err)
	}
	// The null distributions are built from different shuffle orders, so at
	// least the mean of the random returns should move.
	if reportA == reportB {
		t.Error("different seeds produced identical reports")
	}
}

func TestPermutationTestAllHoldSignalsTie(t *testing.T) {
	// Every permutation of an all-hold series is the same series: all random
	// returns equal the original, ties count against the strategy, and the
	// p-value pins to 1.
	bars := makeBars(100, 104, 99, 108)
	signals := make([]domain.Signal, len(bars))

	report, err := PermutationTest(bars, signals, PermutationConfig{
		Permutations:   20,
		Seed:           3,
		InitialCapital: 10000,
	})
	if err != nil {
		t.Fatalf("PermutationTest: %v", err)
	}
	if report.PValue != 1 {
		t.Errorf("PValue = %v, want 1 for all-tie null distribution", report.PValue)
	}
	if report.Significant {
		t.Error("Significant = true for all-tie null distribution")
	}
}

func TestPermutationTestZeroPermutations(t *testing.T) {
	bars, signals := permutationFixture()
	_, err := PermutationTest(bars, signals, PermutationConfig{
		Permutations:   0,
		Seed:           42,
		InitialCapital: 10000,
	})
	if !errors.Is(err, ErrNoValidPermutations) {
		t.Errorf("err = %v, want ErrNoValidPermutations", err)
	}
}

func TestPermutationTestPropagatesInputErrors(t *testing.T) {
	bars, signals := permutationFixture()

	if _, err := PermutationTest(nil, nil, PermutationConfig{Permutations: 10, InitialCapital: 10000}); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("empty bars: err = %v, want ErrEmptySeries", err)
	}
	if _, err := PermutationTest(bars, signals[:3], PermutationConfig{Permutations: 10, InitialCapital: 10000}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("short signals: err = %v, want ErrLengthMismatch", err)
	}
	if _, err := PermutationTest(bars, signals, PermutationConfig{Permutations: 10}); !errors.Is(err, ErrInvalidCapital) {
		t.Errorf("zero capital: err = %v, want ErrInvalidCapital", err)
	}
}
