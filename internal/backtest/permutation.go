package backtest

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/subhashjprasad/strat-tester/internal/domain"
)

// PermutationConfig controls a permutation test run.
type PermutationConfig struct {
	// Permutations is the number of shuffled runs requested.
	Permutations int

	// Seed initializes the PRNG that orders the shuffles. The same seed and
	// inputs always reproduce the same report, regardless of Workers.
	Seed uint64

	// Workers is the number of goroutines simulating shuffled series.
	// Values below 1 mean sequential execution.
	Workers int

	// InitialCapital is the starting equity for every run.
	InitialCapital float64
}

// PermutationReport ranks a strategy's return against a null distribution
// built from randomly reordered copies of its own signal series.
type PermutationReport struct {
	OriginalReturn    float64 `json:"original_return"`
	RandomReturnsMean float64 `json:"random_returns_mean"`
	RandomReturnsStd  float64 `json:"random_returns_std"`
	PValue            float64 `json:"p_value"`
	Percentile        float64 `json:"percentile"`

	// Permutations is the number of shuffled runs that succeeded, which may
	// be less than Requested.
	Permutations int `json:"num_permutations"`
	Requested    int `json:"requested_permutations"`

	Significant bool `json:"significant"`
}

// significanceLevel is the fixed one-sided threshold behind the Significant
// flag; it is not configurable.
const significanceLevel = 0.05

// PermutationTest measures whether the strategy's return is distinguishable
// from chance. It simulates the true signal series once, then simulates
// cfg.Permutations uniformly random reorderings of the same signals and
// ranks the true return against the shuffled returns. Each reordering
// preserves the multiset of Buy/Sell/Hold values; only their temporal order
// changes.
//
// Shuffles are drawn from a single sequential PRNG stream before any
// simulation starts, so the report is identical for any worker count. An
// individual shuffled run that fails is logged and skipped; the test fails
// only when no shuffled run succeeds, including when zero permutations are
// requested.
func PermutationTest(bars []domain.Bar, signals []domain.Signal, cfg PermutationConfig) (PermutationReport, error) {
	trajectory, _, err := Simulate(bars, signals, cfg.InitialCapital)
	if err != nil {
		return PermutationReport{}, fmt.Errorf("permutation test: %w", err)
	}
	originalReturn := totalReturnPct(trajectory, cfg.InitialCapital)

	// Materialize all shuffles up front on one PRNG stream. This keeps the
	// shuffled inputs independent of scheduling when the simulations below
	// run in parallel.
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	shuffled := make([][]domain.Signal, cfg.Permutations)
	for i := range shuffled {
		copySignals := make([]domain.Signal, len(signals))
		copy(copySignals, signals)
		rng.Shuffle(len(copySignals), func(a, b int) {
			copySignals[a], copySignals[b] = copySignals[b], copySignals[a]
		})
		shuffled[i] = copySignals
	}

	returns := make([]float64, cfg.Permutations)
	for i := range returns {
		returns[i] = math.NaN() // NaN marks a failed run
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > cfg.Permutations {
		workers = cfg.Permutations
	}

	if cfg.Permutations > 0 {
		idxCh := make(chan int, cfg.Permutations)
		for i := 0; i < cfg.Permutations; i++ {
			idxCh <- i
		}
		close(idxCh)

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range idxCh {
					traj, _, err := Simulate(bars, shuffled[i], cfg.InitialCapital)
					if err != nil {
						slog.Warn("permutation run failed", "iteration", i, "err", err)
						continue
					}
					returns[i] = totalReturnPct(traj, cfg.InitialCapital)
				}
			}()
		}
		wg.Wait()
	}

	valid := returns[:0:0]
	for _, r := range returns {
		if !math.IsNaN(r) {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return PermutationReport{}, fmt.Errorf("permutation test: %w", ErrNoValidPermutations)
	}

	// One-sided p-value; a shuffled result tied with the original counts as
	// beating it.
	better := 0
	for _, r := range valid {
		if r >= originalReturn {
			better++
		}
	}
	pValue := float64(better) / float64(len(valid))
	mean := meanOf(valid)

	return PermutationReport{
		OriginalReturn:    round2(originalReturn),
		RandomReturnsMean: round2(mean),
		RandomReturnsStd:  round2(stddev(valid, mean)),
		PValue:            round4(pValue),
		Percentile:        round1((1 - pValue) * 100),
		Permutations:      len(valid),
		Requested:         cfg.Permutations,
		Significant:       pValue < significanceLevel,
	}, nil
}

// totalReturnPct is the percentage gain of a trajectory's final value over
// the initial capital.
func totalReturnPct(trajectory []float64, initialCapital float64) float64 {
	return (trajectory[len(trajectory)-1] - initialCapital) / initialCapital * 100
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
