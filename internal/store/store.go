// Package store defines storage interfaces for persisting and retrieving
// bar data and completed backtest runs.
package store

import (
	"context"
	"time"

	"github.com/subhashjprasad/strat-tester/internal/backtest"
	"github.com/subhashjprasad/strat-tester/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end],
	// ordered ascending by timestamp.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in storage.
	ListSymbols(ctx context.Context) ([]string, error)
}

// Run is one persisted backtest or permutation-test execution, summarized
// for later comparison across strategies.
type Run struct {
	ID             int64
	Symbol         string
	Strategy       string
	TestType       string
	CreatedAt      time.Time
	InitialCapital float64
	FinalValue     float64
	TotalReturn    float64
	SharpeRatio    float64
	MaxDrawdown    float64
	Alpha          float64
	TotalTrades    int

	// PValue and Permutations are set only for permutation-test runs.
	PValue       *float64
	Permutations *int

	// Trades is the full trade log; populated by GetRun, left empty by
	// ListRuns.
	Trades []backtest.Trade
}

// RunStore persists and retrieves completed runs.
type RunStore interface {
	// SaveRun inserts a run and its trade log, assigning run.ID.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun retrieves a single run, including its trade log.
	GetRun(ctx context.Context, id int64) (*Run, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
