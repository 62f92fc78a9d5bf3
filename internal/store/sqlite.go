package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/subhashjprasad/strat-tester/internal/backtest"
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol          TEXT    NOT NULL,
	strategy        TEXT    NOT NULL,
	test_type       TEXT    NOT NULL,
	created_at      INTEGER NOT NULL,
	initial_capital REAL    NOT NULL,
	final_value     REAL    NOT NULL,
	total_return    REAL    NOT NULL,
	sharpe_ratio    REAL    NOT NULL,
	max_drawdown    REAL    NOT NULL,
	alpha           REAL    NOT NULL,
	total_trades    INTEGER NOT NULL,
	p_value         REAL,
	permutations    INTEGER
);

CREATE TABLE IF NOT EXISTS run_trades (
	run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq    INTEGER NOT NULL,
	ts     INTEGER NOT NULL,
	action TEXT    NOT NULL,
	price  REAL    NOT NULL,
	shares REAL    NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts the run and its trade log in one transaction and assigns
// run.ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (symbol, strategy, test_type, created_at, initial_capital,
			final_value, total_return, sharpe_ratio, max_drawdown, alpha,
			total_trades, p_value, permutations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Symbol, run.Strategy, run.TestType, run.CreatedAt.UnixMilli(),
		run.InitialCapital, run.FinalValue, run.TotalReturn, run.SharpeRatio,
		run.MaxDrawdown, run.Alpha, run.TotalTrades,
		nullableFloat(run.PValue), nullableInt(run.Permutations),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for i, t := range run.Trades {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_trades (run_id, seq, ts, action, price, shares)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, i, t.Timestamp.UnixMilli(), string(t.Action), t.Price, t.Shares,
		); err != nil {
			return fmt.Errorf("inserting trade %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	run.ID = id
	return nil
}

// GetRun retrieves a single run by ID, including its trade log. A missing
// run is reported as sql.ErrNoRows.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, strategy, test_type, created_at, initial_capital,
			final_value, total_return, sharpe_ratio, max_drawdown, alpha,
			total_trades, p_value, permutations
		FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, action, price, shares
		FROM run_trades WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ts     int64
			action string
			t      backtest.Trade
		)
		if err := rows.Scan(&ts, &action, &t.Price, &t.Shares); err != nil {
			return nil, err
		}
		t.Timestamp = time.UnixMilli(ts).UTC()
		t.Action = backtest.TradeAction(action)
		run.Trades = append(run.Trades, t)
	}
	return run, rows.Err()
}

// ListRuns returns the most recent runs, newest first, without trade logs.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, strategy, test_type, created_at, initial_capital,
			final_value, total_return, sharpe_ratio, max_drawdown, alpha,
			total_trades, p_value, permutations
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run       Run
		createdAt int64
		pValue    sql.NullFloat64
		perms     sql.NullInt64
	)
	err := s.Scan(&run.ID, &run.Symbol, &run.Strategy, &run.TestType, &createdAt,
		&run.InitialCapital, &run.FinalValue, &run.TotalReturn, &run.SharpeRatio,
		&run.MaxDrawdown, &run.Alpha, &run.TotalTrades, &pValue, &perms)
	if err != nil {
		return nil, err
	}
	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	if pValue.Valid {
		run.PValue = &pValue.Float64
	}
	if perms.Valid {
		p := int(perms.Int64)
		run.Permutations = &p
	}
	return &run, nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
