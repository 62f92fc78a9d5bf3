package fetch

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/subhashjprasad/strat-tester/internal/domain"
	"github.com/subhashjprasad/strat-tester/internal/util"
)

type fakeBarClient struct {
	bars     []marketdata.Bar
	err      error
	failures int
	calls    int
}

func (c *fakeBarClient) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, errors.New("transient")
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.bars, nil
}

type fakeBarStore struct {
	written []domain.Bar
	err     error
}

func (s *fakeBarStore) WriteBars(ctx context.Context, bars []domain.Bar) error {
	if s.err != nil {
		return s.err
	}
	s.written = append(s.written, bars...)
	return nil
}

func (s *fakeBarStore) ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	return nil, nil
}

func (s *fakeBarStore) ListSymbols(ctx context.Context) ([]string, error) {
	return nil, nil
}

func newTestFetcher(client barClient, bs *fakeBarStore) *AlpacaFetcher {
	return &AlpacaFetcher{
		client:  client,
		store:   bs,
		limiter: util.NewRateLimiter(6000),
		log:     slog.Default(),
	}
}

func TestFetchConvertsAndStoresBars(t *testing.T) {
	ts := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	client := &fakeBarClient{bars: []marketdata.Bar{
		{Timestamp: ts, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1200, TradeCount: 34, VWAP: 100.2},
		{Timestamp: ts.Add(time.Hour), Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 900, TradeCount: 21, VWAP: 101.1},
	}}
	bs := &fakeBarStore{}
	f := newTestFetcher(client, bs)

	n, err := f.Fetch(context.Background(), "aapl", ts, ts.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d bars, want 2", n)
	}
	if len(bs.written) != 2 {
		t.Fatalf("store got %d bars, want 2", len(bs.written))
	}
	got := bs.written[0]
	if got.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", got.Symbol)
	}
	if got.Close != 100.5 || got.Volume != 1200 || got.TradeCount != 34 {
		t.Errorf("bar fields not converted: %+v", got)
	}
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	ts := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	client := &fakeBarClient{
		bars:     []marketdata.Bar{{Timestamp: ts, Close: 100, Volume: 10}},
		failures: 2,
	}
	bs := &fakeBarStore{}
	f := newTestFetcher(client, bs)

	n, err := f.Fetch(context.Background(), "SPY", ts, ts.Add(time.Hour))
	if err != nil {
		t.Fatalf("Fetch after retries: %v", err)
	}
	if n != 1 {
		t.Fatalf("got %d bars, want 1", n)
	}
	if client.calls != 3 {
		t.Errorf("client called %d times, want 3", client.calls)
	}
}

func TestFetchEmptyResultIsNotAnError(t *testing.T) {
	client := &fakeBarClient{}
	bs := &fakeBarStore{}
	f := newTestFetcher(client, bs)

	n, err := f.Fetch(context.Background(), "SPY", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n != 0 || len(bs.written) != 0 {
		t.Errorf("expected no bars written, got n=%d written=%d", n, len(bs.written))
	}
}

func TestFetchStoreErrorPropagates(t *testing.T) {
	ts := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	client := &fakeBarClient{bars: []marketdata.Bar{{Timestamp: ts, Close: 100}}}
	bs := &fakeBarStore{err: errors.New("disk full")}
	f := newTestFetcher(client, bs)

	if _, err := f.Fetch(context.Background(), "SPY", ts, ts.Add(time.Hour)); err == nil {
		t.Fatal("expected error from store, got nil")
	}
}
