// Package domain defines the shared value types passed between the loader,
// strategies, and the backtest engine.
package domain

import "time"

// Bar is a single OHLCV price observation. Bars are immutable once loaded,
// and a bar series is always ordered ascending by timestamp; the loader
// guarantees this, downstream code assumes it.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// Signal is a per-bar trading decision. A signal series is index-aligned
// with its bar series and must have the same length.
type Signal int8

const (
	SignalSell Signal = -1
	SignalHold Signal = 0
	SignalBuy  Signal = 1
)

// String returns the lowercase name of the signal. Values outside the
// Buy/Sell/Hold domain stringify as "hold", matching how the simulator
// treats them.
func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	default:
		return "hold"
	}
}
