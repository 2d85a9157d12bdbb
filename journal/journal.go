package journal

import (
	"time"

	"github.com/rustyeddy/backtester/market"
)

// TradeRecord is one closed trade as persisted by a journal.
type TradeRecord struct {
	TradeID    string
	Instrument string
	Side       market.Side
	Size       float64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	Pips       float64
	RealizedPL float64
	Reason     string
	Comment    string
}

// EquitySnapshot is the account state after one bar's equity mark.
type EquitySnapshot struct {
	Time     time.Time
	Balance  float64
	Equity   float64
	Drawdown float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything. It is the default journal so callers never have
// to nil-check.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }
