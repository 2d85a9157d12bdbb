package ledger

import (
	"time"

	"github.com/rustyeddy/backtester/market"
)

// Position is the single open position slot of a Ledger. At most one
// position is open at a time; opening a second one is rejected.
type Position struct {
	Side       market.Side
	Size       float64 // lots
	EntryPrice float64
	EntryTime  time.Time
	StopLoss   *float64
	TakeProfit *float64
	Comment    string
}

// ClosedTrade is the immutable record of a realized trade. Appended to the
// ledger's trade list on close and never mutated afterwards.
type ClosedTrade struct {
	ID         string
	Side       market.Side
	Size       float64
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	Pips       float64
	Profit     float64 // account currency
	Reason     string  // "StopLoss", "TakeProfit", "Strategy", "EndOfData"
	Comment    string
}

// Close reasons recorded on ClosedTrade.
const (
	ReasonStopLoss   = "StopLoss"
	ReasonTakeProfit = "TakeProfit"
	ReasonStrategy   = "Strategy"
	ReasonEndOfData  = "EndOfData"
)
