// Package models provides domain models shared across the supervision core.
package models

import "time"

// Direction represents the side of a position.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// PositionStatus represents the lifecycle state of a position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// Position represents a single open or closed trading position.
// Size is always positive; Direction carries the sign. A zero StopLoss or
// TakeProfit means the level is not set.
type Position struct {
	Symbol     string         `json:"symbol"`
	Size       float64        `json:"size"`
	EntryPrice float64        `json:"entry_price"`
	Direction  Direction      `json:"direction"`
	StopLoss   float64        `json:"stop_loss,omitempty"`
	TakeProfit float64        `json:"take_profit,omitempty"`
	EntryTime  time.Time      `json:"entry_time"`
	PnL        float64        `json:"pnl"`
	Status     PositionStatus `json:"status"`
}

// UpdatePnL recomputes the position's P&L against the given market price.
func (p *Position) UpdatePnL(currentPrice float64) {
	multiplier := 1.0
	if p.Direction == Short {
		multiplier = -1.0
	}
	p.PnL = (currentPrice - p.EntryPrice) * p.Size * multiplier
}

// Notional returns the capital committed at entry.
func (p *Position) Notional() float64 {
	return p.Size * p.EntryPrice
}

// CloseReason explains why a position was closed.
type CloseReason string

const (
	CloseManual     CloseReason = "manual"
	CloseStopLoss   CloseReason = "stop_loss"
	CloseTakeProfit CloseReason = "take_profit"
	CloseReplaced   CloseReason = "replaced"
)

// TradeRecord is the journal entry written when a position is closed.
type TradeRecord struct {
	ID         string      `json:"id"`
	Symbol     string      `json:"symbol"`
	Direction  Direction   `json:"direction"`
	Size       float64     `json:"size"`
	EntryPrice float64     `json:"entry_price"`
	ExitPrice  float64     `json:"exit_price"`
	PnL        float64     `json:"pnl"`
	EntryTime  time.Time   `json:"entry_time"`
	ExitTime   time.Time   `json:"exit_time"`
	Reason     CloseReason `json:"reason"`
}

// AgentEvent is the journal entry for an agent lifecycle transition.
type AgentEvent struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Kind      string    `json:"kind"`
	Event     string    `json:"event"` // created, recovered, replaced, error
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
