// Package store provides persistence for trade, alert, and agent event
// records produced by the supervision core.
package store

import (
	"context"
	"time"

	"master-agent/internal/models"
)

// Journal defines the interface for the audit trail. Implementations must be
// safe for concurrent use.
type Journal interface {
	// Trades
	LogTrade(ctx context.Context, trade *models.TradeRecord) error
	GetTrades(ctx context.Context, filter TradeFilter) ([]models.TradeRecord, error)

	// Alerts
	LogAlert(ctx context.Context, alert *models.Alert) error
	GetAlerts(ctx context.Context, since time.Time) ([]models.Alert, error)

	// Agent lifecycle
	LogAgentEvent(ctx context.Context, event *models.AgentEvent) error

	Close() error
}

// TradeFilter narrows GetTrades results. Zero values mean no constraint.
type TradeFilter struct {
	Symbol string
	From   time.Time
	To     time.Time
	Limit  int
}

// NopJournal discards everything. Used when persistence is disabled.
type NopJournal struct{}

func (NopJournal) LogTrade(context.Context, *models.TradeRecord) error { return nil }
func (NopJournal) GetTrades(context.Context, TradeFilter) ([]models.TradeRecord, error) {
	return nil, nil
}
func (NopJournal) LogAlert(context.Context, *models.Alert) error { return nil }
func (NopJournal) GetAlerts(context.Context, time.Time) ([]models.Alert, error) {
	return nil, nil
}
func (NopJournal) LogAgentEvent(context.Context, *models.AgentEvent) error { return nil }
func (NopJournal) Close() error                                            { return nil }
