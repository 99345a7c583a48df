// Package ledger tracks open trading positions and enforces exposure and
// count limits. All mutation goes through Ledger methods under a single
// mutex, which keeps the exposure invariant (total exposure equals the sum of
// entry notionals over open positions) valid under concurrent callers.
package ledger

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"master-agent/internal/logging"
	"master-agent/internal/models"
	"master-agent/internal/store"
)

// ReopenPolicy decides what Open does when a position for the symbol is
// already open. The reference behavior silently overwrote the prior position
// and leaked its exposure; neither policy reproduces that.
type ReopenPolicy string

const (
	// ReopenReject refuses the second open and leaves state untouched.
	ReopenReject ReopenPolicy = "reject"
	// ReopenReplace closes the prior position at its entry price, then
	// opens the new one under the usual limit checks.
	ReopenReplace ReopenPolicy = "replace"
)

const (
	// DefaultMaxPositions is the open-position count cap.
	DefaultMaxPositions = 10
	// DefaultMaxExposure is the total entry-notional cap in currency units.
	DefaultMaxExposure = 100_000.0

	exposureTolerance = 1e-6
)

// Ledger is the in-memory position book.
type Ledger struct {
	log zerolog.Logger

	mu            sync.Mutex
	positions     map[string]*models.Position
	totalExposure float64
	realizedPnL   float64

	maxPositions int
	maxExposure  float64
	reopen       ReopenPolicy

	journal store.Journal
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLimits overrides the position count and exposure caps.
func WithLimits(maxPositions int, maxExposure float64) Option {
	return func(l *Ledger) {
		l.maxPositions = maxPositions
		l.maxExposure = maxExposure
	}
}

// WithReopenPolicy sets the same-symbol re-open policy.
func WithReopenPolicy(policy ReopenPolicy) Option {
	return func(l *Ledger) {
		l.reopen = policy
	}
}

// WithJournal attaches a journal that receives a TradeRecord for every
// closed position. Journal failures are logged and never affect ledger state.
func WithJournal(journal store.Journal) Option {
	return func(l *Ledger) {
		l.journal = journal
	}
}

// New creates a Ledger with the default limits and reject re-open policy.
func New(log zerolog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		log:          log,
		positions:    make(map[string]*models.Position),
		maxPositions: DefaultMaxPositions,
		maxExposure:  DefaultMaxExposure,
		reopen:       ReopenReject,
		journal:      store.NopJournal{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open opens a new position if it fits within the count and exposure caps.
// Returns false without mutating state when a limit would be breached, or
// when the symbol already has an open position under the reject policy.
func (l *Ledger) Open(symbol string, size, entryPrice float64, direction models.Direction, stopLoss, takeProfit float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, exists := l.positions[symbol]
	if exists && l.reopen == ReopenReject {
		l.log.Warn().Str("symbol", symbol).Msg("Position already open for symbol")
		return false
	}
	if !exists && len(l.positions) >= l.maxPositions {
		l.log.Warn().
			Int("open_positions", len(l.positions)).
			Int("max_positions", l.maxPositions).
			Msg("Maximum number of positions reached")
		return false
	}

	notional := size * entryPrice
	projected := l.totalExposure + notional
	if exists {
		projected -= existing.Notional()
	}
	if projected > l.maxExposure {
		l.log.Warn().
			Float64("exposure", l.totalExposure).
			Float64("notional", notional).
			Float64("max_exposure", l.maxExposure).
			Msg("Maximum exposure limit would be exceeded")
		return false
	}

	if exists {
		// Replace policy: retire the old position at its entry price so
		// its committed capital is released before the new entry books.
		l.closeLocked(existing, existing.EntryPrice, models.CloseReplaced)
	}

	position := &models.Position{
		Symbol:     symbol,
		Size:       size,
		EntryPrice: entryPrice,
		Direction:  direction,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		EntryTime:  time.Now(),
		Status:     models.PositionOpen,
	}
	l.positions[symbol] = position
	l.totalExposure += notional
	l.auditExposureLocked()

	logging.LogPosition(l.log, "open", symbol, string(direction), size, entryPrice)
	return true
}

// Close closes the open position for symbol at the given exit price.
// Returns false when no open position exists for the symbol.
func (l *Ledger) Close(symbol string, exitPrice float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	position, ok := l.positions[symbol]
	if !ok {
		l.log.Warn().Str("symbol", symbol).Msg("No position found for symbol")
		return false
	}

	l.closeLocked(position, exitPrice, models.CloseManual)
	return true
}

// closeLocked retires a position: final P&L at exitPrice, exposure released
// at the entry notional (committed capital, not mark-to-market), record
// removed from the open set. Caller holds l.mu.
func (l *Ledger) closeLocked(position *models.Position, exitPrice float64, reason models.CloseReason) {
	position.UpdatePnL(exitPrice)
	l.totalExposure -= position.Notional()
	l.realizedPnL += position.PnL
	position.Status = models.PositionClosed
	delete(l.positions, position.Symbol)
	l.auditExposureLocked()

	symLog := logging.WithSymbol(l.log, position.Symbol)
	symLog.Info().
		Float64("exit_price", exitPrice).
		Float64("pnl", position.PnL).
		Str("reason", string(reason)).
		Msg("Closed position")

	if err := l.journal.LogTrade(context.Background(), &models.TradeRecord{
		Symbol:     position.Symbol,
		Direction:  position.Direction,
		Size:       position.Size,
		EntryPrice: position.EntryPrice,
		ExitPrice:  exitPrice,
		PnL:        position.PnL,
		EntryTime:  position.EntryTime,
		ExitTime:   time.Now(),
		Reason:     reason,
	}); err != nil {
		l.log.Error().Err(err).Str("symbol", position.Symbol).Msg("Failed to journal trade")
	}
}

// UpdateAll recomputes P&L for every open position with a price in the map,
// then evaluates exit conditions: stop loss first, take profit second, at
// most one close per position per call. Positions without configured levels
// are never auto-closed.
func (l *Ledger) UpdateAll(prices map[string]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	type exit struct {
		position *models.Position
		price    float64
		reason   models.CloseReason
	}
	var exits []exit

	for symbol, position := range l.positions {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		position.UpdatePnL(price)

		switch {
		case position.StopLoss != 0 && position.Direction == models.Long && price <= position.StopLoss:
			exits = append(exits, exit{position, price, models.CloseStopLoss})
		case position.StopLoss != 0 && position.Direction == models.Short && price >= position.StopLoss:
			exits = append(exits, exit{position, price, models.CloseStopLoss})
		case position.TakeProfit != 0 && position.Direction == models.Long && price >= position.TakeProfit:
			exits = append(exits, exit{position, price, models.CloseTakeProfit})
		case position.TakeProfit != 0 && position.Direction == models.Short && price <= position.TakeProfit:
			exits = append(exits, exit{position, price, models.CloseTakeProfit})
		}
	}

	for _, e := range exits {
		l.closeLocked(e.position, e.price, e.reason)
	}
}

// Positions returns a snapshot of all open positions.
func (l *Ledger) Positions() []models.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := make([]models.Position, 0, len(l.positions))
	for _, position := range l.positions {
		snapshot = append(snapshot, *position)
	}
	return snapshot
}

// Exposure returns the current total entry-notional exposure.
func (l *Ledger) Exposure() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalExposure
}

// Count returns the number of open positions.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.positions)
}

// RealizedPnL returns the accumulated P&L of closed positions.
func (l *Ledger) RealizedPnL() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.realizedPnL
}

// UnrealizedPnL returns the summed P&L of open positions as of their last
// price update.
func (l *Ledger) UnrealizedPnL() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total float64
	for _, position := range l.positions {
		total += position.PnL
	}
	return total
}

// auditExposureLocked recomputes total exposure from the open set and snaps
// the running total to it if float error has accumulated. Caller holds l.mu.
func (l *Ledger) auditExposureLocked() {
	var sum float64
	for _, position := range l.positions {
		sum += position.Notional()
	}
	if math.Abs(sum-l.totalExposure) > exposureTolerance {
		l.log.Error().
			Float64("tracked", l.totalExposure).
			Float64("recomputed", sum).
			Msg("Exposure drift detected, correcting")
		l.totalExposure = sum
	}
}
