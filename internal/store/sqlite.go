package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"master-agent/internal/models"
)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens (creating if needed) the journal database at dbPath.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	journal := &SQLiteJournal{db: db}
	if err := journal.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return journal, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteJournal) initSchema() error {
	schema := `
	-- Trades table for closed positions
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		size REAL NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		pnl REAL NOT NULL,
		entry_time DATETIME NOT NULL,
		exit_time DATETIME NOT NULL,
		reason TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades(exit_time);

	-- Alerts fired by the monitoring thresholds
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		metric TEXT NOT NULL,
		message TEXT NOT NULL,
		value REAL NOT NULL,
		threshold REAL NOT NULL,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp);

	-- Agent lifecycle transitions
	CREATE TABLE IF NOT EXISTS agent_events (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		event TEXT NOT NULL,
		detail TEXT,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_agent_events_agent ON agent_events(agent_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}

// LogTrade records a closed position. Assigns an ID if the record has none.
func (s *SQLiteJournal) LogTrade(ctx context.Context, trade *models.TradeRecord) error {
	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, symbol, direction, size, entry_price, exit_price, pnl, entry_time, exit_time, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, trade.ID, trade.Symbol, string(trade.Direction), trade.Size, trade.EntryPrice, trade.ExitPrice, trade.PnL, trade.EntryTime, trade.ExitTime, string(trade.Reason))
	if err != nil {
		return fmt.Errorf("failed to log trade: %w", err)
	}
	return nil
}

// GetTrades retrieves trades matching the filter, newest first.
func (s *SQLiteJournal) GetTrades(ctx context.Context, filter TradeFilter) ([]models.TradeRecord, error) {
	query := "SELECT id, symbol, direction, size, entry_price, exit_price, pnl, entry_time, exit_time, reason FROM trades"
	var conditions []string
	var args []interface{}

	if filter.Symbol != "" {
		conditions = append(conditions, "symbol = ?")
		args = append(args, filter.Symbol)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "exit_time >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "exit_time <= ?")
		args = append(args, filter.To)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY exit_time DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.TradeRecord
	for rows.Next() {
		var t models.TradeRecord
		var direction, reason string
		if err := rows.Scan(&t.ID, &t.Symbol, &direction, &t.Size, &t.EntryPrice, &t.ExitPrice, &t.PnL, &t.EntryTime, &t.ExitTime, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Direction = models.Direction(direction)
		t.Reason = models.CloseReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// LogAlert records a threshold alert.
func (s *SQLiteJournal) LogAlert(ctx context.Context, alert *models.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, metric, message, value, threshold, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, alert.ID, alert.Metric, alert.Message, alert.Value, alert.Threshold, alert.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to log alert: %w", err)
	}
	return nil
}

// GetAlerts retrieves alerts fired at or after since, newest first.
func (s *SQLiteJournal) GetAlerts(ctx context.Context, since time.Time) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, metric, message, value, threshold, timestamp
		FROM alerts WHERE timestamp >= ? ORDER BY timestamp DESC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.Metric, &a.Message, &a.Value, &a.Threshold, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// LogAgentEvent records an agent lifecycle transition.
func (s *SQLiteJournal) LogAgentEvent(ctx context.Context, event *models.AgentEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_events (id, agent_id, kind, event, detail, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.ID, event.AgentID, event.Kind, event.Event, event.Detail, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to log agent event: %w", err)
	}
	return nil
}
