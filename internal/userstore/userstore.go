// Package userstore implements the User Store: a small embedded SQLite
// database holding account settings, open positions, the trade journal,
// alert de-duplication keys, and drawdown-protection state. It is
// deliberately separate from the Market Store — OHLCV history is large,
// columnar, and vendor-sourced; this is small, relational, and
// user/account-owned.
package userstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		symbol        TEXT PRIMARY KEY,
		strategy      TEXT NOT NULL,
		entry_price   REAL NOT NULL,
		stop_loss     REAL NOT NULL,
		target_price  REAL NOT NULL,
		quantity      INTEGER NOT NULL,
		entry_date    TIMESTAMP NOT NULL,
		trailing_lock REAL NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS trade_journal (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol        TEXT NOT NULL,
		strategy      TEXT NOT NULL,
		regime        TEXT NOT NULL,
		entry_price   REAL NOT NULL,
		exit_price    REAL NOT NULL,
		quantity      INTEGER NOT NULL,
		entry_date    TIMESTAMP NOT NULL,
		exit_date     TIMESTAMP NOT NULL,
		exit_reason   TEXT NOT NULL,
		pnl_eur       REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS alert_dedup (
		symbol     TEXT NOT NULL,
		level_type TEXT NOT NULL,
		sent_at    TIMESTAMP NOT NULL,
		PRIMARY KEY (symbol, level_type)
	)`,
}

// Store is the SQLite-backed User Store.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the User Store at the given file path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("userstore: open %s: %w", path, err)
	}

	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("userstore: migrate: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// ────────────────────────────────────────────────────────────────────
// Settings
// ────────────────────────────────────────────────────────────────────

// Recognized setting keys.
const (
	KeyTotalCapitalEUR     = "total_capital_eur"
	KeyStockAlloc          = "stock_alloc"
	KeyMaxStockPositions   = "max_stock_positions"
	KeyRiskPerTradeEUR     = "risk_per_trade_eur"
	KeyRiskPerTradePercent = "risk_per_trade_percent"
	KeySizingMethod        = "sizing_method"
	KeyFXRateUSDEUR        = "fx_rate_usd_eur"
	KeyFXRateTimestamp     = "fx_rate_timestamp"
)

// SetSetting upserts a single key/value pair.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("userstore: set setting %s: %w", key, err)
	}
	return nil
}

// GetSetting returns a raw string setting, or ok=false if unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("userstore: get setting %s: %w", key, err)
	}
	return value, true, nil
}

// GetSettingFloat decodes a setting as float64, returning defaultVal if unset.
func (s *Store) GetSettingFloat(ctx context.Context, key string, defaultVal float64) (float64, error) {
	raw, ok, err := s.GetSetting(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return defaultVal, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("userstore: decode setting %s as float: %w", key, err)
	}
	return v, nil
}

// GetSettingInt decodes a setting as int, returning defaultVal if unset.
func (s *Store) GetSettingInt(ctx context.Context, key string, defaultVal int) (int, error) {
	raw, ok, err := s.GetSetting(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("userstore: decode setting %s as int: %w", key, err)
	}
	return v, nil
}

// ────────────────────────────────────────────────────────────────────
// Positions
// ────────────────────────────────────────────────────────────────────

// Position is a currently open position, persisted across runs.
type Position struct {
	Symbol       string
	Strategy     string
	EntryPrice   float64
	StopLoss     float64
	TargetPrice  float64
	Quantity     int
	EntryDate    time.Time
	TrailingLock float64 // the highest stop ratcheted to so far, 0 if untouched
}

// SavePosition upserts an open position.
func (s *Store) SavePosition(ctx context.Context, p Position) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO positions (symbol, strategy, entry_price, stop_loss, target_price, quantity, entry_date, trailing_lock)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET
		   strategy = excluded.strategy, entry_price = excluded.entry_price,
		   stop_loss = excluded.stop_loss, target_price = excluded.target_price,
		   quantity = excluded.quantity, entry_date = excluded.entry_date,
		   trailing_lock = excluded.trailing_lock`,
		p.Symbol, p.Strategy, p.EntryPrice, p.StopLoss, p.TargetPrice, p.Quantity, p.EntryDate, p.TrailingLock)
	if err != nil {
		return fmt.Errorf("userstore: save position %s: %w", p.Symbol, err)
	}
	return nil
}

// OpenPositions returns all currently open positions.
func (s *Store) OpenPositions(ctx context.Context) ([]Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, strategy, entry_price, stop_loss, target_price, quantity, entry_date, trailing_lock FROM positions`)
	if err != nil {
		return nil, fmt.Errorf("userstore: open positions: %w", err)
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.Symbol, &p.Strategy, &p.EntryPrice, &p.StopLoss, &p.TargetPrice, &p.Quantity, &p.EntryDate, &p.TrailingLock); err != nil {
			return nil, fmt.Errorf("userstore: scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ClosePosition removes a position from the open set, e.g. after a stop
// or target hit. The caller is responsible for writing the trade journal
// entry separately.
func (s *Store) ClosePosition(ctx context.Context, symbol string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE symbol = ?`, symbol)
	if err != nil {
		return fmt.Errorf("userstore: close position %s: %w", symbol, err)
	}
	return nil
}

// ────────────────────────────────────────────────────────────────────
// Trade journal
// ────────────────────────────────────────────────────────────────────

// TradeJournalEntry records one completed round-trip trade.
type TradeJournalEntry struct {
	Symbol     string
	Strategy   string
	Regime     string
	EntryPrice float64
	ExitPrice  float64
	Quantity   int
	EntryDate  time.Time
	ExitDate   time.Time
	ExitReason string
	PnLEUR     float64
}

// RecordTrade appends a completed trade to the journal.
func (s *Store) RecordTrade(ctx context.Context, t TradeJournalEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trade_journal (symbol, strategy, regime, entry_price, exit_price, quantity, entry_date, exit_date, exit_reason, pnl_eur)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Symbol, t.Strategy, t.Regime, t.EntryPrice, t.ExitPrice, t.Quantity, t.EntryDate, t.ExitDate, t.ExitReason, t.PnLEUR)
	if err != nil {
		return fmt.Errorf("userstore: record trade %s: %w", t.Symbol, err)
	}
	return nil
}

// Trades returns all journaled trades, ordered by exit date.
func (s *Store) Trades(ctx context.Context) ([]TradeJournalEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, strategy, regime, entry_price, exit_price, quantity, entry_date, exit_date, exit_reason, pnl_eur
		 FROM trade_journal ORDER BY exit_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("userstore: trades: %w", err)
	}
	defer rows.Close()

	var out []TradeJournalEntry
	for rows.Next() {
		var t TradeJournalEntry
		if err := rows.Scan(&t.Symbol, &t.Strategy, &t.Regime, &t.EntryPrice, &t.ExitPrice, &t.Quantity, &t.EntryDate, &t.ExitDate, &t.ExitReason, &t.PnLEUR); err != nil {
			return nil, fmt.Errorf("userstore: scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ────────────────────────────────────────────────────────────────────
// Alert de-duplication
// ────────────────────────────────────────────────────────────────────

// AlreadySent reports whether an alert of the given (symbol, levelType)
// has already been sent, so the monitor loop never re-notifies for the
// same level crossing.
func (s *Store) AlreadySent(ctx context.Context, symbol, levelType string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM alert_dedup WHERE symbol = ? AND level_type = ?`, symbol, levelType)
	var dummy int
	if err := row.Scan(&dummy); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("userstore: already sent %s/%s: %w", symbol, levelType, err)
	}
	return true, nil
}

// MarkSent records that an alert for (symbol, levelType) has been sent.
func (s *Store) MarkSent(ctx context.Context, symbol, levelType string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_dedup (symbol, level_type, sent_at) VALUES (?, ?, ?)
		 ON CONFLICT(symbol, level_type) DO UPDATE SET sent_at = excluded.sent_at`,
		symbol, levelType, at)
	if err != nil {
		return fmt.Errorf("userstore: mark sent %s/%s: %w", symbol, levelType, err)
	}
	return nil
}
