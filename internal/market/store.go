// Package market - store.go implements the Market Store: an embedded,
// columnar, file-backed cache of OHLCV history. It is the ONLY source of
// bars for strategies and the backtest simulator — nothing downstream of
// the Store talks to the vendor API directly.
package market

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/nitinkhare/swingdss/internal/bar"
)

const createBarsTable = `
CREATE TABLE IF NOT EXISTS bars (
	symbol    VARCHAR NOT NULL,
	ts        TIMESTAMP NOT NULL,
	open      DOUBLE NOT NULL,
	high      DOUBLE NOT NULL,
	low       DOUBLE NOT NULL,
	close     DOUBLE NOT NULL,
	volume    BIGINT NOT NULL,
	PRIMARY KEY (symbol, ts)
)`

// createBarsTimestampIndex backs calendar-wide queries (e.g. "every bar
// dated today across symbols") that the (symbol, ts) primary key alone
// can't serve without a full scan.
const createBarsTimestampIndex = `
CREATE INDEX IF NOT EXISTS idx_bars_ts ON bars (ts)`

// maxRetries and retryDelay govern contention handling: DuckDB's single
// writer connection can momentarily collide with an in-flight ingestion
// transaction from another process sharing the same file.
const (
	maxRetries = 3
	retryDelay = 1 * time.Second
)

// storeRegistry ensures one *Store per backing file path, matching
// DuckDB's single-writer-per-file constraint.
var (
	storeRegistry   = map[string]*Store{}
	storeRegistryMu sync.Mutex
)

// Store is the DuckDB-backed Market Store.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open returns the Store singleton for the given file path, creating and
// migrating it on first use.
func Open(path string) (*Store, error) {
	storeRegistryMu.Lock()
	defer storeRegistryMu.Unlock()

	if s, ok := storeRegistry[path]; ok {
		return s, nil
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("market store: open %s: %w", path, err)
	}
	if _, err := db.Exec(createBarsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("market store: migrate: %w", err)
	}
	if _, err := db.Exec(createBarsTimestampIndex); err != nil {
		db.Close()
		return nil, fmt.Errorf("market store: migrate: %w", err)
	}

	s := &Store{db: db, path: path}
	storeRegistry[path] = s
	return s, nil
}

// Close closes the underlying database handle and removes the store from
// the singleton registry.
func (s *Store) Close() error {
	storeRegistryMu.Lock()
	defer storeRegistryMu.Unlock()
	delete(storeRegistry, s.path)
	return s.db.Close()
}

// Upsert replaces all bars for a symbol within the incoming batch's date
// range with the incoming batch — a delete-then-insert transaction, so a
// vendor correction (e.g. a restated close) always wins over the prior
// cached value.
func (s *Store) Upsert(ctx context.Context, symbol string, bars []bar.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	series, err := bar.NewSeries(symbol, bars)
	if err != nil {
		return fmt.Errorf("market store: upsert %s: %w", symbol, err)
	}

	start := series.Bars[0].Timestamp
	end := series.Bars[len(series.Bars)-1].Timestamp

	return s.withRetry(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM bars WHERE symbol = ? AND ts >= ? AND ts <= ?`,
			symbol, start, end,
		); err != nil {
			return fmt.Errorf("delete existing range: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO bars (symbol, ts, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, b := range series.Bars {
			if _, err := stmt.ExecContext(ctx, b.Symbol, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
				return fmt.Errorf("insert bar %s: %w", b.Timestamp, err)
			}
		}

		return tx.Commit()
	})
}

// Get retrieves a symbol's stored history over [start, end]. A zero start
// or end means unbounded on that side.
func (s *Store) Get(ctx context.Context, symbol string, start, end time.Time) (bar.Series, error) {
	query := `SELECT ts, open, high, low, close, volume FROM bars WHERE symbol = ?`
	args := []any{symbol}

	if !start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, start)
	}
	if !end.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, end)
	}
	query += ` ORDER BY ts ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return bar.Series{}, fmt.Errorf("market store: get %s: %w", symbol, err)
	}
	defer rows.Close()

	bars, err := scanBars(rows, symbol)
	if err != nil {
		return bar.Series{}, err
	}
	return bar.NewSeries(symbol, bars)
}

// GetUntil returns a symbol's history as-of a given date (inclusive) — the
// batch form of Get used by the backtest/portfolio loop to build each
// day's as-of view without a separate query per symbol.
func (s *Store) GetUntil(ctx context.Context, symbols []string, asOf time.Time) (map[string]bar.Series, error) {
	result := make(map[string]bar.Series, len(symbols))
	for _, sym := range symbols {
		series, err := s.Get(ctx, sym, time.Time{}, asOf)
		if err != nil {
			return nil, err
		}
		if series.Len() > 0 {
			result[sym] = series
		}
	}
	return result, nil
}

// GetForDate returns the single bar on a given date, if any.
func (s *Store) GetForDate(ctx context.Context, symbol string, date time.Time) (bar.Bar, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT ts, open, high, low, close, volume FROM bars WHERE symbol = ? AND ts = ?`,
		symbol, date,
	)
	var b bar.Bar
	b.Symbol = symbol
	if err := row.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
		if err == sql.ErrNoRows {
			return bar.Bar{}, false, nil
		}
		return bar.Bar{}, false, fmt.Errorf("market store: get for date %s %s: %w", symbol, date, err)
	}
	return b, true, nil
}

// LastTimestamp returns the most recent bar timestamp stored for a
// symbol, used by the ingestion orchestrator to compute its watermark.
func (s *Store) LastTimestamp(ctx context.Context, symbol string) (time.Time, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT MAX(ts) FROM bars WHERE symbol = ?`, symbol)
	var ts sql.NullTime
	if err := row.Scan(&ts); err != nil {
		return time.Time{}, false, fmt.Errorf("market store: last timestamp %s: %w", symbol, err)
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return ts.Time, true, nil
}

// AllSymbols returns every distinct symbol with stored history.
func (s *Store) AllSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("market store: all symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("market store: scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func scanBars(rows *sql.Rows, symbol string) ([]bar.Bar, error) {
	var bars []bar.Bar
	for rows.Next() {
		var b bar.Bar
		b.Symbol = symbol
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("market store: scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// withRetry runs a write operation up to maxRetries times in total,
// sleeping retryDelay between attempts, to ride out transient contention
// from a concurrent writer against the same file.
func (s *Store) withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return err
}
