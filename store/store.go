// Package store persists trades, positions and operator settings to a
// local SQLite database via database/sql, following the StrategyStore
// pattern in store/strategy.go (a thin struct wrapping *sql.DB with one
// method per table). modernc.org/sqlite is a pure-Go driver, so the
// binary stays cgo-free like the rest of the kernel.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/indexoptions/kernel/domain"
)

// Store wraps the SQLite handle. All tables are created on Open;
// aggregation tables (daily_performance, strategy_performance) are
// created here but no Store method reads or writes them.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and
// ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			position_id TEXT PRIMARY KEY,
			strategy_id TEXT NOT NULL,
			instrument_key TEXT NOT NULL,
			symbol TEXT NOT NULL,
			direction TEXT NOT NULL,
			strike REAL NOT NULL,
			expiry TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			entry_price REAL NOT NULL,
			entry_time TEXT NOT NULL,
			current_price REAL NOT NULL,
			state TEXT NOT NULL,
			vix_entry REAL NOT NULL,
			regime_entry TEXT NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			position_id TEXT NOT NULL,
			strategy_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			direction TEXT NOT NULL,
			strike REAL NOT NULL,
			quantity INTEGER NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			exit_time TEXT NOT NULL,
			exit_reason TEXT NOT NULL,
			gross_pnl REAL NOT NULL,
			net_pnl REAL NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS option_chain_snapshots (
			underlying TEXT NOT NULL,
			captured_at TEXT NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS capital (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			current_capital REAL NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS daily_performance (
			trading_day TEXT PRIMARY KEY,
			net_pnl REAL NOT NULL,
			trade_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS strategy_performance (
			strategy_id TEXT NOT NULL,
			trading_day TEXT NOT NULL,
			net_pnl REAL NOT NULL,
			trade_count INTEGER NOT NULL,
			PRIMARY KEY (strategy_id, trading_day)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// SavePosition upserts a position row; called on open, on state change
// and on close.
func (s *Store) SavePosition(p domain.Position) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO positions (position_id, strategy_id, instrument_key, symbol, direction, strike, expiry, quantity, entry_price, entry_time, current_price, state, vix_entry, regime_entry, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(position_id) DO UPDATE SET
			quantity=excluded.quantity, current_price=excluded.current_price,
			state=excluded.state, payload=excluded.payload`,
		p.PositionID, p.StrategyID, string(p.InstrumentKey), string(p.Symbol), string(p.Direction),
		p.Strike, p.Expiry.Format(dateLayout), p.Quantity, p.EntryPrice, p.EntryTime.Format(timeLayout),
		p.CurrentPrice, string(p.State), p.VIXEntry, string(p.RegimeEntry), string(payload),
	)
	return err
}

// SaveTrade inserts a closed trade; trades are write-once, recorded on
// close only.
func (s *Store) SaveTrade(t domain.Trade) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO trades (position_id, strategy_id, symbol, direction, strike, quantity, entry_price, exit_price, exit_time, exit_reason, gross_pnl, net_pnl, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.PositionID, t.StrategyID, string(t.Symbol), string(t.Direction), t.Strike, t.Quantity,
		t.EntryPrice, t.ExitPrice, t.ExitTime.Format(timeLayout), string(t.ExitReason),
		t.GrossPnL, t.NetPnL, string(payload),
	)
	return err
}

// GetSetting reads one settings row, returning ("", false) if absent.
func (s *Store) GetSetting(key string) (string, bool) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if err != nil {
		return "", false
	}
	return v, true
}

// PutSetting upserts one settings row.
func (s *Store) PutSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

const dateLayout = "2006-01-02"
const timeLayout = "2006-01-02T15:04:05.000Z07:00"
