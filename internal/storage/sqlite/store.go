package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"eventRelay/internal/model"
)

// Store keeps decoded events, decode failures and fetch cursors in SQLite.
type Store struct {
	db *sql.DB
}

// Open initializes a SQLite database and runs minimal schema setup.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time; runner streams share the store.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// pragmas are applied by the driver to every pooled connection.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
}

func dsn(path string) string {
	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, "_pragma="+url.QueryEscape(p))
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

func migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	schema := `
CREATE TABLE IF NOT EXISTS cursors (
  name        TEXT PRIMARY KEY,
  block       INTEGER NOT NULL,
  updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS events (
  id            INTEGER PRIMARY KEY AUTOINCREMENT,
  network       TEXT NOT NULL,
  contract      TEXT NOT NULL,
  event_name    TEXT NOT NULL,
  topic_id      TEXT NOT NULL,
  address       TEXT NOT NULL,
  block_number  INTEGER,
  block_hash    TEXT,
  tx_hash       TEXT,
  log_index     INTEGER,
  removed       INTEGER,
  payload_json  TEXT NOT NULL,
  created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(network, topic_id, tx_hash, log_index)
);

CREATE TABLE IF NOT EXISTS decode_errors (
  id            INTEGER PRIMARY KEY AUTOINCREMENT,
  network       TEXT NOT NULL,
  address       TEXT NOT NULL,
  topic_id      TEXT NOT NULL,
  block_number  INTEGER,
  tx_hash       TEXT,
  log_index     INTEGER,
  data          TEXT NOT NULL,
  error         TEXT NOT NULL,
  created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SaveCursor records the last indexed block for a name.
func (s *Store) SaveCursor(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return errors.New("cursor name required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cursors (name, block, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(name) DO UPDATE SET
  block=excluded.block,
  updated_at=CURRENT_TIMESTAMP;
`, name, int64(block))
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// LoadCursor retrieves the last indexed block for a name.
func (s *Store) LoadCursor(ctx context.Context, name string) (uint64, bool, error) {
	var block int64
	err := s.db.QueryRowContext(ctx, `SELECT block FROM cursors WHERE name = ?;`, name).Scan(&block)
	switch {
	case err == nil:
		return uint64(block), true, nil
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("load cursor: %w", err)
	}
}

// PutEvents stores a batch in one transaction; logs already stored are ignored.
func (s *Store) PutEvents(ctx context.Context, events []model.EventRecord) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO events (network, contract, event_name, topic_id, address, block_number, block_hash, tx_hash, log_index, removed, payload_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(network, topic_id, tx_hash, log_index) DO NOTHING;
`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		payload, err := json.Marshal(ev.Decoded)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal %s payload: %w", ev.EventName, err)
		}
		var blockHash, txHash any
		if ev.BlockHash != nil {
			blockHash = ev.BlockHash.Hex()
		}
		if ev.TransactionHash != nil {
			txHash = ev.TransactionHash.Hex()
		}
		if _, err := stmt.ExecContext(ctx,
			ev.Network, ev.Contract, ev.EventName, ev.TopicID, ev.Address.Hex(),
			nullUint(ev.BlockNumber), blockHash, txHash, nullUint(ev.LogIndex), nullBool(ev.Removed),
			string(payload),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// PutDecodeError records a log that failed to decode.
func (s *Store) PutDecodeError(rec model.DecodeError) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var txHash any
	if rec.TxHash != "" {
		txHash = rec.TxHash
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO decode_errors (network, address, topic_id, block_number, tx_hash, log_index, data, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`, rec.Network, rec.Address, rec.TopicID, nullUint(rec.BlockNumber), txHash, nullUint(rec.LogIndex), rec.Data, rec.Error)
	if err != nil {
		return fmt.Errorf("insert decode error: %w", err)
	}
	return nil
}

// CountEvents returns the number of stored events for an event name.
func (s *Store) CountEvents(ctx context.Context, eventName string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE event_name = ?;`, eventName).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func nullUint(v *uint64) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullBool(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}
