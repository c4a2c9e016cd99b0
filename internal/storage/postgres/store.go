package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventRelay/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS decoded_events (
	id           BIGSERIAL PRIMARY KEY,
	network      TEXT NOT NULL,
	contract     TEXT NOT NULL,
	event_name   TEXT NOT NULL,
	topic_id     TEXT NOT NULL,
	address      TEXT NOT NULL,
	block_number BIGINT,
	block_hash   TEXT,
	tx_hash      TEXT,
	tx_index     BIGINT,
	log_index    BIGINT,
	removed      BOOLEAN,
	decoded      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS decoded_events_log_key
	ON decoded_events (network, topic_id, tx_hash, log_index);

CREATE TABLE IF NOT EXISTS indexer_cursors (
	name       TEXT PRIMARY KEY,
	block      BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for decoded events and fetch cursors.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// PutEvents inserts decoded events, ignoring logs already stored.
func (s *Store) PutEvents(ctx context.Context, events []model.EventRecord) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		decoded, err := json.Marshal(ev.Decoded)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", ev.EventName, err)
		}
		batch.Queue(`
			INSERT INTO decoded_events (
				network, contract, event_name, topic_id, address,
				block_number, block_hash, tx_hash, tx_index, log_index, removed, decoded
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (network, topic_id, tx_hash, log_index) DO NOTHING
		`,
			ev.Network,
			ev.Contract,
			ev.EventName,
			ev.TopicID,
			ev.Address.Hex(),
			toInt8(ev.BlockNumber),
			hashText(ev.BlockHash),
			hashText(ev.TransactionHash),
			toInt8(ev.TransactionIndex),
			toInt8(ev.LogIndex),
			ev.Removed,
			decoded,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadCursor returns the last indexed block for a name.
func (s *Store) LoadCursor(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("cursor name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT block FROM indexer_cursors WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveCursor upserts the last indexed block for a name.
func (s *Store) SaveCursor(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("cursor name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_cursors (name, block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET block = EXCLUDED.block, updated_at = now()
	`, name, int64(block))
	return err
}

func toInt8(v *uint64) *int64 {
	if v == nil {
		return nil
	}
	out := int64(*v)
	return &out
}

func hashText(h *common.Hash) *string {
	if h == nil {
		return nil
	}
	out := h.Hex()
	return &out
}
