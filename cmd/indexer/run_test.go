package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"eventRelay/internal/config"
	"eventRelay/internal/indexer"
	"eventRelay/internal/storage"
	"eventRelay/internal/storage/sqlite"
)

func TestOpenBackendsSQLiteServesEveryRole(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		Out:         filepath.Join(dir, "events.jsonl"),
		CursorStore: config.CursorStoreSQLite,
		SQLitePath:  filepath.Join(dir, "events.db"),
	}
	b, err := openBackends(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("open backends: %v", err)
	}
	defer b.Close()

	if len(b.sinks) != 2 {
		t.Fatalf("expected jsonl and sqlite sinks, got %d", len(b.sinks))
	}
	if _, ok := b.sinks[0].(*storage.JsonlStorage); !ok {
		t.Fatalf("first sink: %T", b.sinks[0])
	}
	lite, ok := b.sinks[1].(*sqlite.Store)
	if !ok {
		t.Fatalf("second sink: %T", b.sinks[1])
	}
	if b.cursors != lite {
		t.Fatalf("sqlite store must hold the cursors, got %T", b.cursors)
	}
	if b.decodeErrors != lite {
		t.Fatalf("sqlite store must take decode errors without an errors file, got %T", b.decodeErrors)
	}
	if b.seen != nil {
		t.Fatalf("no redis configured, seen must be nil")
	}
}

func TestOpenBackendsFileCursorsAndErrorsFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		Out:         filepath.Join(dir, "events.jsonl"),
		Errors:      filepath.Join(dir, "errors.jsonl"),
		CursorStore: config.CursorStoreFile,
		Checkpoint:  filepath.Join(dir, "cursors.json"),
	}
	b, err := openBackends(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("open backends: %v", err)
	}
	defer b.Close()

	if len(b.sinks) != 1 {
		t.Fatalf("expected one sink, got %d", len(b.sinks))
	}
	if _, ok := b.cursors.(*indexer.FileCursorStore); !ok {
		t.Fatalf("cursors: %T", b.cursors)
	}
	if _, ok := b.decodeErrors.(*storage.JsonlStorage); !ok {
		t.Fatalf("decode errors: %T", b.decodeErrors)
	}
}

func TestOpenBackendsRedisSeen(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	dir := t.TempDir()
	cfg := config.Config{
		Out:         filepath.Join(dir, "events.jsonl"),
		CursorStore: config.CursorStoreFile,
		Checkpoint:  filepath.Join(dir, "cursors.json"),
		RedisAddr:   mr.Addr(),
	}
	b, err := openBackends(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("open backends: %v", err)
	}
	defer b.Close()

	if _, ok := b.seen.(*indexer.RedisSeen); !ok {
		t.Fatalf("seen: %T", b.seen)
	}
}

func TestOpenBackendsErrors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]config.Config{
		"no sink": {
			CursorStore: config.CursorStoreFile,
			Checkpoint:  filepath.Join(dir, "cursors.json"),
		},
		"postgres cursors without dsn": {
			Out:         filepath.Join(dir, "events.jsonl"),
			CursorStore: config.CursorStorePostgres,
		},
		"unreachable nats": {
			CursorStore: config.CursorStoreSQLite,
			SQLitePath:  filepath.Join(dir, "nats.db"),
			NATSURL:     "nats://127.0.0.1:1",
		},
	}
	for name, cfg := range cases {
		b, err := openBackends(context.Background(), cfg, zap.NewNop())
		if err == nil {
			b.Close()
			t.Fatalf("%s: expected error", name)
		}
	}
}
