package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func runFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.String("manifest", "./manifest.yaml", "")
	flags.StringSlice("contracts", nil, "")
	flags.String("cursor-store", "file", "")
	flags.String("pg-dsn", "", "")
	flags.Duration("poll-interval", 15*time.Second, "")
	return flags
}

func TestLoadDefaultsAndFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	flags := runFlags()
	if err := flags.Parse([]string{"--contracts", "pool, token", "--poll-interval", "3s"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BatchSize != 2000 || cfg.MaxRetries != 5 || cfg.CursorStore != CursorStoreFile {
		t.Fatalf("defaults: %+v", cfg)
	}
	if len(cfg.Contracts) != 2 || cfg.Contracts[0] != "pool" || cfg.Contracts[1] != "token" {
		t.Fatalf("contracts: %v", cfg.Contracts)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Fatalf("poll interval: %s", cfg.PollInterval)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INDEXER_CURSOR_STORE", "postgres")
	t.Setenv("INDEXER_PG_DSN", "postgres://localhost/events")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CursorStore != CursorStorePostgres || cfg.PGDSN != "postgres://localhost/events" {
		t.Fatalf("env override: %+v", cfg)
	}
}

func TestLoadRejectsPostgresWithoutDSN(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INDEXER_CURSOR_STORE", "postgres")
	if _, err := Load("", nil); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}

func TestLoadDecodeRequiresNetwork(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INDEXER_IN", "./logs.jsonl")
	if _, err := LoadDecode("", nil); err == nil {
		t.Fatalf("expected missing network error")
	}

	t.Setenv("INDEXER_NETWORK", "bsc")
	cfg, err := LoadDecode("", nil)
	if err != nil {
		t.Fatalf("load decode: %v", err)
	}
	if cfg.In != "./logs.jsonl" || cfg.Network != "bsc" || cfg.Errors != "./data/decode_errors.jsonl" {
		t.Fatalf("decode config: %+v", cfg)
	}
}
