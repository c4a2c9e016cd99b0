package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Typed EVM event indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch logs for every manifest event and dispatch them to the sinks",
		RunE:  runIndexer,
	}

	runCmd.Flags().String("manifest", "./manifest.yaml", "contract manifest (YAML)")
	runCmd.Flags().StringSlice("contracts", nil, "only index these manifest contracts (comma-separated)")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	runCmd.Flags().String("out", "./data/events.jsonl", "output JSONL path, empty disables")
	runCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL path, empty disables")
	runCmd.Flags().String("checkpoint", "./data/cursors.json", "cursor file path for the file cursor store")
	runCmd.Flags().String("cursor-store", "file", "cursor store (file, sqlite, postgres)")
	runCmd.Flags().String("sqlite-path", "./data/events.db", "SQLite database path")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN; also stores decoded events")
	runCmd.Flags().String("redis-addr", "", "Redis address for shared log dedupe")
	runCmd.Flags().Duration("seen-ttl", 24*time.Hour, "how long Redis remembers dispatched logs")
	runCmd.Flags().String("nats-url", "", "NATS URL; publishes decoded events when set")
	runCmd.Flags().String("nats-subject-prefix", "events", "NATS subject prefix")
	runCmd.Flags().Duration("poll-interval", 15*time.Second, "default head polling interval, 0 exits when caught up")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("metrics-addr", "", "listen address for /metrics, empty disables")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs JSONL offline through the manifest routes",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("manifest", "./manifest.yaml", "contract manifest (YAML)")
	decodeCmd.Flags().StringSlice("contracts", nil, "only decode these manifest contracts (comma-separated)")
	decodeCmd.Flags().String("in", "", "input raw logs JSONL (eth_getLogs objects)")
	decodeCmd.Flags().String("network", "", "network the raw logs were fetched from")
	decodeCmd.Flags().String("out", "./data/events.jsonl", "output decoded events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "List the routes the manifest registers",
		RunE:  runEvents,
	}

	eventsCmd.Flags().String("manifest", "./manifest.yaml", "contract manifest (YAML)")
	eventsCmd.Flags().StringSlice("contracts", nil, "only list these manifest contracts (comma-separated)")
	eventsCmd.Flags().StringSlice("topic", nil, "only list these topic ids (comma-separated)")

	root.AddCommand(eventsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
