package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"eventRelay/internal/bootstrap"
	"eventRelay/internal/chain"
	"eventRelay/internal/config"
	"eventRelay/internal/indexer"
	"eventRelay/internal/metrics"
	"eventRelay/internal/notify"
	"eventRelay/internal/registry"
	"eventRelay/internal/storage"
	"eventRelay/internal/storage/postgres"
	"eventRelay/internal/storage/sqlite"
)

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	manifest, err := config.LoadManifest(cfg.Manifest)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	networks, err := chain.DialNetworks(ctx, manifest.RPCURLs())
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer networks.Close()

	m, err := metrics.New(nil)
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("metrics enabled", zap.String("addr", cfg.MetricsAddr))
	}

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	reg, err := bootstrap.BuildRegistry(manifest, networks.Providers(), b.sinks,
		bootstrap.Options{
			Contracts: cfg.Contracts,
			RegistryOptions: []registry.Option{
				registry.WithLogger(logger),
				registry.WithMetrics(m),
				registry.WithDecodeErrorSink(b.decodeErrors),
			},
		},
	)
	if err != nil {
		return err
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PollInterval: cfg.PollInterval,
	}, reg, b.cursors, b.seen, logger, m)

	logger.Info("indexer start",
		zap.String("manifest", cfg.Manifest),
		zap.Int("routes", len(reg.Events())),
		zap.Int("sinks", len(b.sinks)),
		zap.String("cursor_store", cfg.CursorStore),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Bool("redis_dedupe", b.seen != nil),
	)

	return runner.Run(ctx)
}

// backends holds the sinks, cursor store and dedupe set selected by cfg.
type backends struct {
	sinks        []storage.Storage
	decodeErrors registry.DecodeErrorSink
	cursors      indexer.CursorStore
	seen         indexer.Seen
	closers      []func()
}

// openBackends connects every backend cfg enables. The SQLite store serves as
// sink and cursor store when selected, and takes decode errors when no errors
// file is set.
func openBackends(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{}
	if err := b.open(ctx, cfg, logger); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *backends) open(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if cfg.Out != "" {
		b.sinks = append(b.sinks, storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.Errors != "" {
		b.decodeErrors = storage.NewJsonlStorage(cfg.Errors)
	}

	var pg *postgres.Store
	if cfg.PGDSN != "" {
		var err error
		pg, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		b.sinks = append(b.sinks, pg)
	}

	switch cfg.CursorStore {
	case config.CursorStoreSQLite:
		lite, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() { _ = lite.Close() })
		b.sinks = append(b.sinks, lite)
		if b.decodeErrors == nil {
			b.decodeErrors = lite
		}
		b.cursors = lite
	case config.CursorStorePostgres:
		if pg == nil {
			return fmt.Errorf("postgres cursor store needs pg-dsn")
		}
		b.cursors = pg
	default:
		b.cursors = indexer.NewFileCursorStore(cfg.Checkpoint)
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		b.closers = append(b.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		b.seen = indexer.NewRedisSeen(client, "event-relay:seen:", cfg.SeenTTL)
	}

	if cfg.NATSURL != "" {
		natsCfg := notify.DefaultConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.SubjectPrefix = cfg.NATSSubjectPrefix
		nc, err := notify.Connect(natsCfg, logger)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() { _ = nc.Drain() })
		b.sinks = append(b.sinks, notify.NewNotifier(nc, natsCfg.SubjectPrefix))
	}

	if len(b.sinks) == 0 {
		return fmt.Errorf("no sink configured: set out, pg-dsn, cursor-store=sqlite or nats-url")
	}
	return nil
}

// Close releases backends in reverse order of opening.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}
