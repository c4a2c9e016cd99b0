package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"eventRelay/internal/chain"
	"eventRelay/internal/metrics"
	"eventRelay/internal/model"
	"eventRelay/internal/registry"
)

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
	// PollInterval applies to deployments without their own polling_every.
	// Zero stops each stream once it reaches the chain head.
	PollInterval time.Duration
}

// Runner fetches logs for every registered deployment and triggers the
// registry with them.
type Runner struct {
	cfg      RunConfig
	retry    retrier
	registry *registry.Registry
	cursors  CursorStore
	seen     Seen
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewRunner builds a Runner with its dependencies. A nil seen falls back to
// an in-memory set.
func NewRunner(cfg RunConfig, reg *registry.Registry, cursors CursorStore, seen Seen, logger *zap.Logger, m *metrics.Metrics) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if seen == nil {
		seen = NewMemorySeen()
	}
	return &Runner{
		cfg:      cfg,
		retry:    newRetrier(cfg.MaxRetries, cfg.RetryBackoff),
		registry: reg,
		cursors:  cursors,
		seen:     seen,
		logger:   logger,
		metrics:  m,
	}
}

// Run follows every (event, deployment) pair concurrently until ctx is
// cancelled, every stream reaches its end block, or one stream fails.
func (r *Runner) Run(ctx context.Context) error {
	if r.registry == nil {
		return fmt.Errorf("registry is nil")
	}
	if r.cursors == nil {
		return fmt.Errorf("cursor store is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}

	events := r.registry.Complete().Events()
	if len(events) == 0 {
		return fmt.Errorf("no events registered")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, event := range events {
		for i := range event.Contract.Details {
			deployment := &event.Contract.Details[i]
			g.Go(func() error {
				return r.follow(gctx, event, deployment)
			})
		}
	}

	err := g.Wait()
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

func cursorName(event *registry.EventInformation, deployment *registry.NetworkContract) string {
	return fmt.Sprintf("%s/%s/%s/%s", deployment.Network, event.Contract.Name, event.Name, deployment.ContractAddress().Hex())
}

func (r *Runner) follow(ctx context.Context, event *registry.EventInformation, deployment *registry.NetworkContract) error {
	if deployment.Provider == nil {
		return fmt.Errorf("%s: no provider for network %s", event.Name, deployment.Network)
	}

	name := cursorName(event, deployment)
	logger := r.logger.With(zap.String("stream", name))

	var from uint64
	if deployment.StartBlock != nil {
		from = *deployment.StartBlock
	}
	last, ok, err := r.cursors.LoadCursor(ctx, name)
	if err != nil {
		return fmt.Errorf("load cursor %s: %w", name, err)
	}
	if ok && last >= from {
		from = last + 1
		logger.Info("resume from cursor", zap.Uint64("last_processed", last), zap.Uint64("from", from))
	}

	poll := r.cfg.PollInterval
	if deployment.PollingEvery != nil {
		poll = *deployment.PollingEvery
	}

	for {
		if deployment.EndBlock != nil && from > *deployment.EndBlock {
			logger.Info("reached end block", zap.Uint64("end_block", *deployment.EndBlock))
			return nil
		}

		head, err := r.latestBlock(ctx, logger, deployment.Provider)
		if err != nil {
			return fmt.Errorf("%s: latest block: %w", name, err)
		}

		batches, err := planBatches(from, head, deployment.EndBlock, r.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(batches) > 0 {
			for _, blockRange := range batches {
				if err := r.indexRange(ctx, logger, name, event, deployment, blockRange); err != nil {
					return err
				}
				from = blockRange.To + 1
			}
			continue
		}

		if poll <= 0 {
			logger.Info("caught up", zap.Uint64("head", head))
			return nil
		}
		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Runner) indexRange(
	ctx context.Context,
	logger *zap.Logger,
	name string,
	event *registry.EventInformation,
	deployment *registry.NetworkContract,
	blockRange BlockRange,
) error {
	logger.Debug("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

	logs, err := r.filterLogs(ctx, logger, deployment, event.TopicID, blockRange)
	if err != nil {
		return fmt.Errorf("%s: filter logs: %w", name, err)
	}

	batch, keys, err := r.fresh(ctx, deployment, logs)
	if err != nil {
		return err
	}

	if len(batch) > 0 {
		if err := r.registry.Trigger(ctx, event.TopicID, batch); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := r.seen.Mark(ctx, keys); err != nil {
			logger.Warn("mark seen failed", zap.Error(err))
		}
	}

	if err := r.cursors.SaveCursor(ctx, name, blockRange.To); err != nil {
		return fmt.Errorf("save cursor %s: %w", name, err)
	}
	r.metrics.BlocksIndexed(deployment.Network, blockRange.To-blockRange.From+1)

	logger.Info("batch complete", zap.Int("logs", len(batch)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	return nil
}

// fresh converts fetched logs and drops the ones already dispatched.
func (r *Runner) fresh(ctx context.Context, deployment *registry.NetworkContract, logs []types.Log) ([]registry.LogWithContract, []string, error) {
	batch := make([]registry.LogWithContract, 0, len(logs))
	keys := make([]string, 0, len(logs))
	inBatch := make(map[string]struct{}, len(logs))

	for _, log := range logs {
		raw := model.RawLogFromTypes(log)
		if key := logKey(deployment.Network, raw); key != "" {
			if _, dup := inBatch[key]; dup {
				continue
			}
			seen, err := r.seen.Seen(ctx, key)
			if err != nil {
				return nil, nil, err
			}
			if seen {
				continue
			}
			inBatch[key] = struct{}{}
			keys = append(keys, key)
		}
		batch = append(batch, registry.LogWithContract{Log: raw, Contract: deployment})
	}
	return batch, keys, nil
}

func (r *Runner) latestBlock(ctx context.Context, logger *zap.Logger, provider chain.Provider) (uint64, error) {
	var latest uint64
	err := r.retry.do(ctx, logger, "latest block fetch", func(ctx context.Context) error {
		var err error
		latest, err = provider.LatestBlockNumber(ctx)
		return err
	})
	return latest, err
}

func (r *Runner) filterLogs(
	ctx context.Context,
	logger *zap.Logger,
	deployment *registry.NetworkContract,
	topicID common.Hash,
	blockRange BlockRange,
) ([]types.Log, error) {
	var logs []types.Log
	addresses := []common.Address{deployment.ContractAddress()}
	topics := []common.Hash{topicID}
	err := r.retry.do(ctx, logger, "filter logs", func(ctx context.Context) error {
		var err error
		logs, err = deployment.Provider.FilterLogs(ctx, blockRange.From, blockRange.To, addresses, topics)
		return err
	}, zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	return logs, err
}
