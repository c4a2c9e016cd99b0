package indexer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultRetryDelay = 100 * time.Millisecond

// retrier repeats RPC calls with doubling delays and logs every failed
// attempt on the stream logger.
type retrier struct {
	maxRetries int
	baseDelay  time.Duration
}

func newRetrier(maxRetries int, baseDelay time.Duration) retrier {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = defaultRetryDelay
	}
	return retrier{maxRetries: maxRetries, baseDelay: baseDelay}
}

// do runs fn until it succeeds, the retries are spent or ctx ends. op and
// fields label the warning logged after each failure.
func (r retrier) do(ctx context.Context, logger *zap.Logger, op string, fn func(context.Context) error, fields ...zap.Field) error {
	delay := r.baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= r.maxRetries {
			logger.Warn(op+" failed, giving up", append(fields, zap.Int("attempts", attempt+1), zap.Error(err))...)
			return err
		}
		logger.Warn(op+" failed, retrying", append(fields, zap.Int("attempt", attempt+1), zap.Duration("backoff", delay), zap.Error(err))...)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
