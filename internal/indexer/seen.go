package indexer

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"eventRelay/internal/model"
)

// Seen remembers logs that were already dispatched so overlapping fetches
// and restarts do not deliver them twice.
type Seen interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, keys []string) error
}

// logKey identifies a mined log. A reorg retraction (removed=true) gets its
// own key so it is not mistaken for the log it retracts. Pending logs have no
// stable identity and return "".
func logKey(network string, log model.RawLog) string {
	if log.TxHash == nil || log.LogIndex == nil {
		return ""
	}
	key := network + ":" + log.TxHash.Hex() + ":" + strconv.FormatUint(*log.LogIndex, 10)
	if log.Removed != nil && *log.Removed {
		key += ":removed"
	}
	return key
}

// MemorySeen is a process-local Seen.
type MemorySeen struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewMemorySeen() *MemorySeen {
	return &MemorySeen{keys: make(map[string]struct{})}
}

func (m *MemorySeen) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok, nil
}

func (m *MemorySeen) Mark(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		m.keys[key] = struct{}{}
	}
	return nil
}

// RedisSeen shares dispatched log keys between indexer instances. Keys
// expire after ttl.
type RedisSeen struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSeen(client *redis.Client, prefix string, ttl time.Duration) *RedisSeen {
	return &RedisSeen{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisSeen) Seen(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *RedisSeen) Mark(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, key := range keys {
		pipe.Set(ctx, r.prefix+key, 1, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis mark seen: %w", err)
	}
	return nil
}
