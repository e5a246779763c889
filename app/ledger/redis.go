package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the set holding delivered fingerprints.
const DefaultRedisKey = "newsletter:processed-entries"

// RedisLedger stores fingerprints in a single Redis set shared by every
// process pointed at it. SADD is the serialization point for concurrent workers.
type RedisLedger struct {
	client *redis.Client
	key    string
}

func NewRedisClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

func NewRedisLedger(client *redis.Client, key string) *RedisLedger {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisLedger{
		client: client,
		key:    key,
	}
}

// Load checks connectivity; the set itself stays in Redis.
func (l *RedisLedger) Load(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return &StorageError{Op: "load", Err: fmt.Errorf("failed to connect to Redis: %w", err)}
	}

	count, err := l.client.SCard(ctx, l.key).Result()
	if err != nil {
		return &StorageError{Op: "load", Err: fmt.Errorf("failed to count key %s: %w", l.key, err)}
	}

	slog.Info("Ledger connected to Redis", "addr", l.client.Options().Addr, "key", l.key, "entries", count)
	return nil
}

func (l *RedisLedger) Contains(ctx context.Context, fingerprint string) (bool, error) {
	found, err := l.client.SIsMember(ctx, l.key, fingerprint).Result()
	if err != nil {
		return false, &StorageError{Op: "contains", Err: fmt.Errorf("failed to check member of %s: %w", l.key, err)}
	}
	return found, nil
}

func (l *RedisLedger) Record(ctx context.Context, fingerprint string) error {
	added, err := l.client.SAdd(ctx, l.key, fingerprint).Result()
	if err != nil {
		return &StorageError{Op: "record", Err: fmt.Errorf("failed to add member to %s: %w", l.key, err)}
	}
	if added == 0 {
		return ErrAlreadyRecorded
	}
	return nil
}

func (l *RedisLedger) Len(ctx context.Context) (int, error) {
	count, err := l.client.SCard(ctx, l.key).Result()
	if err != nil {
		return 0, &StorageError{Op: "len", Err: fmt.Errorf("failed to count key %s: %w", l.key, err)}
	}
	return int(count), nil
}

func (l *RedisLedger) Close() error {
	return l.client.Close()
}
