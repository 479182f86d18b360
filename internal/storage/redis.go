package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"authorities/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis-backed rate-limit ledger.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string
}

// RedisLedger implements Ledger with one sorted set per caller address.
// Scores are admission times in unix microseconds, which a float64 score
// holds exactly.
type RedisLedger struct {
	client *redis.Client
	prefix string
}

// NewRedisLedger connects to Redis and verifies the connection.
func NewRedisLedger(config RedisConfig) (*RedisLedger, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("address is required for Redis ledger")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedisLedgerFromClient(client, config.KeyPrefix), nil
}

// NewRedisLedgerFromClient wraps an existing client.
func NewRedisLedgerFromClient(client *redis.Client, keyPrefix string) *RedisLedger {
	return &RedisLedger{client: client, prefix: keyPrefix}
}

func (r *RedisLedger) key(callerAddress string) string {
	return ledgerKey(r.prefix, callerAddress)
}

func ledgerKey(prefix, callerAddress string) string {
	return prefix + "ratelimit:" + callerAddress
}

func ledgerScore(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}

// ledgerMember makes every admission a distinct set member, even when two
// share a timestamp.
func ledgerMember(t time.Time) string {
	return ledgerScore(t) + ":" + uuid.NewString()
}

// InsertRateLimitRecord adds one admission to the caller's sorted set.
func (r *RedisLedger) InsertRateLimitRecord(ctx context.Context, record models.RateLimitRecord) error {
	err := r.client.ZAdd(ctx, r.key(record.CallerAddress), redis.Z{
		Score:  float64(record.CreatedAt.UnixMicro()),
		Member: ledgerMember(record.CreatedAt),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to insert rate limit record: %w", err)
	}
	return nil
}

// CountRateLimitRecords counts admissions scored at or after since.
func (r *RedisLedger) CountRateLimitRecords(ctx context.Context, callerAddress string, since time.Time) (int, error) {
	count, err := r.client.ZCount(ctx, r.key(callerAddress), ledgerScore(since), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count rate limit records: %w", err)
	}
	return int(count), nil
}

// PruneRateLimitRecords removes admissions older than before from every
// caller's set. Keys are walked with SCAN so large keyspaces are not blocked.
func (r *RedisLedger) PruneRateLimitRecords(ctx context.Context, before time.Time) (int64, error) {
	var removed int64
	maxScore := "(" + ledgerScore(before)

	iter := r.client.Scan(ctx, 0, ledgerKey(r.prefix, "*"), 100).Iterator()
	for iter.Next(ctx) {
		n, err := r.client.ZRemRangeByScore(ctx, iter.Val(), "-inf", maxScore).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to prune %s: %w", iter.Val(), err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan ledger keys: %w", err)
	}
	return removed, nil
}

// Ping checks the Redis connection.
func (r *RedisLedger) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *RedisLedger) Close() error {
	return r.client.Close()
}
