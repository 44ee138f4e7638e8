package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RetryCounter 在 Redis 中累计连续失败次数，多设备/多进程共享同一计数。
// TTL 从第一次失败开始计算，窗口内没有新失败时计数自然过期。
type RetryCounter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRetryCounter(rdb *redis.Client, ttl time.Duration) *RetryCounter {
	return &RetryCounter{rdb: rdb, ttl: ttl}
}

// IncrementAndGet counts one more failure under key. The counter is created
// with its TTL (SET NX EX) in the same MULTI as the INCR, so it never lives
// without an expiry.
func (r *RetryCounter) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SetNX(ctx, key, 0, r.ttl)
		incr = p.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count failure: %w", err)
	}
	return incr.Val(), nil
}

// Reset clears the count after a success.
func (r *RetryCounter) Reset(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// FormatRetryKey namespaces a failure counter by handler and item id.
func FormatRetryKey(handler string, id string) string {
	return fmt.Sprintf("leannotes:failures:%s:%s", handler, id)
}
