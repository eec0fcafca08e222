package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "balkly:lock:"

// ErrLockTimeout 在等待时间内未拿到锁
var ErrLockTimeout = errors.New("lock wait timeout")

// Locker 按业务 key 串行化的分布式锁
type Locker interface {
	// Acquire 阻塞直到拿到锁、超时或 ctx 取消；返回的 release 可重复调用
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// 只删除自己持有的锁，避免 TTL 过期后误删他人的锁
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLocker 基于 SET NX PX 的锁
type RedisLocker struct {
	rdb   *redis.Client
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		rdb:   rdb,
		ttl:   ttl,
		wait:  wait,
		retry: 25 * time.Millisecond,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	fullKey := keyPrefix + key
	token := uuid.New().String()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.rdb.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx %s: %w", fullKey, err)
		}
		if ok {
			released := false
			return func() {
				if released {
					return
				}
				released = true
				// 请求 ctx 可能已取消，释放锁使用独立的短超时
				rctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(rctx, l.rdb, []string{fullKey}, token).Err()
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

// NopLocker 未配置 Redis 时使用，唯一索引兜底
type NopLocker struct{}

func (NopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
