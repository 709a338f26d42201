package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound 表示键不存在。调用方必须把它当作正常结果分支处理。
var ErrNotFound = errors.New("key not found")

// Store 是核心逻辑依赖的通用持久化键值存储。
//
// 语义上是 key → 序列化文本，无事务、无锁；
// 读失败时调用方按"空集合"降级，写失败必须上报给调用者。
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// RedisStore 基于 Redis 实现 Store。
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore 用一个已有的 redis.Client 创建 RedisStore。
func NewRedisStore(rdb *redis.Client) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("redis client is nil")
	}
	return &RedisStore{rdb: rdb}, nil
}

// Get 读取键值；键不存在时返回 ErrNotFound。
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	if s == nil || s.rdb == nil {
		return "", errors.New("store is not initialized")
	}
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kvstore get %s: %w", key, err)
	}
	return val, nil
}

// Set 覆盖写入键值（无过期时间）。
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if s == nil || s.rdb == nil {
		return errors.New("store is not initialized")
	}
	if err := s.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("kvstore set %s: %w", key, err)
	}
	return nil
}

// Remove 删除键；键不存在也视为成功。
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if s == nil || s.rdb == nil {
		return errors.New("store is not initialized")
	}
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("kvstore remove %s: %w", key, err)
	}
	return nil
}
