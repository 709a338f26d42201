package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "furniq:dedup:observe:"

// Deduplicator 在时间窗口内抑制重复的偏好观测信号。
//
// 同一用户短时间内反复打开同一件商品只应计为一次信号，
// 否则画像会被刷屏式点击冲歪。
type Deduplicator struct {
	rdb    *redis.Client
	window time.Duration
}

// NewDeduplicator 创建观测去重器。window <= 0 时默认 1 小时。
func NewDeduplicator(rdb *redis.Client, window time.Duration) *Deduplicator {
	if window <= 0 {
		window = time.Hour
	}
	return &Deduplicator{
		rdb:    rdb,
		window: window,
	}
}

// IsDuplicate 判断该观测在窗口内是否已出现过，并顺带登记本次出现。
//
// Redis 不可用时放行观测（返回 false 和错误），由调用方决定是否记录。
func (d *Deduplicator) IsDuplicate(ctx context.Context, userID uint, style, category string) (bool, error) {
	if d == nil || d.rdb == nil {
		return false, nil
	}
	key := keyPrefix + signalHash(userID, style, category)
	ok, err := d.rdb.SetNX(ctx, key, "1", d.window).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return !ok, nil
}

// Delete 提前清除某观测的去重标记。
func (d *Deduplicator) Delete(ctx context.Context, userID uint, style, category string) error {
	if d == nil || d.rdb == nil {
		return nil
	}
	key := keyPrefix + signalHash(userID, style, category)
	if err := d.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("dedup del: %w", err)
	}
	return nil
}

func signalHash(userID uint, style, category string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s", userID, style, category)))
	return hex.EncodeToString(sum[:])
}
