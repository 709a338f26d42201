package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"furniq/internal/model"
	"furniq/internal/pkg/metrics"
)

const (
	KeyUpdateQueue           = "furniq:feed:updates"
	KeyUpdateProcessingQueue = "furniq:feed:updates:processing"
	KeyUpdatePendingSet      = "furniq:feed:updates:pending" // 去重集合
	KeyUpdateStartedHash     = "furniq:feed:updates:started" // 开始处理时间 (update_id -> unix timestamp)
)

var (
	ErrNoUpdate     = errors.New("no price update available")
	ErrUpdateExists = errors.New("price update already in queue") // 消息已入队
)

// Client 封装价格更新队列的 Redis List 操作。
//
// 价格源把更新推入主队列；消费者用 BRPopLPush 把消息搬到
// processing 队列处理，处理完成后 Ack 清除，处理中崩溃的
// 消息由 Rescue 捞回主队列重新投递。
type Client struct {
	rdb *redis.Client
}

// NewClient 从地址创建队列客户端。
func NewClient(addr, password string) *Client {
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       0,
		}),
	}
}

// NewClientWithRedis 复用已有的 redis.Client。
func NewClientWithRedis(rdb *redis.Client) (*Client, error) {
	if rdb == nil {
		return nil, errors.New("redis client is nil")
	}
	return &Client{rdb: rdb}, nil
}

// pushUpdateScript 原子执行 SADD + LPUSH，避免中间状态不一致。
// KEYS[1] = pending set, KEYS[2] = update queue
// ARGV[1] = update_id, ARGV[2] = update JSON
// 返回: 1 = 成功推送, 0 = 消息已存在
var pushUpdateScript = redis.NewScript(`
	local added = redis.call('SADD', KEYS[1], ARGV[1])
	if added == 0 then
		return 0
	end
	redis.call('LPUSH', KEYS[2], ARGV[2])
	return 1
`)

// PushUpdate 序列化并推入一条价格更新。
// 同一 update_id 的消息只入队一次，重复时返回 ErrUpdateExists。
func (c *Client) PushUpdate(ctx context.Context, update *model.PriceUpdate) error {
	if update == nil {
		return errors.New("update is nil")
	}
	if c == nil || c.rdb == nil {
		return errors.New("redis client is not initialized")
	}
	if update.UpdateID == "" {
		return errors.New("update id is empty")
	}

	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	result, err := pushUpdateScript.Run(ctx, c.rdb,
		[]string{KeyUpdatePendingSet, KeyUpdateQueue},
		update.UpdateID, string(data),
	).Int()
	if err != nil {
		return fmt.Errorf("push update script: %w", err)
	}

	if result == 0 {
		metrics.PriceUpdateThroughput.WithLabelValues("in", "skipped").Inc()
		return ErrUpdateExists
	}

	metrics.PriceUpdateThroughput.WithLabelValues("in", "pushed").Inc()
	return nil
}

// PopUpdate 阻塞等待下一条价格更新，超时返回 ErrNoUpdate。
// 弹出的同时把开始处理时间记入 KeyUpdateStartedHash，供 Rescue 判断超时。
func (c *Client) PopUpdate(ctx context.Context, timeout time.Duration) (*model.PriceUpdate, error) {
	if c == nil || c.rdb == nil {
		return nil, errors.New("redis client is not initialized")
	}
	result, err := c.rdb.BRPopLPush(ctx, KeyUpdateQueue, KeyUpdateProcessingQueue, timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoUpdate
	}
	if err != nil {
		return nil, fmt.Errorf("brpoplpush update: %w", err)
	}

	var update model.PriceUpdate
	if err := json.Unmarshal([]byte(result), &update); err != nil {
		return nil, fmt.Errorf("unmarshal update: %w", err)
	}

	if update.UpdateID != "" {
		c.rdb.HSet(ctx, KeyUpdateStartedHash, update.UpdateID, time.Now().Unix())
	}

	metrics.PriceUpdateThroughput.WithLabelValues("out", "popped").Inc()
	return &update, nil
}

// ackUpdateScript 原子地从 processing 队列里找到并删除匹配 update_id 的消息。
// KEYS[1] = processing queue, KEYS[2] = pending set, KEYS[3] = started hash
// ARGV[1] = update_id
// 返回: 删除的消息数量
var ackUpdateScript = redis.NewScript(`
	local queue = KEYS[1]
	local pending = KEYS[2]
	local started = KEYS[3]
	local updateId = ARGV[1]

	local updates = redis.call('LRANGE', queue, 0, -1)
	local removed = 0
	for _, update in ipairs(updates) do
		if string.find(update, '"update_id":"' .. updateId .. '"', 1, true) then
			redis.call('LREM', queue, 1, update)
			removed = removed + 1
			break
		end
	end

	redis.call('SREM', pending, updateId)
	redis.call('HDEL', started, updateId)

	return removed
`)

// AckUpdate 确认一条消息处理完成，将其从 processing 队列、
// pending 集合和 started 哈希中清除。用 update_id 匹配而非完整
// JSON，避免序列化差异导致匹配失败。
func (c *Client) AckUpdate(ctx context.Context, update *model.PriceUpdate) error {
	if update == nil {
		return errors.New("update is nil")
	}
	if c == nil || c.rdb == nil {
		return errors.New("redis client is not initialized")
	}
	if update.UpdateID == "" {
		return errors.New("update id is empty")
	}

	_, err := ackUpdateScript.Run(ctx, c.rdb,
		[]string{KeyUpdateProcessingQueue, KeyUpdatePendingSet, KeyUpdateStartedHash},
		update.UpdateID,
	).Int()
	if err != nil {
		return fmt.Errorf("ack update script: %w", err)
	}

	return nil
}

// QueueDepth 返回主队列当前长度。
func (c *Client) QueueDepth(ctx context.Context) (int64, error) {
	if c == nil || c.rdb == nil {
		return 0, errors.New("redis client is not initialized")
	}
	depth, err := c.rdb.LLen(ctx, KeyUpdateQueue).Result()
	if err != nil {
		return 0, fmt.Errorf("llen updates: %w", err)
	}
	return depth, nil
}

// rescueScript 原子地把超时消息从 processing 队列搬回主队列。
// 只有 LREM 成功移除时才 LPUSH，防止并发 rescue 重复入队。
// KEYS[1] = processing queue, KEYS[2] = update queue, KEYS[3] = started hash
// ARGV[1] = update JSON, ARGV[2] = update_id
// 返回: 1 = 成功捞回, 0 = 消息不存在
var rescueScript = redis.NewScript(`
	local removed = redis.call('LREM', KEYS[1], 1, ARGV[1])
	if removed > 0 then
		redis.call('LPUSH', KEYS[2], ARGV[1])
		redis.call('HDEL', KEYS[3], ARGV[2])
		return 1
	end
	return 0
`)

// RescueStuckUpdates 扫描 processing 队列，把处理超时的消息
// 重新投回主队列。超时依据 KeyUpdateStartedHash 中记录的开始
// 时间判断，没有记录时退回到消息自身的 CreatedAt。
func (c *Client) RescueStuckUpdates(ctx context.Context, timeout time.Duration) (int, error) {
	if c == nil || c.rdb == nil {
		return 0, errors.New("redis client is not initialized")
	}

	startedTimes, err := c.rdb.HGetAll(ctx, KeyUpdateStartedHash).Result()
	if err != nil {
		return 0, fmt.Errorf("hgetall started: %w", err)
	}
	if len(startedTimes) == 0 {
		return 0, nil
	}

	updatesRaw, err := c.rdb.LRange(ctx, KeyUpdateProcessingQueue, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("lrange processing: %w", err)
	}
	if len(updatesRaw) == 0 {
		// processing 队列为空但 started 哈希有残留，清理孤立记录
		for updateID := range startedTimes {
			c.rdb.HDel(ctx, KeyUpdateStartedHash, updateID)
		}
		return 0, nil
	}

	now := time.Now().Unix()
	threshold := int64(timeout.Seconds())
	rescued := 0

	for _, raw := range updatesRaw {
		var update model.PriceUpdate
		if err := json.Unmarshal([]byte(raw), &update); err != nil {
			continue
		}
		if update.UpdateID == "" {
			continue
		}

		startedStr, ok := startedTimes[update.UpdateID]
		if !ok {
			if update.CreatedAt == 0 {
				continue
			}
			if now-update.CreatedAt <= threshold {
				continue
			}
		} else {
			var started int64
			if _, err := fmt.Sscanf(startedStr, "%d", &started); err != nil {
				continue
			}
			if now-started <= threshold {
				continue
			}
		}

		result, err := rescueScript.Run(ctx, c.rdb,
			[]string{KeyUpdateProcessingQueue, KeyUpdateQueue, KeyUpdateStartedHash},
			raw, update.UpdateID,
		).Int()
		if err != nil {
			continue
		}
		if result == 1 {
			rescued++
		}
	}

	return rescued, nil
}
