package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"furniq/internal/model"
	"furniq/internal/pkg/metrics"
	"furniq/internal/pkg/notify"
	"furniq/internal/pkg/queue"
	"furniq/internal/pricewatch"
)

// UserEmails 按用户 ID 查询通知邮箱。
type UserEmails interface {
	EmailByID(ctx context.Context, userID uint) (string, error)
}

// GormUserEmails 基于用户表实现 UserEmails。
type GormUserEmails struct {
	db *gorm.DB
}

// NewGormUserEmails 创建邮箱查询器。
func NewGormUserEmails(db *gorm.DB) *GormUserEmails {
	return &GormUserEmails{db: db}
}

// EmailByID 返回用户邮箱。
func (g *GormUserEmails) EmailByID(ctx context.Context, userID uint) (string, error) {
	var user model.User
	if err := g.db.WithContext(ctx).Select("email").First(&user, userID).Error; err != nil {
		return "", fmt.Errorf("load user %d: %w", userID, err)
	}
	return user.Email, nil
}

// Consumer 消费价格更新队列并把更新扇出到每个关注该商品的用户。
//
// 它负责：
//  1. 从队列弹出价格更新并交给 worker 池处理
//  2. 对每个关注者刷新追踪价格与提醒触发状态
//  3. 给新触发的提醒发送邮件通知
//  4. 定期捞回处理超时的消息
type Consumer struct {
	feed     *Client
	engine   *pricewatch.Engine
	pool     *queue.Queue
	notifier notify.Notifier
	emails   UserEmails
	logger   *slog.Logger

	popTimeout    time.Duration
	rescueEvery   time.Duration
	rescueTimeout time.Duration
}

// ConsumerOptions 消费者的可调参数，零值字段取默认值。
type ConsumerOptions struct {
	PopTimeout    time.Duration // 单次 BRPopLPush 的阻塞时长，默认 5s
	RescueEvery   time.Duration // rescue 扫描间隔，默认 1min
	RescueTimeout time.Duration // 消息处理超时阈值，默认 5min
}

// NewConsumer 创建价格流消费者。notifier 或 emails 为 nil 时跳过邮件
// 通知；pool 为 nil 时消息在消费循环内同步处理。
func NewConsumer(feed *Client, engine *pricewatch.Engine, pool *queue.Queue, notifier notify.Notifier, emails UserEmails, logger *slog.Logger, opts ConsumerOptions) *Consumer {
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 5 * time.Second
	}
	if opts.RescueEvery <= 0 {
		opts.RescueEvery = time.Minute
	}
	if opts.RescueTimeout <= 0 {
		opts.RescueTimeout = 5 * time.Minute
	}
	return &Consumer{
		feed:          feed,
		engine:        engine,
		pool:          pool,
		notifier:      notifier,
		emails:        emails,
		logger:        logger,
		popTimeout:    opts.PopTimeout,
		rescueEvery:   opts.RescueEvery,
		rescueTimeout: opts.RescueTimeout,
	}
}

// Run 阻塞消费价格更新，直到 ctx 被取消。
func (c *Consumer) Run(ctx context.Context) {
	go c.rescueLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("price feed consumer stopped")
			return
		default:
		}

		update, err := c.feed.PopUpdate(ctx, c.popTimeout)
		if errors.Is(err, ErrNoUpdate) {
			c.observeDepth(ctx)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("pop price update failed", slog.String("error", err.Error()))
			time.Sleep(time.Second)
			continue
		}

		u := update
		enqueued := false
		if c.pool != nil {
			enqueued = c.pool.Enqueue(func(jobCtx context.Context) error {
				return c.process(jobCtx, u)
			})
		}
		if !enqueued {
			// 没有 worker 池或池已满时同步处理，消息不能丢
			if err := c.process(ctx, u); err != nil {
				c.logger.Error("process price update failed",
					slog.String("update_id", u.UpdateID),
					slog.String("error", err.Error()))
			}
		}
	}
}

// process 把一条价格更新扇出到所有关注者并确认消息。
func (c *Consumer) process(ctx context.Context, update *model.PriceUpdate) error {
	watchers, err := c.engine.Watchers(ctx, update.ProductID)
	if err != nil {
		metrics.PriceUpdateThroughput.WithLabelValues("out", "failed").Inc()
		return err
	}

	for _, userID := range watchers {
		if err := c.engine.UpdatePrice(ctx, userID, update.ProductID, update.NewPrice); err != nil {
			c.logger.Error("update tracked price failed",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("product_id", update.ProductID),
				slog.String("error", err.Error()))
			continue
		}

		alert, newlyTriggered, err := c.engine.RefreshAlertPrice(ctx, userID, update.ProductID, update.NewPrice)
		if err != nil {
			c.logger.Error("refresh alert failed",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("product_id", update.ProductID),
				slog.String("error", err.Error()))
			continue
		}
		if newlyTriggered {
			c.notifyTriggered(ctx, userID, alert)
		}
	}

	if err := c.feed.AckUpdate(ctx, update); err != nil {
		c.logger.Warn("ack price update failed",
			slog.String("update_id", update.UpdateID),
			slog.String("error", err.Error()))
	}

	metrics.PriceUpdateThroughput.WithLabelValues("out", "processed").Inc()
	c.logger.Info("price update processed",
		slog.String("update_id", update.UpdateID),
		slog.String("product_id", update.ProductID),
		slog.Float64("new_price", update.NewPrice),
		slog.Int("watchers", len(watchers)))
	return nil
}

// notifyTriggered 给新触发的提醒发邮件。通知失败只记日志，
// 不影响更新处理本身。
func (c *Consumer) notifyTriggered(ctx context.Context, userID uint, alert model.PriceAlert) {
	if c.notifier == nil || c.emails == nil {
		return
	}
	email, err := c.emails.EmailByID(ctx, userID)
	if err != nil {
		c.logger.Warn("lookup notification email failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()))
		return
	}
	if err := c.notifier.Send(ctx, alert, email); err != nil {
		c.logger.Warn("send alert notification failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("product_id", alert.ProductID),
			slog.String("error", err.Error()))
	}
}

func (c *Consumer) rescueLoop(ctx context.Context) {
	ticker := time.NewTicker(c.rescueEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rescued, err := c.feed.RescueStuckUpdates(ctx, c.rescueTimeout)
			if err != nil {
				c.logger.Warn("rescue stuck updates failed", slog.String("error", err.Error()))
				continue
			}
			if rescued > 0 {
				c.logger.Info("rescued stuck price updates", slog.Int("count", rescued))
			}
		}
	}
}

func (c *Consumer) observeDepth(ctx context.Context) {
	depth, err := c.feed.QueueDepth(ctx)
	if err != nil {
		return
	}
	metrics.FeedQueueDepth.Set(float64(depth))
}
