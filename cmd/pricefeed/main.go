package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"furniq/internal/config"
	"furniq/internal/pkg/kvstore"
	"furniq/internal/pkg/logger"
	"furniq/internal/pkg/metrics"
	"furniq/internal/pkg/notify"
	"furniq/internal/pkg/queue"
	"furniq/internal/pricefeed"
	"furniq/internal/pricewatch"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// main 是价格流消费服务的入口函数。
//
// 它负责：
// 1. 加载配置并初始化日志
// 2. 连接 Redis 与 MySQL
// 3. 启动 worker 池与价格流消费循环
// 4. 暴露 Metrics 并优雅关闭
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger := logger.NewDefault(cfg.App.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		appLogger.Error("ping redis failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cancel()

	store, err := kvstore.NewRedisStore(rdb)
	if err != nil {
		appLogger.Error("init kv store failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	feed, err := pricefeed.NewClientWithRedis(rdb)
	if err != nil {
		appLogger.Error("init price feed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		appLogger.Error("open mysql failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	metrics.InitMetrics(cfg.App.WorkerPoolSize)

	engine := pricewatch.NewEngine(store, rdb, appLogger)
	pool := queue.NewQueue(appLogger, cfg.App.WorkerPoolSize, cfg.App.QueueCapacity)
	pool.Start(ctx)

	notifier := notify.NewEmailNotifier(&cfg.Email, appLogger)
	consumer := pricefeed.NewConsumer(feed, engine, pool, notifier,
		pricefeed.NewGormUserEmails(db), appLogger, pricefeed.ConsumerOptions{
			PopTimeout:    cfg.App.FeedPopTimeout,
			RescueEvery:   cfg.App.FeedRescueEvery,
			RescueTimeout: cfg.App.FeedStuckTimeout,
		})

	metricsAddr := ":2112"
	if v := os.Getenv("PRICEFEED_METRICS_ADDR"); v != "" {
		metricsAddr = v
	}
	metricsServer := &http.Server{
		Addr:    metricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		appLogger.Info("metrics server listening", slog.String("addr", metricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()

	appLogger.Info("price feed consumer starting",
		slog.Int("workers", cfg.App.WorkerPoolSize),
		slog.Int("queue_capacity", cfg.App.QueueCapacity))
	consumer.Run(ctx)

	appLogger.Info("shutting down price feed consumer...")
	if err := pool.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Warn("worker pool shutdown timed out", slog.String("error", err.Error()))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("metrics shutdown failed", slog.String("error", err.Error()))
	}
	if err := rdb.Close(); err != nil {
		appLogger.Error("close redis failed", slog.String("error", err.Error()))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
