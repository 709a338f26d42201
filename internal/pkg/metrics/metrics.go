package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 指标在包加载时创建，InitMetrics 负责注册到默认 Registry。
// 各包因此可以在未注册的情况下安全打点（测试场景）。
var (
	// PriceUpdateThroughput 价格更新消息吞吐量（方向 in/out，状态 pushed/skipped/applied/failed）。
	PriceUpdateThroughput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "furniq",
		Name:      "price_update_throughput_total",
		Help:      "Price update messages by direction and status.",
	}, []string{"direction", "status"})

	// AlertTriggeredTotal 被触发的降价提醒总数。
	AlertTriggeredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "furniq",
		Name:      "alert_triggered_total",
		Help:      "Price alerts that reached their target price.",
	})

	// QuizCompletedTotal 完成的风格测试总数。
	QuizCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "furniq",
		Name:      "quiz_completed_total",
		Help:      "Completed style quizzes.",
	})

	// ObservationDedupedTotal 被去重窗口吸收的风格观测次数。
	ObservationDedupedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "furniq",
		Name:      "observation_deduped_total",
		Help:      "Style observations suppressed by the dedup window.",
	})

	// StorageWriteFailureTotal 持久化写入失败次数（按集合区分）。
	StorageWriteFailureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "furniq",
		Name:      "storage_write_failure_total",
		Help:      "Durable store write failures by collection.",
	}, []string{"collection"})

	// RateLimitWaitDuration 限流等待时长分布。
	RateLimitWaitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "furniq",
		Name:      "ratelimit_wait_seconds",
		Help:      "Time spent waiting for a rate limit token.",
		Buckets:   prometheus.DefBuckets,
	})

	// RateLimitTimeoutTotal 限流等待超时次数。
	RateLimitTimeoutTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "furniq",
		Name:      "ratelimit_timeout_total",
		Help:      "Rate limit waits aborted by context cancellation.",
	})

	// FeedQueueDepth 价格源队列当前深度。
	FeedQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "furniq",
		Name:      "feed_queue_depth",
		Help:      "Pending messages in the price feed queue.",
	})

	// WorkerPoolSize 配置的 worker 池大小。
	WorkerPoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "furniq",
		Name:      "worker_pool_size",
		Help:      "Configured price feed worker pool size.",
	})

	registerOnce sync.Once
)

// InitMetrics 将所有指标注册到默认 Registry 并记录 worker 池大小。
//
// 多次调用只注册一次。
func InitMetrics(workers int) {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			PriceUpdateThroughput,
			AlertTriggeredTotal,
			QuizCompletedTotal,
			ObservationDedupedTotal,
			StorageWriteFailureTotal,
			RateLimitWaitDuration,
			RateLimitTimeoutTotal,
			FeedQueueDepth,
			WorkerPoolSize,
		)
	})

	if workers > 0 {
		WorkerPoolSize.Set(float64(workers))
	}
}
