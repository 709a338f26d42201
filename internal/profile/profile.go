package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"furniq/internal/model"
	"furniq/internal/pkg/kvstore"
	"furniq/internal/pkg/metrics"
)

// TagCount 一个标签及其累计计数。
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Aggregator 维护用户的风格偏好画像与最近一次测试结果。
//
// 画像与测试结果各占一个持久化键；所有读-改-写序列由进程内互斥锁
// 串行化，单写者假设下消除并发覆盖。
type Aggregator struct {
	store  kvstore.Store
	logger *slog.Logger

	mu sync.Mutex
}

// NewAggregator 创建画像聚合器。
func NewAggregator(store kvstore.Store, logger *slog.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger}
}

func profileKey(userID uint) string {
	return fmt.Sprintf("furniq:user:%d:style-profile", userID)
}

func quizResultKey(userID uint) string {
	return fmt.Sprintf("furniq:user:%d:quiz-result", userID)
}

// Observe 记录一次风格/分类观测信号并刷新 lastUpdated。
//
// 画像在首次观测时惰性创建（Uninitialized → Active）。
// 空标签不计数。
func (a *Aggregator) Observe(ctx context.Context, userID uint, style, category string) error {
	if style == "" && category == "" {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.load(ctx, userID)
	if style != "" {
		p.Styles[style]++
	}
	if category != "" {
		p.Categories[category]++
	}
	p.LastUpdated = time.Now().UnixMilli()

	return a.persist(ctx, userID, p)
}

// Profile 返回当前画像；未初始化时返回空画像。
func (a *Aggregator) Profile(ctx context.Context, userID uint) model.StyleProfile {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.load(ctx, userID)
}

// TopStyles 返回计数最高的前 n 个风格，按计数降序。
//
// 同计数按标签字典序决出，保证同一进程内结果稳定可复现。
func (a *Aggregator) TopStyles(ctx context.Context, userID uint, n int) []TagCount {
	p := a.Profile(ctx, userID)
	return topN(p.Styles, n)
}

// TopCategory 返回计数最高的分类；画像为空时 ok 为 false。
func (a *Aggregator) TopCategory(ctx context.Context, userID uint) (string, bool) {
	p := a.Profile(ctx, userID)
	top := topN(p.Categories, 1)
	if len(top) == 0 {
		return "", false
	}
	return top[0].Tag, true
}

// SaveQuizResult 覆盖写入最新的测试结果，并把结果风格计入画像。
func (a *Aggregator) SaveQuizResult(ctx context.Context, userID uint, result model.QuizResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal quiz result: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.Set(ctx, quizResultKey(userID), string(data)); err != nil {
		metrics.StorageWriteFailureTotal.WithLabelValues("quiz-result").Inc()
		return fmt.Errorf("persist quiz result: %w", err)
	}

	// 测试完成同样视为一次风格信号
	p := a.load(ctx, userID)
	if result.Style != "" {
		p.Styles[result.Style]++
	}
	p.LastUpdated = time.Now().UnixMilli()
	return a.persist(ctx, userID, p)
}

// QuizResult 读取最近一次测试结果；不存在时 ok 为 false。
func (a *Aggregator) QuizResult(ctx context.Context, userID uint) (model.QuizResult, bool) {
	raw, err := a.store.Get(ctx, quizResultKey(userID))
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) && a.logger != nil {
			a.logger.Warn("load quiz result failed",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()))
		}
		return model.QuizResult{}, false
	}
	var result model.QuizResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return model.QuizResult{}, false
	}
	return result, true
}

// Reset 同时清除画像与测试结果（Active → Uninitialized）。
//
// 两个键必须一起清掉：第一个删除成功而第二个失败时重试一次，
// 仍失败则整个重置上报为失败——"半重置"绝不能呈现为成功。
func (a *Aggregator) Reset(ctx context.Context, userID uint) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.Remove(ctx, profileKey(userID)); err != nil {
		return fmt.Errorf("reset profile: %w", err)
	}
	if err := a.store.Remove(ctx, quizResultKey(userID)); err != nil {
		if a.logger != nil {
			a.logger.Warn("quiz result removal failed, retrying",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()))
		}
		if err := a.store.Remove(ctx, quizResultKey(userID)); err != nil {
			return fmt.Errorf("reset quiz result: %w", err)
		}
	}
	return nil
}

// load 读取画像。读失败按空画像降级（不向上传播），见存储失败策略。
func (a *Aggregator) load(ctx context.Context, userID uint) model.StyleProfile {
	empty := model.StyleProfile{
		Styles:     map[string]int{},
		Categories: map[string]int{},
	}

	raw, err := a.store.Get(ctx, profileKey(userID))
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) && a.logger != nil {
			a.logger.Warn("load style profile failed, starting empty",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()))
		}
		return empty
	}

	var p model.StyleProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		if a.logger != nil {
			a.logger.Warn("corrupt style profile, starting empty",
				slog.Uint64("user_id", uint64(userID)))
		}
		return empty
	}
	if p.Styles == nil {
		p.Styles = map[string]int{}
	}
	if p.Categories == nil {
		p.Categories = map[string]int{}
	}
	return p
}

// persist 写回画像。写失败必须让调用方感知，不得假装成功。
func (a *Aggregator) persist(ctx context.Context, userID uint, p model.StyleProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal style profile: %w", err)
	}
	if err := a.store.Set(ctx, profileKey(userID), string(data)); err != nil {
		metrics.StorageWriteFailureTotal.WithLabelValues("style-profile").Inc()
		return fmt.Errorf("persist style profile: %w", err)
	}
	return nil
}

func topN(counts map[string]int, n int) []TagCount {
	if n <= 0 || len(counts) == 0 {
		return []TagCount{}
	}
	out := make([]TagCount, 0, len(counts))
	for tag, count := range counts {
		out = append(out, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}
