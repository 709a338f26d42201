package budget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"furniq/internal/model"
	"furniq/internal/pkg/kvstore"
)

// ErrInvalidBudget 表示预算不是有限数值。
var ErrInvalidBudget = errors.New("budget must be a finite number")

// WithinBudget 判断价格是否落在预算内。
//
// maxBudget <= 0 表示不设限，总是通过。纯函数，不会失败。
func WithinBudget(price, maxBudget float64) bool {
	if maxBudget <= 0 {
		return true
	}
	return price <= maxBudget
}

// WithinState 基于持久化的 BudgetState 判断价格；nil 上限视为不设限。
func WithinState(price float64, state model.BudgetState) bool {
	if state.MaxBudget == nil {
		return true
	}
	return WithinBudget(price, *state.MaxBudget)
}

// Service 持久化全局预算上限（单实例，后写覆盖）。
type Service struct {
	store  kvstore.Store
	logger *slog.Logger
}

// NewService 创建预算服务。
func NewService(store kvstore.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func budgetKey(userID uint) string {
	return fmt.Sprintf("furniq:user:%d:budget", userID)
}

// Get 读取用户预算。读失败按"未设置"降级，不向上传播。
func (s *Service) Get(ctx context.Context, userID uint) model.BudgetState {
	raw, err := s.store.Get(ctx, budgetKey(userID))
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) && s.logger != nil {
			s.logger.Warn("load budget failed, treating as unset",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()))
		}
		return model.BudgetState{}
	}

	var state model.BudgetState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		if s.logger != nil {
			s.logger.Warn("corrupt budget state, treating as unset",
				slog.Uint64("user_id", uint64(userID)))
		}
		return model.BudgetState{}
	}
	return state
}

// Set 写入用户预算。max 为 nil 表示清除限额。
//
// 校验先于写入：非有限数值直接拒绝，不触碰持久化状态。
func (s *Service) Set(ctx context.Context, userID uint, max *float64) error {
	if max != nil && (math.IsNaN(*max) || math.IsInf(*max, 0)) {
		return ErrInvalidBudget
	}

	data, err := json.Marshal(model.BudgetState{MaxBudget: max})
	if err != nil {
		return fmt.Errorf("marshal budget: %w", err)
	}
	if err := s.store.Set(ctx, budgetKey(userID), string(data)); err != nil {
		return fmt.Errorf("persist budget: %w", err)
	}
	return nil
}
