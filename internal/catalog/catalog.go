package catalog

import (
	"fmt"

	"furniq/internal/model"
)

// Repository 持有静态的家具目录并提供过滤与查找。
//
// 目录是只读参考数据：启动时装载一次，之后不再变更，
// 因此所有方法都无锁且不会挂起。
type Repository struct {
	items []model.FurnitureItem
	index map[string]int
}

// FilterOptions 目录过滤条件。零值字段表示不参与过滤：
// Style/Category 为空串、MinPrice/MaxPrice 为 0 均视为未设置。
type FilterOptions struct {
	Style    string
	Category string
	MinPrice float64
	MaxPrice float64
}

// NewRepository 从给定条目构建目录，校验 ID 全局唯一。
func NewRepository(items []model.FurnitureItem) (*Repository, error) {
	index := make(map[string]int, len(items))
	for i, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("catalog item %d has empty id", i)
		}
		if _, exists := index[it.ID]; exists {
			return nil, fmt.Errorf("duplicate catalog item id %q", it.ID)
		}
		index[it.ID] = i
	}
	return &Repository{items: items, index: index}, nil
}

// Default 返回内置示例目录。
func Default() *Repository {
	repo, err := NewRepository(sampleItems())
	if err != nil {
		// 内置数据错误属于编程错误，启动即失败
		panic(err)
	}
	return repo
}

// Items 返回目录全部条目（按装载顺序）。
func (r *Repository) Items() []model.FurnitureItem {
	out := make([]model.FurnitureItem, len(r.items))
	copy(out, r.items)
	return out
}

// Len 返回目录条目数。
func (r *Repository) Len() int {
	return len(r.items)
}

// ByID 按 ID 查找条目。不存在不是错误，通过 ok 返回。
func (r *Repository) ByID(id string) (model.FurnitureItem, bool) {
	i, ok := r.index[id]
	if !ok {
		return model.FurnitureItem{}, false
	}
	return r.items[i], true
}

// Filter 按条件过滤目录。
//
// 纯合取语义：条目必须满足所有给定条件才会保留——
// 风格/分类精确匹配，价格区间为闭区间；未设置的条件被忽略。
// 结果保持目录装载顺序，不做额外排序。
func (r *Repository) Filter(opts FilterOptions) []model.FurnitureItem {
	out := make([]model.FurnitureItem, 0, len(r.items))
	for _, it := range r.items {
		if opts.Style != "" && it.Style != opts.Style {
			continue
		}
		if opts.Category != "" && it.Category != opts.Category {
			continue
		}
		if opts.MinPrice > 0 && it.Price < opts.MinPrice {
			continue
		}
		if opts.MaxPrice > 0 && it.Price > opts.MaxPrice {
			continue
		}
		out = append(out, it)
	}
	return out
}
