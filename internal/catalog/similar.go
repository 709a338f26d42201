package catalog

import (
	"math"
	"sort"

	"furniq/internal/model"
)

// 相似度加权规则，各项独立累加。
const (
	scoreSameCategory = 3
	scoreSameStyle    = 2
	scorePriceBand    = 2
	scoreSameShop     = 1

	// priceBandRatio 价格相对差阈值：|p-ref|/ref <= 0.3 记为相近。
	priceBandRatio = 0.3
)

// SimilarTo 返回与 item 最相似的至多 limit 件商品，按得分降序。
//
// 得分为非负整数；同分条目保持目录顺序（稳定排序是正确性要求，
// 不是外观问题——同分结果必须跨运行确定）。这是 best-effort top-K：
// 高分池不足时用零分条目补齐，limit 超过候选数时全部返回。
// 结果不包含 item 本身。
func (r *Repository) SimilarTo(item model.FurnitureItem, limit int) []model.FurnitureItem {
	if limit <= 0 {
		return []model.FurnitureItem{}
	}

	type scored struct {
		item  model.FurnitureItem
		score int
	}

	candidates := make([]scored, 0, len(r.items))
	for _, c := range r.items {
		if c.ID == item.ID {
			continue
		}
		candidates = append(candidates, scored{item: c, score: similarityScore(item, c)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	out := make([]model.FurnitureItem, 0, limit)
	for _, c := range candidates[:limit] {
		out = append(out, c.item)
	}
	return out
}

// similarityScore 计算候选商品相对参考商品的加权相似度。
func similarityScore(ref, candidate model.FurnitureItem) int {
	score := 0
	if ref.Category != "" && candidate.Category == ref.Category {
		score += scoreSameCategory
	}
	if ref.Style != "" && candidate.Style == ref.Style {
		score += scoreSameStyle
	}
	// 价格项只在参考价 > 0 时参与评估
	if ref.Price > 0 {
		if math.Abs(candidate.Price-ref.Price)/ref.Price <= priceBandRatio {
			score += scorePriceBand
		}
	}
	if ref.Shop != "" && candidate.Shop == ref.Shop {
		score += scoreSameShop
	}
	return score
}
