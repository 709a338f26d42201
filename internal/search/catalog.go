package search

import (
	"context"
	"strings"

	"furniq/internal/catalog"
	"furniq/internal/model"
)

// CatalogSearcher 是没有配置外部搜索服务时的后备实现，
// 在内置目录上做子串匹配。
type CatalogSearcher struct {
	repo *catalog.Repository
}

// NewCatalogSearcher 创建目录后备搜索器。
func NewCatalogSearcher(repo *catalog.Repository) *CatalogSearcher {
	return &CatalogSearcher{repo: repo}
}

// Search 对目录做大小写不敏感的子串匹配。查询被拆成词，
// 命中任意一个词的商品入选。
func (c *CatalogSearcher) Search(_ context.Context, query string, limit int) (model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.SearchResult{}, ErrEmptyQuery
	}

	words := strings.Fields(strings.ToLower(query))
	var items []model.FurnitureItem
	for _, item := range c.repo.Items() {
		haystack := strings.ToLower(item.Name + " " + item.Style + " " + item.Category + " " + item.Shop)
		for _, w := range words {
			if strings.Contains(haystack, w) {
				items = append(items, item)
				break
			}
		}
		if limit > 0 && len(items) >= limit {
			break
		}
	}

	return model.SearchResult{Items: items, Query: query}, nil
}
