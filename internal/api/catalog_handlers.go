package api

import (
	"errors"
	"log/slog"
	"net/http"

	"furniq/internal/budget"
	"furniq/internal/catalog"
	"furniq/internal/model"
	"furniq/internal/search"

	"github.com/gin-gonic/gin"
)

// handleListItems 返回目录条目，支持风格/分类/价格区间过滤。
//
// 默认叠加用户预算上限（all=true 时跳过预算过滤）。
func (s *Server) handleListItems(c *gin.Context) {
	opts := catalog.FilterOptions{
		Style:    c.Query("style"),
		Category: c.Query("category"),
	}
	if v, ok := parseQueryFloat(c, "min_price"); ok {
		opts.MinPrice = v
	}
	if v, ok := parseQueryFloat(c, "max_price"); ok {
		opts.MaxPrice = v
	}

	items := s.catalog.Filter(opts)

	state := s.budgets.Get(c.Request.Context(), getUserID(c))
	if c.Query("all") != "true" {
		filtered := make([]model.FurnitureItem, 0, len(items))
		for _, it := range items {
			if budget.WithinState(it.Price, state) {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"total":  len(items),
		"budget": state,
	})
}

// handleGetItem 返回单个条目详情，附带相似推荐与用户关联状态。
func (s *Server) handleGetItem(c *gin.Context) {
	item, ok := s.catalog.ByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	userID := getUserID(c)
	ctx := c.Request.Context()

	resp := gin.H{
		"item":    item,
		"similar": s.catalog.SimilarTo(item, s.cfg.App.SimilarLimit),
	}

	tracked := false
	for _, t := range s.watch.TrackedProducts(ctx, userID) {
		if t.ID == item.ID {
			tracked = true
			break
		}
	}
	resp["tracked"] = tracked

	if alert, ok := s.watch.AlertForProduct(ctx, userID, item.ID); ok {
		resp["alert"] = alert
	}

	if fav, err := s.favorites.IsFavorite(ctx, userID, item.ID); err == nil {
		resp["favorite"] = fav
	}

	c.JSON(http.StatusOK, resp)
}

// handleSimilarItems 返回与指定条目相似的目录条目。
func (s *Server) handleSimilarItems(c *gin.Context) {
	item, ok := s.catalog.ByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	limit := parseQueryInt(c, "limit", s.cfg.App.SimilarLimit)
	c.JSON(http.StatusOK, gin.H{"items": s.catalog.SimilarTo(item, limit)})
}

type analyzeRequest struct {
	ImageURL string `json:"image_url" binding:"required,url"`
}

// handleAnalyze 分析一张家具照片并搜索相似商品。
//
// 流程：视觉模型识别分类/风格 → 识别结果计入用户画像 →
// 用生成的搜索词调购物搜索。视觉或搜索失败都按整体失败返回。
func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	userID := getUserID(c)

	analysis, err := s.analyzer.Analyze(ctx, req.ImageURL)
	if err != nil {
		s.logger.Warn("image analysis failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, gin.H{"error": "image analysis failed"})
		return
	}

	s.observeSignal(ctx, userID, analysis.Style, analysis.Category)

	var result model.SearchResult
	if len(analysis.SearchTerms) > 0 {
		limit := parseQueryInt(c, "limit", 10)
		result, err = s.searcher.Search(ctx, analysis.SearchTerms[0], limit)
		if err != nil && !errors.Is(err, search.ErrEmptyQuery) {
			s.logger.Warn("shopping search failed",
				slog.String("query", analysis.SearchTerms[0]),
				slog.String("error", err.Error()))
			c.JSON(http.StatusBadGateway, gin.H{"error": "shopping search failed"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"analysis": analysis,
		"results":  result.Items,
		"query":    result.Query,
	})
}
