package api

import (
	"errors"
	"log/slog"
	"net/http"

	"furniq/internal/budget"
	"furniq/internal/pricewatch"

	"github.com/gin-gonic/gin"
)

// handleTrackedProducts 返回用户关注的全部商品。
func (s *Server) handleTrackedProducts(c *gin.Context) {
	products := s.watch.TrackedProducts(c.Request.Context(), getUserID(c))
	c.JSON(http.StatusOK, gin.H{"products": products, "total": len(products)})
}

// handlePriceDrops 返回当前价低于关注时价格的商品。
func (s *Server) handlePriceDrops(c *gin.Context) {
	drops := s.watch.PriceDrops(c.Request.Context(), getUserID(c))
	c.JSON(http.StatusOK, gin.H{"products": drops, "total": len(drops)})
}

// handleTrack 开始关注一个目录条目的价格。重复关注是 no-op。
func (s *Server) handleTrack(c *gin.Context) {
	item, ok := s.catalog.ByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	userID := getUserID(c)
	if err := s.watch.Track(c.Request.Context(), userID, item); err != nil {
		s.logger.Error("track product failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("product_id", item.ID),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "track product failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "tracking"})
}

// handleUntrack 取消关注。未关注时同样返回成功。
func (s *Server) handleUntrack(c *gin.Context) {
	userID := getUserID(c)
	if err := s.watch.Untrack(c.Request.Context(), userID, c.Param("id")); err != nil {
		s.logger.Error("untrack product failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("product_id", c.Param("id")),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "untrack product failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "untracked"})
}

// handleListAlerts 返回用户的全部降价提醒（triggered=true 时只返回已触发的）。
func (s *Server) handleListAlerts(c *gin.Context) {
	ctx := c.Request.Context()
	userID := getUserID(c)

	if c.Query("triggered") == "true" {
		alerts := s.watch.TriggeredAlerts(ctx, userID)
		c.JSON(http.StatusOK, gin.H{"alerts": alerts, "total": len(alerts)})
		return
	}
	alerts := s.watch.Alerts(ctx, userID)
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "total": len(alerts)})
}

type createAlertRequest struct {
	ItemID      string  `json:"item_id" binding:"required"`
	TargetPrice float64 `json:"target_price" binding:"required"`
}

// handleCreateAlert 为目录条目设置目标价提醒。同一商品重复设置按更新处理。
func (s *Server) handleCreateAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, ok := s.catalog.ByID(req.ItemID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	userID := getUserID(c)

	alert, err := s.watch.AddAlert(c.Request.Context(), userID, item, req.TargetPrice)
	if err != nil {
		if errors.Is(err, pricewatch.ErrInvalidTarget) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "target price must be positive"})
			return
		}
		s.logger.Error("create alert failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("product_id", item.ID),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create alert failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert": alert})
}

// handleDeleteAlert 删除一条提醒。不存在时同样返回成功。
func (s *Server) handleDeleteAlert(c *gin.Context) {
	userID := getUserID(c)
	if err := s.watch.DeleteAlert(c.Request.Context(), userID, c.Param("id")); err != nil {
		s.logger.Error("delete alert failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("alert_id", c.Param("id")),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete alert failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "alert deleted"})
}

// handleGetBudget 返回预算上限。
func (s *Server) handleGetBudget(c *gin.Context) {
	state := s.budgets.Get(c.Request.Context(), getUserID(c))
	c.JSON(http.StatusOK, gin.H{"budget": state})
}

type setBudgetRequest struct {
	MaxBudget *float64 `json:"max_budget"`
}

// handleSetBudget 设置或清除预算上限。null 表示不设限。
func (s *Server) handleSetBudget(c *gin.Context) {
	var req setBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := getUserID(c)

	if err := s.budgets.Set(c.Request.Context(), userID, req.MaxBudget); err != nil {
		if errors.Is(err, budget.ErrInvalidBudget) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "budget must be a finite number"})
			return
		}
		s.logger.Error("set budget failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "set budget failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget": s.budgets.Get(c.Request.Context(), userID)})
}

// handleListFavorites 返回收藏列表（按收藏时间倒序）。
func (s *Server) handleListFavorites(c *gin.Context) {
	userID := getUserID(c)
	favs, err := s.favorites.List(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("list favorites failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list favorites failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorites": favs, "total": len(favs)})
}

// handleAddFavorite 收藏一个目录条目并计入画像信号。重复收藏是 no-op。
func (s *Server) handleAddFavorite(c *gin.Context) {
	item, ok := s.catalog.ByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	userID := getUserID(c)
	ctx := c.Request.Context()

	if err := s.favorites.Add(ctx, userID, item); err != nil {
		s.logger.Error("add favorite failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("item_id", item.ID),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "add favorite failed"})
		return
	}

	s.observeSignal(ctx, userID, item.Style, item.Category)
	c.JSON(http.StatusOK, gin.H{"message": "favorited"})
}

// handleRemoveFavorite 取消收藏。不存在时同样返回成功。
func (s *Server) handleRemoveFavorite(c *gin.Context) {
	userID := getUserID(c)
	if err := s.favorites.Remove(c.Request.Context(), userID, c.Param("id")); err != nil {
		s.logger.Error("remove favorite failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("item_id", c.Param("id")),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "remove favorite failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unfavorited"})
}
