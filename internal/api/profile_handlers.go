package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"furniq/internal/model"
	"furniq/internal/pkg/metrics"
	"furniq/internal/quiz"

	"github.com/gin-gonic/gin"
)

// handleQuizQuestions 返回风格测试题目。
func (s *Server) handleQuizQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"questions": quiz.Questions()})
}

type quizSubmitRequest struct {
	Answers []model.QuizAnswer `json:"answers" binding:"required"`
}

// handleQuizSubmit 根据作答归类风格，持久化结果并计入画像。
func (s *Server) handleQuizSubmit(c *gin.Context) {
	var req quizSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := getUserID(c)

	style := quiz.Classify(req.Answers)
	result := model.QuizResult{
		Style:     style,
		Answers:   req.Answers,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.profiles.SaveQuizResult(c.Request.Context(), userID, result); err != nil {
		s.logger.Error("save quiz result failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save quiz result failed"})
		return
	}

	metrics.QuizCompletedTotal.Inc()
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// handleQuizResult 返回最近一次测试结果。
func (s *Server) handleQuizResult(c *gin.Context) {
	result, ok := s.profiles.QuizResult(c.Request.Context(), getUserID(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no quiz result"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// handleGetProfile 返回完整的风格画像。
func (s *Server) handleGetProfile(c *gin.Context) {
	p := s.profiles.Profile(c.Request.Context(), getUserID(c))
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

// handleTopStyles 返回按累计次数排序的偏好风格，附带主分类。
func (s *Server) handleTopStyles(c *gin.Context) {
	n := parseQueryInt(c, "n", 3)
	ctx := c.Request.Context()
	userID := getUserID(c)

	resp := gin.H{"styles": s.profiles.TopStyles(ctx, userID, n)}
	if cat, ok := s.profiles.TopCategory(ctx, userID); ok {
		resp["top_category"] = cat
	}
	c.JSON(http.StatusOK, resp)
}

type observeRequest struct {
	ItemID   string `json:"item_id"`
	Style    string `json:"style"`
	Category string `json:"category"`
}

// handleObserve 记录一次浏览/交互信号。
//
// 给定 item_id 时以目录条目的标签为准；窗口内的重复信号被去重。
func (s *Server) handleObserve(c *gin.Context) {
	var req observeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	style, category := req.Style, req.Category
	if req.ItemID != "" {
		item, ok := s.catalog.ByID(req.ItemID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}
		style, category = item.Style, item.Category
	}
	if style == "" && category == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to observe"})
		return
	}

	s.observeSignal(c.Request.Context(), getUserID(c), style, category)
	c.JSON(http.StatusOK, gin.H{"message": "observed"})
}

// observeSignal 在去重窗口之外将信号计入画像。去重检查失败时放行计数。
func (s *Server) observeSignal(ctx context.Context, userID uint, style, category string) {
	if style == "" && category == "" {
		return
	}
	dup, err := s.deduper.IsDuplicate(ctx, userID, style, category)
	if err != nil {
		s.logger.Warn("dedup check failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()))
	}
	if dup {
		metrics.ObservationDedupedTotal.Inc()
		return
	}
	if err := s.profiles.Observe(ctx, userID, style, category); err != nil {
		s.logger.Warn("observe signal failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()))
	}
}

// handleResetProfile 清空画像与测试结果。
func (s *Server) handleResetProfile(c *gin.Context) {
	userID := getUserID(c)
	if err := s.profiles.Reset(c.Request.Context(), userID); err != nil {
		s.logger.Error("reset profile failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset profile failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "profile reset"})
}
