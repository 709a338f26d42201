package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"furniq/internal/api/auth"
	"furniq/internal/api/middleware"
	"furniq/internal/budget"
	"furniq/internal/catalog"
	"furniq/internal/config"
	"furniq/internal/favorites"
	"furniq/internal/model"
	"furniq/internal/pkg/dedup"
	"furniq/internal/pkg/kvstore"
	"furniq/internal/pkg/metrics"
	"furniq/internal/pkg/notify"
	"furniq/internal/pkg/ratelimit"
	"furniq/internal/pricewatch"
	"furniq/internal/profile"
	"furniq/internal/search"
	"furniq/internal/vision"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Deduper 抽象观测信号去重，便于在测试中替换。
type Deduper interface {
	IsDuplicate(ctx context.Context, userID uint, style, category string) (bool, error)
}

// Server 组装 HTTP 服务。
//
// 它负责：
// 1. 初始化 MySQL、Redis 与各领域服务
// 2. 注册路由与中间件
// 3. 暴露 /metrics 与 /healthz
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	db  *gorm.DB
	rdb *redis.Client

	router *gin.Engine
	auth   *auth.Handler

	catalog   *catalog.Repository
	budgets   *budget.Service
	profiles  *profile.Aggregator
	watch     *pricewatch.Engine
	favorites favorites.Store
	analyzer  vision.Analyzer
	searcher  search.Searcher
	deduper   Deduper
}

// NewServer 创建并初始化 Server。
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Favorite{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	store, err := kvstore.NewRedisStore(rdb)
	if err != nil {
		return nil, fmt.Errorf("init kv store: %w", err)
	}

	notifier := notify.NewEmailNotifier(&cfg.Email, logger)

	visionLimiter := ratelimit.NewRedisRateLimiter(rdb, logger, "furniq:ratelimit:vision",
		cfg.App.RateLimit, cfg.App.RateBurst)

	var analyzer vision.Analyzer
	if cfg.Vision.CredentialsFile != "" {
		analyzer, err = vision.NewGCPAnalyzer(context.Background(), cfg.Vision.CredentialsFile, visionLimiter, logger)
		if err != nil {
			return nil, fmt.Errorf("init vision analyzer: %w", err)
		}
	} else {
		logger.Warn("vision credentials not configured, using static analyzer")
		analyzer = vision.NewStaticAnalyzer()
	}

	repo := catalog.Default()

	var searcher search.Searcher
	if cfg.Search.BaseURL != "" {
		searchLimiter := ratelimit.NewRedisRateLimiter(rdb, logger, "furniq:ratelimit:search",
			cfg.App.RateLimit, cfg.App.RateBurst)
		searcher = search.NewHTTPSearcher(cfg.Search.BaseURL, cfg.Search.APIKey,
			cfg.Search.Timeout, searchLimiter, logger)
	} else {
		logger.Warn("search provider not configured, falling back to catalog search")
		searcher = search.NewCatalogSearcher(repo)
	}

	metrics.InitMetrics(cfg.App.WorkerPoolSize)

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		rdb:       rdb,
		auth:      auth.NewHandler(db, cfg.Security.JWTSecret, cfg.Security.InviteCode, notifier, logger),
		catalog:   repo,
		budgets:   budget.NewService(store, logger),
		profiles:  profile.NewAggregator(store, logger),
		watch:     pricewatch.NewEngine(store, rdb, logger),
		favorites: favorites.NewGormStore(db),
		analyzer:  analyzer,
		searcher:  searcher,
		deduper:   dedup.NewDeduplicator(rdb, time.Duration(cfg.App.DedupWindow)*time.Second),
	}

	if err := s.seedDemoData(); err != nil {
		logger.Warn("seed demo data failed", slog.String("error", err.Error()))
	}

	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestLogger(logger))
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	s.router.POST("/api/register", s.auth.Register)
	s.router.POST("/api/login", s.auth.Login)
	s.router.POST("/api/login/guest", s.auth.GuestLogin)
	s.router.POST("/api/verify", s.auth.VerifyEmail)
	s.router.POST("/api/resend-code", s.auth.ResendCode)

	authed := s.router.Group("/api")
	authed.Use(middleware.AuthMiddleware(s.cfg.Security.JWTSecret))
	authed.Use(middleware.GuestActivityMiddleware(s.rdb, s.cfg.App.GuestIdleTimeout))
	{
		authed.POST("/logout", s.auth.Logout)
		authed.DELETE("/account", s.handleDeleteAccount)

		authed.GET("/items", s.handleListItems)
		authed.GET("/items/:id", s.handleGetItem)
		authed.GET("/items/:id/similar", s.handleSimilarItems)

		authed.GET("/quiz/questions", s.handleQuizQuestions)
		authed.POST("/quiz/submit", s.handleQuizSubmit)
		authed.GET("/quiz/result", s.handleQuizResult)

		authed.GET("/profile", s.handleGetProfile)
		authed.GET("/profile/top-styles", s.handleTopStyles)
		authed.POST("/profile/observe", s.handleObserve)
		authed.DELETE("/profile", s.handleResetProfile)

		authed.GET("/tracked", s.handleTrackedProducts)
		authed.GET("/tracked/drops", s.handlePriceDrops)
		authed.POST("/tracked/:id", s.handleTrack)
		authed.DELETE("/tracked/:id", s.handleUntrack)

		authed.GET("/alerts", s.handleListAlerts)
		authed.POST("/alerts", s.handleCreateAlert)
		authed.DELETE("/alerts/:id", s.handleDeleteAlert)

		authed.GET("/budget", s.handleGetBudget)
		authed.PUT("/budget", s.handleSetBudget)

		authed.GET("/favorites", s.handleListFavorites)
		authed.POST("/favorites/:id", s.handleAddFavorite)
		authed.DELETE("/favorites/:id", s.handleRemoveFavorite)

		authed.POST("/analyze", s.handleAnalyze)
	}
}

// handleHealthz 检查 MySQL 与 Redis 连通性。
func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleDeleteAccount 注销账号：删除用户及其收藏。游客账号不可注销。
func (s *Server) handleDeleteAccount(c *gin.Context) {
	if getUserRole(c) == "guest" {
		c.JSON(http.StatusForbidden, gin.H{"error": "游客账号不允许注销"})
		return
	}
	userID := getUserID(c)

	err := s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.Favorite{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.User{}, userID).Error
	})
	if err != nil {
		s.logger.Error("delete account failed", slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete account failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}

// Run 启动 HTTP 服务。
func (s *Server) Run() error {
	s.logger.Info("http server starting", slog.String("addr", s.cfg.App.HTTPAddr))
	return s.router.Run(s.cfg.App.HTTPAddr)
}

// Router 返回内部的 gin 引擎（测试用）。
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Close 释放底层连接。
func (s *Server) Close() error {
	if s.analyzer != nil {
		_ = s.analyzer.Close()
	}
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			return sqlDB.Close()
		}
	}
	return nil
}

func getUserID(c *gin.Context) uint {
	return uint(c.GetInt("userID"))
}

func getUserRole(c *gin.Context) string {
	if v, ok := c.Get("role"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "member"
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func parseQueryFloat(c *gin.Context, key string) (float64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
