package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"furniq/internal/model"
	"furniq/internal/pkg/ratelimit"
)

// ErrEmptyQuery 表示搜索词为空。
var ErrEmptyQuery = errors.New("empty search query")

// Searcher 按自由文本查询购物平台上的家具商品。
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (model.SearchResult, error)
}

// HTTPSearcher 调用外部购物搜索服务的 JSON 接口。
//
// 服务以 GET /search?q=<query>&limit=<n> 返回
// {"items": [...], "query": "..."} 结构的 JSON。
type HTTPSearcher struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	limiter    *ratelimit.RateLimiter
	logger     *slog.Logger
	maxRetries int
}

// NewHTTPSearcher 创建搜索客户端。limiter 可以为 nil。
func NewHTTPSearcher(baseURL, apiKey string, timeout time.Duration, limiter *ratelimit.RateLimiter, logger *slog.Logger) *HTTPSearcher {
	return &HTTPSearcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		client:     newHTTPClient(timeout),
		limiter:    limiter,
		logger:     logger,
		maxRetries: 2,
	}
}

// Search 执行一次搜索。limit <= 0 时由服务端决定返回数量。
func (s *HTTPSearcher) Search(ctx context.Context, query string, limit int) (model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.SearchResult{}, ErrEmptyQuery
	}

	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			return model.SearchResult{}, fmt.Errorf("search rate limit: %w", err)
		}
	}

	endpoint := fmt.Sprintf("%s/search?q=%s", s.baseURL, url.QueryEscape(query))
	if limit > 0 {
		endpoint += fmt.Sprintf("&limit=%d", limit)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.SearchResult{}, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := doWithRetry(s.client, req, s.maxRetries)
	if err != nil {
		return model.SearchResult{}, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.SearchResult{}, fmt.Errorf("search status %d", resp.StatusCode)
	}

	body, err := readBody(resp)
	if err != nil {
		return model.SearchResult{}, fmt.Errorf("read search response: %w", err)
	}

	var result model.SearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return model.SearchResult{}, fmt.Errorf("decode search response: %w", err)
	}
	if result.Query == "" {
		result.Query = query
	}

	s.logger.Info("shopping search completed",
		slog.String("query", query),
		slog.Int("items", len(result.Items)))
	return result, nil
}
