package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"furniq/internal/budget"
	"furniq/internal/catalog"
	"furniq/internal/config"
	"furniq/internal/model"
	"furniq/internal/pkg/kvstore"
	"furniq/internal/pricewatch"
	"furniq/internal/profile"
	"furniq/internal/search"
	"furniq/internal/vision"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const testUserID uint = 7

type mockFavorites struct {
	listFunc   func(ctx context.Context, userID uint) ([]model.Favorite, error)
	addFunc    func(ctx context.Context, userID uint, item model.FurnitureItem) error
	removeFunc func(ctx context.Context, userID uint, itemID string) error
	isFavFunc  func(ctx context.Context, userID uint, itemID string) (bool, error)
}

func (m *mockFavorites) List(ctx context.Context, userID uint) ([]model.Favorite, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockFavorites) Add(ctx context.Context, userID uint, item model.FurnitureItem) error {
	if m.addFunc != nil {
		return m.addFunc(ctx, userID, item)
	}
	return nil
}

func (m *mockFavorites) Remove(ctx context.Context, userID uint, itemID string) error {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, userID, itemID)
	}
	return nil
}

func (m *mockFavorites) IsFavorite(ctx context.Context, userID uint, itemID string) (bool, error) {
	if m.isFavFunc != nil {
		return m.isFavFunc(ctx, userID, itemID)
	}
	return false, nil
}

type mockDeduper struct {
	dup bool
	err error
}

func (m *mockDeduper) IsDuplicate(context.Context, uint, string, string) (bool, error) {
	return m.dup, m.err
}

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := kvstore.NewRedisStore(rdb)
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	repo := catalog.Default()
	s := &Server{
		cfg: &config.Config{
			App: config.AppConfig{SimilarLimit: 4},
		},
		logger:    logger,
		catalog:   repo,
		budgets:   budget.NewService(store, logger),
		profiles:  profile.NewAggregator(store, logger),
		watch:     pricewatch.NewEngine(store, rdb, logger),
		favorites: &mockFavorites{},
		analyzer:  vision.NewStaticAnalyzer(),
		searcher:  search.NewCatalogSearcher(repo),
		deduper:   &mockDeduper{},
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int(testUserID))
		c.Set("role", "member")
		c.Next()
	})
	api := r.Group("/api")
	{
		api.GET("/items", s.handleListItems)
		api.GET("/items/:id", s.handleGetItem)
		api.GET("/items/:id/similar", s.handleSimilarItems)
		api.GET("/quiz/questions", s.handleQuizQuestions)
		api.POST("/quiz/submit", s.handleQuizSubmit)
		api.GET("/quiz/result", s.handleQuizResult)
		api.GET("/profile", s.handleGetProfile)
		api.GET("/profile/top-styles", s.handleTopStyles)
		api.POST("/profile/observe", s.handleObserve)
		api.DELETE("/profile", s.handleResetProfile)
		api.GET("/tracked", s.handleTrackedProducts)
		api.GET("/tracked/drops", s.handlePriceDrops)
		api.POST("/tracked/:id", s.handleTrack)
		api.DELETE("/tracked/:id", s.handleUntrack)
		api.GET("/alerts", s.handleListAlerts)
		api.POST("/alerts", s.handleCreateAlert)
		api.DELETE("/alerts/:id", s.handleDeleteAlert)
		api.GET("/budget", s.handleGetBudget)
		api.PUT("/budget", s.handleSetBudget)
		api.GET("/favorites", s.handleListFavorites)
		api.POST("/favorites/:id", s.handleAddFavorite)
		api.DELETE("/favorites/:id", s.handleRemoveFavorite)
		api.POST("/analyze", s.handleAnalyze)
	}
	return s, r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, w.Body.String())
	}
}

func TestListItemsAppliesBudget(t *testing.T) {
	s, r := newTestServer(t)

	max := 100.0
	if err := s.budgets.Set(context.Background(), testUserID, &max); err != nil {
		t.Fatalf("set budget: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/api/items", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Items []model.FurnitureItem `json:"items"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Items) == 0 {
		t.Fatal("expected items within budget")
	}
	for _, it := range resp.Items {
		if it.Price > max {
			t.Fatalf("item %s price %.2f exceeds budget %.2f", it.ID, it.Price, max)
		}
	}

	w = doJSON(t, r, http.MethodGet, "/api/items?all=true", nil)
	var full struct {
		Items []model.FurnitureItem `json:"items"`
	}
	decodeBody(t, w, &full)
	if len(full.Items) <= len(resp.Items) {
		t.Fatalf("all=true should bypass the budget: %d vs %d", len(full.Items), len(resp.Items))
	}
}

func TestListItemsFiltersByStyle(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(t, r, http.MethodGet, "/api/items?style=Industrial&all=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Items []model.FurnitureItem `json:"items"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Items) == 0 {
		t.Fatal("expected Industrial items")
	}
	for _, it := range resp.Items {
		if it.Style != "Industrial" {
			t.Fatalf("item %s has style %q", it.ID, it.Style)
		}
	}
}

func TestGetItemIncludesStatus(t *testing.T) {
	s, r := newTestServer(t)
	ctx := context.Background()

	item, ok := s.catalog.ByID("ikea-ranarp-lampe")
	if !ok {
		t.Fatal("sample item missing from catalog")
	}
	if err := s.watch.Track(ctx, testUserID, item); err != nil {
		t.Fatalf("track: %v", err)
	}
	if _, err := s.watch.AddAlert(ctx, testUserID, item, 25); err != nil {
		t.Fatalf("add alert: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/api/items/ikea-ranarp-lampe", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Item    model.FurnitureItem   `json:"item"`
		Similar []model.FurnitureItem `json:"similar"`
		Tracked bool                  `json:"tracked"`
		Alert   *model.PriceAlert     `json:"alert"`
	}
	decodeBody(t, w, &resp)
	if resp.Item.ID != "ikea-ranarp-lampe" {
		t.Fatalf("item = %q", resp.Item.ID)
	}
	if !resp.Tracked {
		t.Fatal("expected tracked=true")
	}
	if resp.Alert == nil || resp.Alert.TargetPrice != 25 {
		t.Fatalf("alert = %+v", resp.Alert)
	}
	if len(resp.Similar) == 0 {
		t.Fatal("expected similar items")
	}
	for _, sim := range resp.Similar {
		if sim.ID == resp.Item.ID {
			t.Fatal("similar list must not contain the item itself")
		}
	}
}

func TestGetItemNotFound(t *testing.T) {
	_, r := newTestServer(t)
	w := doJSON(t, r, http.MethodGet, "/api/items/no-such-item", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestQuizSubmitPersistsResult(t *testing.T) {
	s, r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/quiz/submit", gin.H{
		"answers": []model.QuizAnswer{
			{QuestionID: 1, SelectedOption: "A"},
			{QuestionID: 2, SelectedOption: "A"},
			{QuestionID: 3, SelectedOption: "B"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", w.Code, w.Body.String())
	}
	var resp struct {
		Result model.QuizResult `json:"result"`
	}
	decodeBody(t, w, &resp)
	if resp.Result.Style == "" {
		t.Fatal("expected classified style")
	}

	got, ok := s.profiles.QuizResult(context.Background(), testUserID)
	if !ok {
		t.Fatal("quiz result not persisted")
	}
	if got.Style != resp.Result.Style {
		t.Fatalf("persisted style %q != returned %q", got.Style, resp.Result.Style)
	}

	w = doJSON(t, r, http.MethodGet, "/api/quiz/result", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("quiz result status = %d", w.Code)
	}
}

func TestQuizResultBeforeSubmit(t *testing.T) {
	_, r := newTestServer(t)
	w := doJSON(t, r, http.MethodGet, "/api/quiz/result", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestObserveCountsIntoProfile(t *testing.T) {
	s, r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/profile/observe", gin.H{
		"item_id": "ikea-ranarp-lampe",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	p := s.profiles.Profile(context.Background(), testUserID)
	if p.Categories["Lampe"] != 1 {
		t.Fatalf("Categories = %v", p.Categories)
	}
}

func TestObserveSuppressedByDedup(t *testing.T) {
	s, r := newTestServer(t)
	s.deduper = &mockDeduper{dup: true}

	w := doJSON(t, r, http.MethodPost, "/api/profile/observe", gin.H{
		"style": "Boho",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	p := s.profiles.Profile(context.Background(), testUserID)
	if len(p.Styles) != 0 {
		t.Fatalf("duplicate signal must not be counted: %v", p.Styles)
	}
}

func TestObserveRejectsEmptySignal(t *testing.T) {
	_, r := newTestServer(t)
	w := doJSON(t, r, http.MethodPost, "/api/profile/observe", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestResetProfileClearsState(t *testing.T) {
	s, r := newTestServer(t)
	ctx := context.Background()

	if err := s.profiles.Observe(ctx, testUserID, "Boho", "Teppich"); err != nil {
		t.Fatalf("observe: %v", err)
	}

	w := doJSON(t, r, http.MethodDelete, "/api/profile", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	p := s.profiles.Profile(ctx, testUserID)
	if len(p.Styles) != 0 || len(p.Categories) != 0 {
		t.Fatalf("profile not reset: %+v", p)
	}
}

func TestTrackAndUntrack(t *testing.T) {
	s, r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/tracked/ikea-ranarp-lampe", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("track status = %d", w.Code)
	}
	if got := s.watch.TrackedProducts(context.Background(), testUserID); len(got) != 1 {
		t.Fatalf("tracked = %d", len(got))
	}

	w = doJSON(t, r, http.MethodDelete, "/api/tracked/ikea-ranarp-lampe", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("untrack status = %d", w.Code)
	}
	if got := s.watch.TrackedProducts(context.Background(), testUserID); len(got) != 0 {
		t.Fatalf("tracked after untrack = %d", len(got))
	}
}

func TestTrackUnknownItem(t *testing.T) {
	_, r := newTestServer(t)
	w := doJSON(t, r, http.MethodPost, "/api/tracked/no-such-item", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCreateAlertValidatesTarget(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/alerts", gin.H{
		"item_id":      "ikea-ranarp-lampe",
		"target_price": -5,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d (body: %s)", w.Code, w.Body.String())
	}
}

func TestAlertLifecycle(t *testing.T) {
	s, r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/alerts", gin.H{
		"item_id":      "ikea-ranarp-lampe",
		"target_price": 25,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d (body: %s)", w.Code, w.Body.String())
	}
	var created struct {
		Alert model.PriceAlert `json:"alert"`
	}
	decodeBody(t, w, &created)
	if created.Alert.ID == "" {
		t.Fatal("expected alert id")
	}

	w = doJSON(t, r, http.MethodGet, "/api/alerts", nil)
	var listed struct {
		Alerts []model.PriceAlert `json:"alerts"`
	}
	decodeBody(t, w, &listed)
	if len(listed.Alerts) != 1 {
		t.Fatalf("alerts = %d", len(listed.Alerts))
	}

	w = doJSON(t, r, http.MethodDelete, "/api/alerts/"+created.Alert.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if got := s.watch.Alerts(context.Background(), testUserID); len(got) != 0 {
		t.Fatalf("alerts after delete = %d", len(got))
	}
}

func TestListAlertsTriggeredOnly(t *testing.T) {
	s, r := newTestServer(t)
	ctx := context.Background()

	lamp, _ := s.catalog.ByID("ikea-ranarp-lampe")
	table, _ := s.catalog.ByID("ikea-lerhamn-tisch")
	// 35 <= 40 触发；249 > 200 未触发
	if _, err := s.watch.AddAlert(ctx, testUserID, lamp, 40); err != nil {
		t.Fatalf("add alert: %v", err)
	}
	if _, err := s.watch.AddAlert(ctx, testUserID, table, 200); err != nil {
		t.Fatalf("add alert: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/api/alerts?triggered=true", nil)
	var resp struct {
		Alerts []model.PriceAlert `json:"alerts"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Alerts) != 1 || resp.Alerts[0].ProductID != lamp.ID {
		t.Fatalf("triggered alerts = %+v", resp.Alerts)
	}
}

func TestBudgetRoundTrip(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(t, r, http.MethodPut, "/api/budget", gin.H{"max_budget": 500})
	if w.Code != http.StatusOK {
		t.Fatalf("set status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/budget", nil)
	var resp struct {
		Budget model.BudgetState `json:"budget"`
	}
	decodeBody(t, w, &resp)
	if resp.Budget.MaxBudget == nil || *resp.Budget.MaxBudget != 500 {
		t.Fatalf("budget = %+v", resp.Budget)
	}

	w = doJSON(t, r, http.MethodPut, "/api/budget", gin.H{"max_budget": nil})
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/budget", nil)
	decodeBody(t, w, &resp)
	if resp.Budget.MaxBudget != nil {
		t.Fatalf("budget after clear = %+v", resp.Budget)
	}
}

func TestAddFavoriteObservesSignal(t *testing.T) {
	s, r := newTestServer(t)

	var addedItem model.FurnitureItem
	s.favorites = &mockFavorites{
		addFunc: func(_ context.Context, userID uint, item model.FurnitureItem) error {
			if userID != testUserID {
				t.Fatalf("userID = %d", userID)
			}
			addedItem = item
			return nil
		},
	}

	w := doJSON(t, r, http.MethodPost, "/api/favorites/ikea-ranarp-lampe", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if addedItem.ID != "ikea-ranarp-lampe" {
		t.Fatalf("added item = %q", addedItem.ID)
	}

	p := s.profiles.Profile(context.Background(), testUserID)
	if p.Categories[addedItem.Category] != 1 {
		t.Fatalf("favorite signal not counted: %v", p.Categories)
	}
}

func TestAnalyzeWithStaticFallback(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/analyze", gin.H{
		"image_url": "https://example.com/sofa.jpg",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", w.Code, w.Body.String())
	}
	var resp struct {
		Analysis model.AnalysisResult  `json:"analysis"`
		Results  []model.FurnitureItem `json:"results"`
	}
	decodeBody(t, w, &resp)
	if resp.Analysis.Category == "" || resp.Analysis.Style == "" {
		t.Fatalf("analysis = %+v", resp.Analysis)
	}
	if len(resp.Analysis.SearchTerms) == 0 {
		t.Fatal("expected search terms")
	}
}

func TestAnalyzeRejectsBadURL(t *testing.T) {
	_, r := newTestServer(t)
	w := doJSON(t, r, http.MethodPost, "/api/analyze", gin.H{"image_url": "not-a-url"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}
