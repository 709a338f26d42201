package pricefeed

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"furniq/internal/model"
	"furniq/internal/pkg/kvstore"
	"furniq/internal/pricewatch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockNotifier 记录发送过的通知。
type mockNotifier struct {
	mu    sync.Mutex
	sent  []model.PriceAlert
	inbox []string
}

func (m *mockNotifier) Send(_ context.Context, alert model.PriceAlert, toEmail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, alert)
	m.inbox = append(m.inbox, toEmail)
	return nil
}

type staticEmails map[uint]string

func (s staticEmails) EmailByID(_ context.Context, userID uint) (string, error) {
	return s[userID], nil
}

func newTestConsumer(t *testing.T) (*Consumer, *pricewatch.Engine, *Client, *mockNotifier) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := kvstore.NewRedisStore(rdb)
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	engine := pricewatch.NewEngine(store, rdb, nil)
	feed, err := NewClientWithRedis(rdb)
	if err != nil {
		t.Fatalf("new feed client: %v", err)
	}
	notifier := &mockNotifier{}
	consumer := NewConsumer(feed, engine, nil, notifier, staticEmails{1: "anna@example.de"}, testLogger(), ConsumerOptions{})
	return consumer, engine, feed, notifier
}

func TestConsumer_ProcessFansOutToWatchers(t *testing.T) {
	consumer, engine, feed, notifier := newTestConsumer(t)
	ctx := context.Background()

	item := model.FurnitureItem{
		ID: "ikea-ranarp-lampe", Name: "RANARP Arbeitslampe",
		Price: 35, Currency: "EUR", Shop: "IKEA",
	}
	if err := engine.Track(ctx, 1, item); err != nil {
		t.Fatalf("track: %v", err)
	}
	if _, err := engine.AddAlert(ctx, 1, item, 30); err != nil {
		t.Fatalf("add alert: %v", err)
	}

	update := &model.PriceUpdate{
		UpdateID: "upd-100", ProductID: "ikea-ranarp-lampe",
		NewPrice: 28, Source: "IKEA", CreatedAt: time.Now().Unix(),
	}
	if err := feed.PushUpdate(ctx, update); err != nil {
		t.Fatalf("push: %v", err)
	}
	popped, err := feed.PopUpdate(ctx, time.Second)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}

	if err := consumer.process(ctx, popped); err != nil {
		t.Fatalf("process: %v", err)
	}

	products := engine.TrackedProducts(ctx, 1)
	if len(products) != 1 || products[0].CurrentPrice != 28 {
		t.Fatalf("tracked price not refreshed: %+v", products)
	}
	drops := engine.PriceDrops(ctx, 1)
	if len(drops) != 1 {
		t.Fatalf("expected a price drop, got %v", drops)
	}

	alert, ok := engine.AlertForProduct(ctx, 1, "ikea-ranarp-lampe")
	if !ok || !alert.Triggered {
		t.Fatalf("alert should be triggered: %+v (ok=%v)", alert, ok)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.sent))
	}
	if notifier.inbox[0] != "anna@example.de" {
		t.Fatalf("notification went to %q", notifier.inbox[0])
	}

	// 处理完成后消息应已确认
	depth, err := feed.QueueDepth(ctx)
	if err != nil {
		t.Fatalf("queue depth: %v", err)
	}
	if depth != 0 {
		t.Fatalf("queue should be drained, depth=%d", depth)
	}
}

func TestConsumer_ProcessNoWatchersStillAcks(t *testing.T) {
	consumer, _, feed, notifier := newTestConsumer(t)
	ctx := context.Background()

	update := &model.PriceUpdate{
		UpdateID: "upd-101", ProductID: "unknown-product",
		NewPrice: 9, CreatedAt: time.Now().Unix(),
	}
	if err := feed.PushUpdate(ctx, update); err != nil {
		t.Fatalf("push: %v", err)
	}
	popped, err := feed.PopUpdate(ctx, time.Second)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}

	if err := consumer.process(ctx, popped); err != nil {
		t.Fatalf("process: %v", err)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.sent) != 0 {
		t.Fatalf("no watchers means no notifications, got %d", len(notifier.sent))
	}
	if err := feed.PushUpdate(ctx, update); err != nil {
		t.Fatalf("ack should allow re-push: %v", err)
	}
}

func TestConsumer_NoRepeatNotificationWhileTriggered(t *testing.T) {
	consumer, engine, feed, notifier := newTestConsumer(t)
	ctx := context.Background()

	item := model.FurnitureItem{ID: "ikea-lerhamn-tisch", Name: "LERHAMN Tisch", Price: 249, Shop: "IKEA"}
	if _, err := engine.AddAlert(ctx, 1, item, 200); err != nil {
		t.Fatalf("add alert: %v", err)
	}

	for i, price := range []float64{199, 195} {
		update := &model.PriceUpdate{
			UpdateID:  "upd-20" + string(rune('0'+i)),
			ProductID: "ikea-lerhamn-tisch",
			NewPrice:  price,
			CreatedAt: time.Now().Unix(),
		}
		if err := feed.PushUpdate(ctx, update); err != nil {
			t.Fatalf("push: %v", err)
		}
		popped, err := feed.PopUpdate(ctx, time.Second)
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if err := consumer.process(ctx, popped); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.sent) != 1 {
		t.Fatalf("only the first trigger should notify, got %d", len(notifier.sent))
	}
}

func TestConsumer_RunWithoutPoolProcessesSynchronously(t *testing.T) {
	consumer, engine, feed, _ := newTestConsumer(t)
	consumer.popTimeout = 50 * time.Millisecond

	ctx := context.Background()
	item := model.FurnitureItem{
		ID: "ikea-ranarp-lampe", Name: "RANARP Arbeitslampe",
		Price: 35, Currency: "EUR", Shop: "IKEA",
	}
	if err := engine.Track(ctx, 1, item); err != nil {
		t.Fatalf("track: %v", err)
	}
	update := &model.PriceUpdate{
		UpdateID: "upd-301", ProductID: item.ID,
		NewPrice: 29, CreatedAt: time.Now().Unix(),
	}
	if err := feed.PushUpdate(ctx, update); err != nil {
		t.Fatalf("push: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		consumer.Run(runCtx)
		close(done)
	}()

	deadline := time.Now().Add(3 * time.Second)
	applied := false
	for time.Now().Before(deadline) {
		products := engine.TrackedProducts(ctx, 1)
		if len(products) == 1 && products[0].CurrentPrice == 29 {
			applied = true
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	<-done

	if !applied {
		t.Fatal("update was not applied without a worker pool")
	}
	depth, err := feed.QueueDepth(ctx)
	if err != nil {
		t.Fatalf("queue depth: %v", err)
	}
	if depth != 0 {
		t.Fatalf("queue should be drained, depth=%d", depth)
	}
}
