package pricewatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"furniq/internal/model"
	"furniq/internal/pkg/kvstore"
	"furniq/internal/pkg/metrics"
)

// ErrInvalidTarget 表示目标价不是有限正数。
var ErrInvalidTarget = errors.New("invalid target price")

// Engine 管理用户的追踪商品列表与降价提醒。
//
// 它负责：
//  1. 追踪/取消追踪商品并记录追踪时的原始价格
//  2. 维护按商品去重的价格提醒（目标价 + 触发状态）
//  3. 接收价格更新并重新判定提醒是否触发
//
// 每个用户的追踪列表和提醒列表各占一个持久化键，读-改-写序列
// 由进程内互斥锁串行化。watchers 集合记录关注某商品的用户，
// 供价格流消费者按商品扇出更新。
type Engine struct {
	store  kvstore.Store
	rdb    *redis.Client
	logger *slog.Logger

	mu sync.Mutex
}

// NewEngine 创建价格追踪引擎。
func NewEngine(store kvstore.Store, rdb *redis.Client, logger *slog.Logger) *Engine {
	return &Engine{store: store, rdb: rdb, logger: logger}
}

func trackedKey(userID uint) string {
	return fmt.Sprintf("furniq:user:%d:tracked-products", userID)
}

func alertsKey(userID uint) string {
	return fmt.Sprintf("furniq:user:%d:price-alerts", userID)
}

func watchersKey(productID string) string {
	return fmt.Sprintf("furniq:watchers:%s", productID)
}

// Track 把商品加入追踪列表。已追踪的商品保持原记录不变（幂等）。
//
// 追踪时的价格同时作为原始价和当前价记录下来。
func (e *Engine) Track(ctx context.Context, userID uint, item model.FurnitureItem) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	products := e.loadTracked(ctx, userID)
	for _, p := range products {
		if p.ID == item.ID {
			return nil
		}
	}

	products = append(products, model.TrackedProduct{
		ID:            item.ID,
		Name:          item.Name,
		ImageURL:      item.ImageURL,
		OriginalPrice: item.Price,
		CurrentPrice:  item.Price,
		Shop:          item.Shop,
		AffiliateURL:  item.AffiliateURL,
		TrackedAt:     time.Now(),
	})
	if err := e.persistTracked(ctx, userID, products); err != nil {
		return err
	}
	e.addWatcher(ctx, item.ID, userID)
	return nil
}

// Untrack 把商品移出追踪列表。商品不在列表中时为无操作。
func (e *Engine) Untrack(ctx context.Context, userID uint, productID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	products := e.loadTracked(ctx, userID)
	kept := products[:0]
	for _, p := range products {
		if p.ID != productID {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(products) {
		return nil
	}
	if err := e.persistTracked(ctx, userID, kept); err != nil {
		return err
	}
	// 仍有提醒的商品继续留在 watchers 集合里
	if _, ok := e.alertFor(ctx, userID, productID); !ok {
		e.removeWatcher(ctx, productID, userID)
	}
	return nil
}

// TrackedProducts 返回用户追踪的全部商品，按追踪先后排列。
func (e *Engine) TrackedProducts(ctx context.Context, userID uint) []model.TrackedProduct {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadTracked(ctx, userID)
}

// PriceDrops 返回当前价低于原始价的追踪商品。
func (e *Engine) PriceDrops(ctx context.Context, userID uint) []model.TrackedProduct {
	all := e.TrackedProducts(ctx, userID)
	drops := make([]model.TrackedProduct, 0, len(all))
	for _, p := range all {
		if p.CurrentPrice < p.OriginalPrice {
			drops = append(drops, p)
		}
	}
	return drops
}

// UpdatePrice 刷新追踪商品的当前价。商品未被追踪时为无操作。
//
// 原始价不随更新改变，它固定为追踪那一刻的价格。
func (e *Engine) UpdatePrice(ctx context.Context, userID uint, productID string, newPrice float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	products := e.loadTracked(ctx, userID)
	changed := false
	for i := range products {
		if products[i].ID == productID {
			products[i].CurrentPrice = newPrice
			changed = true
			break
		}
	}
	if !changed {
		return nil
	}
	return e.persistTracked(ctx, userID, products)
}

// AddAlert 为商品设置降价提醒。同一商品已有提醒时更新目标价
// 而保留提醒 ID 与创建时间（按商品去重）。
//
// 目标价必须是有限正数，校验先于任何持久化改动。
// 触发状态依据当前已知价立即判定：当前价 ≤ 目标价即触发。
func (e *Engine) AddAlert(ctx context.Context, userID uint, item model.FurnitureItem, targetPrice float64) (model.PriceAlert, error) {
	if targetPrice <= 0 || math.IsNaN(targetPrice) || math.IsInf(targetPrice, 0) {
		return model.PriceAlert{}, fmt.Errorf("%w: %v", ErrInvalidTarget, targetPrice)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	currentPrice := item.Price
	for _, p := range e.loadTracked(ctx, userID) {
		if p.ID == item.ID {
			currentPrice = p.CurrentPrice
			break
		}
	}

	alerts := e.loadAlerts(ctx, userID)
	var alert model.PriceAlert
	found := false
	for i := range alerts {
		if alerts[i].ProductID == item.ID {
			alerts[i].TargetPrice = targetPrice
			alerts[i].CurrentPrice = currentPrice
			alerts[i].Triggered = currentPrice <= targetPrice
			alert = alerts[i]
			found = true
			break
		}
	}
	if !found {
		alert = model.PriceAlert{
			ID:              uuid.NewString(),
			ProductID:       item.ID,
			ProductName:     item.Name,
			ProductImageURL: item.ImageURL,
			Shop:            item.Shop,
			CurrentPrice:    currentPrice,
			TargetPrice:     targetPrice,
			AffiliateURL:    item.AffiliateURL,
			CreatedAt:       time.Now(),
			Triggered:       currentPrice <= targetPrice,
		}
		alerts = append(alerts, alert)
	}

	if err := e.persistAlerts(ctx, userID, alerts); err != nil {
		return model.PriceAlert{}, err
	}
	e.addWatcher(ctx, item.ID, userID)
	return alert, nil
}

// DeleteAlert 按提醒 ID 删除提醒。不存在时为无操作。
func (e *Engine) DeleteAlert(ctx context.Context, userID uint, alertID string) error {
	return e.deleteAlert(ctx, userID, func(a model.PriceAlert) bool { return a.ID == alertID })
}

// DeleteAlertForProduct 删除某商品的提醒。不存在时为无操作。
func (e *Engine) DeleteAlertForProduct(ctx context.Context, userID uint, productID string) error {
	return e.deleteAlert(ctx, userID, func(a model.PriceAlert) bool { return a.ProductID == productID })
}

func (e *Engine) deleteAlert(ctx context.Context, userID uint, match func(model.PriceAlert) bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	alerts := e.loadAlerts(ctx, userID)
	kept := alerts[:0]
	var removed []model.PriceAlert
	for _, a := range alerts {
		if match(a) {
			removed = append(removed, a)
		} else {
			kept = append(kept, a)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	if err := e.persistAlerts(ctx, userID, kept); err != nil {
		return err
	}
	for _, a := range removed {
		if !e.isTracked(ctx, userID, a.ProductID) {
			e.removeWatcher(ctx, a.ProductID, userID)
		}
	}
	return nil
}

// AlertForProduct 返回某商品的提醒；没有提醒是正常情况，ok 为 false。
func (e *Engine) AlertForProduct(ctx context.Context, userID uint, productID string) (model.PriceAlert, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alertFor(ctx, userID, productID)
}

// Alerts 返回用户的全部提醒。
func (e *Engine) Alerts(ctx context.Context, userID uint) []model.PriceAlert {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadAlerts(ctx, userID)
}

// TriggeredAlerts 返回已触发的提醒。
func (e *Engine) TriggeredAlerts(ctx context.Context, userID uint) []model.PriceAlert {
	all := e.Alerts(ctx, userID)
	triggered := make([]model.PriceAlert, 0, len(all))
	for _, a := range all {
		if a.Triggered {
			triggered = append(triggered, a)
		}
	}
	return triggered
}

// RefreshAlertPrice 用最新价格重新判定某商品提醒的触发状态。
//
// 返回值:
//   - alert: 刷新后的提醒
//   - newlyTriggered: 本次刷新使提醒从未触发变为触发
//   - err: 持久化失败
//
// 该商品没有提醒时返回零值且 newlyTriggered 为 false。
func (e *Engine) RefreshAlertPrice(ctx context.Context, userID uint, productID string, price float64) (model.PriceAlert, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	alerts := e.loadAlerts(ctx, userID)
	for i := range alerts {
		if alerts[i].ProductID != productID {
			continue
		}
		wasTriggered := alerts[i].Triggered
		alerts[i].CurrentPrice = price
		alerts[i].Triggered = price <= alerts[i].TargetPrice
		if err := e.persistAlerts(ctx, userID, alerts); err != nil {
			return model.PriceAlert{}, false, err
		}
		newly := alerts[i].Triggered && !wasTriggered
		if newly {
			metrics.AlertTriggeredTotal.Inc()
		}
		return alerts[i], newly, nil
	}
	return model.PriceAlert{}, false, nil
}

// Watchers 返回关注某商品的全部用户 ID，供价格流消费者扇出。
func (e *Engine) Watchers(ctx context.Context, productID string) ([]uint, error) {
	if e.rdb == nil {
		return nil, nil
	}
	members, err := e.rdb.SMembers(ctx, watchersKey(productID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load watchers for %s: %w", productID, err)
	}
	userIDs := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		userIDs = append(userIDs, uint(id))
	}
	return userIDs, nil
}

func (e *Engine) addWatcher(ctx context.Context, productID string, userID uint) {
	if e.rdb == nil {
		return
	}
	if err := e.rdb.SAdd(ctx, watchersKey(productID), strconv.FormatUint(uint64(userID), 10)).Err(); err != nil && e.logger != nil {
		e.logger.Warn("register watcher failed",
			slog.String("product_id", productID),
			slog.String("error", err.Error()))
	}
}

func (e *Engine) removeWatcher(ctx context.Context, productID string, userID uint) {
	if e.rdb == nil {
		return
	}
	if err := e.rdb.SRem(ctx, watchersKey(productID), strconv.FormatUint(uint64(userID), 10)).Err(); err != nil && e.logger != nil {
		e.logger.Warn("unregister watcher failed",
			slog.String("product_id", productID),
			slog.String("error", err.Error()))
	}
}

func (e *Engine) isTracked(ctx context.Context, userID uint, productID string) bool {
	for _, p := range e.loadTracked(ctx, userID) {
		if p.ID == productID {
			return true
		}
	}
	return false
}

func (e *Engine) alertFor(ctx context.Context, userID uint, productID string) (model.PriceAlert, bool) {
	for _, a := range e.loadAlerts(ctx, userID) {
		if a.ProductID == productID {
			return a, true
		}
	}
	return model.PriceAlert{}, false
}

// loadTracked 读取追踪列表。读失败按空列表降级。
func (e *Engine) loadTracked(ctx context.Context, userID uint) []model.TrackedProduct {
	raw, err := e.store.Get(ctx, trackedKey(userID))
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) && e.logger != nil {
			e.logger.Warn("load tracked products failed",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()))
		}
		return []model.TrackedProduct{}
	}
	var products []model.TrackedProduct
	if err := json.Unmarshal([]byte(raw), &products); err != nil {
		if e.logger != nil {
			e.logger.Warn("corrupt tracked products",
				slog.Uint64("user_id", uint64(userID)))
		}
		return []model.TrackedProduct{}
	}
	return products
}

// persistTracked 写回追踪列表。写失败必须向上传播。
func (e *Engine) persistTracked(ctx context.Context, userID uint, products []model.TrackedProduct) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("marshal tracked products: %w", err)
	}
	if err := e.store.Set(ctx, trackedKey(userID), string(data)); err != nil {
		metrics.StorageWriteFailureTotal.WithLabelValues("tracked-products").Inc()
		return fmt.Errorf("persist tracked products: %w", err)
	}
	return nil
}

func (e *Engine) loadAlerts(ctx context.Context, userID uint) []model.PriceAlert {
	raw, err := e.store.Get(ctx, alertsKey(userID))
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) && e.logger != nil {
			e.logger.Warn("load price alerts failed",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()))
		}
		return []model.PriceAlert{}
	}
	var alerts []model.PriceAlert
	if err := json.Unmarshal([]byte(raw), &alerts); err != nil {
		if e.logger != nil {
			e.logger.Warn("corrupt price alerts",
				slog.Uint64("user_id", uint64(userID)))
		}
		return []model.PriceAlert{}
	}
	return alerts
}

func (e *Engine) persistAlerts(ctx context.Context, userID uint, alerts []model.PriceAlert) error {
	data, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("marshal price alerts: %w", err)
	}
	if err := e.store.Set(ctx, alertsKey(userID), string(data)); err != nil {
		metrics.StorageWriteFailureTotal.WithLabelValues("price-alerts").Inc()
		return fmt.Errorf("persist price alerts: %w", err)
	}
	return nil
}
