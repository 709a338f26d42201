package favorites

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"furniq/internal/model"
)

// Store 管理用户收藏的家具。
type Store interface {
	List(ctx context.Context, userID uint) ([]model.Favorite, error)
	Add(ctx context.Context, userID uint, item model.FurnitureItem) error
	Remove(ctx context.Context, userID uint, itemID string) error
	IsFavorite(ctx context.Context, userID uint, itemID string) (bool, error)
}

// GormStore 基于关系库实现收藏存储。
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建收藏存储。
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// List 返回用户的全部收藏，最新收藏排前。
func (s *GormStore) List(ctx context.Context, userID uint) ([]model.Favorite, error) {
	var favorites []model.Favorite
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&favorites).Error; err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return favorites, nil
}

// Add 收藏一件商品并保存价格快照。重复收藏为无操作（幂等）。
func (s *GormStore) Add(ctx context.Context, userID uint, item model.FurnitureItem) error {
	fav := model.Favorite{
		UserID:       userID,
		ItemID:       item.ID,
		Name:         item.Name,
		ImageURL:     item.ImageURL,
		Price:        item.Price,
		Currency:     item.Currency,
		AffiliateURL: item.AffiliateURL,
		Shop:         item.Shop,
		Style:        item.Style,
		Category:     item.Category,
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&fav).Error; err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

// Remove 取消收藏。不存在时为无操作。
func (s *GormStore) Remove(ctx context.Context, userID uint, itemID string) error {
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Delete(&model.Favorite{}).Error; err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

// IsFavorite 判断商品是否已收藏。
func (s *GormStore) IsFavorite(ctx context.Context, userID uint, itemID string) (bool, error) {
	var fav model.Favorite
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		First(&fav).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return true, nil
}
