package api

import (
	"context"
	"errors"
	"time"

	"furniq/internal/model"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// seedDemoData 为游客演示预置数据：demo 账号、一条关注商品和一条提醒。
// 幂等：账号已存在时不再写入。
func (s *Server) seedDemoData() error {
	const demoEmail = "demo@furniq.de"

	var user model.User
	err := s.db.Where("email = ?", demoEmail).First(&user).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("demo-furniq"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user = model.User{
		Email:      demoEmail,
		Password:   string(hash),
		Role:       "guest",
		IsVerified: true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if item, ok := s.catalog.ByID("ikea-ranarp-lampe"); ok {
		if err := s.watch.Track(ctx, user.ID, item); err != nil {
			return err
		}
		if _, err := s.watch.AddAlert(ctx, user.ID, item, item.Price*0.8); err != nil {
			return err
		}
		if err := s.favorites.Add(ctx, user.ID, item); err != nil {
			return err
		}
	}
	return nil
}
