package model

import "time"

// User 表示系统用户。
type User struct {
	ID                  uint       `gorm:"primaryKey"`                     // 用户 ID
	Email               string     `gorm:"type:varchar(191);uniqueIndex"`  // 邮箱（唯一）
	Password            string     `gorm:"not null"`                       // bcrypt 哈希
	Role                string     `gorm:"type:varchar(16);default:member"` // 角色: member / guest
	IsVerified          bool       `gorm:"default:false"`                  // 邮箱是否已验证
	VerifyCode          string     `gorm:"type:varchar(16)"`               // 邮箱验证码
	VerifyCodeExpiresAt *time.Time // 验证码过期时间
	VerifyCodeSentAt    *time.Time // 验证码发送时间
	CreatedAt           time.Time  // 创建时间

	Favorites []Favorite `gorm:"foreignKey:UserID"`
}

// Favorite 用户收藏的一件家具（远端账户存储的一条记录）。
//
// ItemID 对应目录或搜索结果中的商品 ID，同一用户下唯一。
type Favorite struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time // 收藏时间

	UserID uint   `gorm:"not null;uniqueIndex:idx_user_item"` // 所属用户
	ItemID string `gorm:"type:varchar(191);not null;uniqueIndex:idx_user_item"`

	Name         string  // 商品名称快照
	ImageURL     string  // 主图链接快照
	Price        float64 // 收藏时价格
	Currency     string  `gorm:"type:varchar(8)"`
	AffiliateURL string
	Shop         string  `gorm:"type:varchar(64)"`
	Style        string  `gorm:"type:varchar(64)"`
	Category     string  `gorm:"type:varchar(64)"`
}
