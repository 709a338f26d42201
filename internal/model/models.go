package model

import (
	"time"
)

// FurnitureItem 表示目录中的一件家具。
//
// 目录加载后不可变——应用内没有增删改生命周期，
// ID 在整个目录中全局唯一。
type FurnitureItem struct {
	ID           string  `json:"id"`            // 目录内唯一标识
	Name         string  `json:"name"`          // 商品名称
	ImageURL     string  `json:"image_url"`     // 主图链接
	Price        float64 `json:"price"`         // 价格（非负）
	Currency     string  `json:"currency"`      // ISO 货币代码，如 "EUR"
	AffiliateURL string  `json:"affiliate_url"` // 购买跳转链接
	Shop         string  `json:"shop"`          // 店铺标签
	Style        string  `json:"style"`         // 风格标签（可为空）
	Category     string  `json:"category"`      // 分类标签（可为空）
}

// QuizOption 风格测试的一个选项，每个选项绑定一种风格。
type QuizOption struct {
	Key   string `json:"key"`   // 选项键，如 "A"
	Label string `json:"label"` // 选项文案
	Style string `json:"style"` // 绑定的风格标签
}

// QuizQuestion 风格测试的一道题目，固定四个选项。
type QuizQuestion struct {
	ID      int          `json:"id"`
	Text    string       `json:"text"`
	Options []QuizOption `json:"options"`
}

// QuizAnswer 表示一次作答：题目 ID + 所选选项键。
type QuizAnswer struct {
	QuestionID     int    `json:"question_id"`
	SelectedOption string `json:"selected_option"`
}

// QuizResult 一次完整测试的结果，持久化时覆盖写入（只保留最新一次）。
type QuizResult struct {
	Style     string       `json:"style"`
	Answers   []QuizAnswer `json:"answers"`
	Timestamp int64        `json:"timestamp"` // Unix 毫秒
}

// StyleProfile 用户的风格偏好画像：风格/分类的累计出现次数。
//
// 首次观测到信号时惰性创建，只有显式重置会删除。
type StyleProfile struct {
	Styles      map[string]int `json:"styles"`
	Categories  map[string]int `json:"categories"`
	LastUpdated int64          `json:"last_updated"` // Unix 毫秒
}

// TrackedProduct 用户关注降价的商品。
//
// 同一 ID 重复关注是 no-op，取消关注即删除。
type TrackedProduct struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ImageURL      string    `json:"image_url"`
	OriginalPrice float64   `json:"original_price"` // 开始关注时的价格
	CurrentPrice  float64   `json:"current_price"`  // 最近一次已知价格
	Shop          string    `json:"shop"`
	AffiliateURL  string    `json:"affiliate_url"`
	TrackedAt     time.Time `json:"tracked_at"`
}

// PriceAlert 带目标价的降价提醒。
//
// 每个 ProductID 至多一条；Triggered 在每次写入价格时重新推导
// （triggered = currentPrice <= targetPrice），读取时不再计算。
type PriceAlert struct {
	ID              string    `json:"id"` // 提醒自身的唯一 ID
	ProductID       string    `json:"product_id"`
	ProductName     string    `json:"product_name"`
	ProductImageURL string    `json:"product_image_url"`
	Shop            string    `json:"shop"`
	CurrentPrice    float64   `json:"current_price"`
	TargetPrice     float64   `json:"target_price"`
	AffiliateURL    string    `json:"affiliate_url"`
	CreatedAt       time.Time `json:"created_at"`
	Triggered       bool      `json:"triggered"`
}

// BudgetState 全局预算上限，单实例，后写覆盖。
// MaxBudget 为 nil 或 <= 0 表示不设限。
type BudgetState struct {
	MaxBudget *float64 `json:"max_budget"`
}

// AnalysisResult 远端视觉模型对一张照片的分析结果。
//
// 该数据在进入核心逻辑前于边界处校验（字段缺失按空值处理）。
type AnalysisResult struct {
	Category    string   `json:"category"`
	Style       string   `json:"style"`
	Colors      []string `json:"colors"`
	Material    string   `json:"material"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
	SearchTerms []string `json:"search_terms"`
}

// SearchResult 购物搜索服务返回的结果。
type SearchResult struct {
	Items []FurnitureItem `json:"items"`
	Query string          `json:"query"`
}

// PriceUpdate 价格源推送的一条价格变更消息。
type PriceUpdate struct {
	UpdateID  string  `json:"update_id"` // 去重用的消息 ID
	ProductID string  `json:"product_id"`
	NewPrice  float64 `json:"new_price"`
	Source    string  `json:"source"`     // 来源店铺/抓取渠道
	CreatedAt int64   `json:"created_at"` // Unix 秒
}
