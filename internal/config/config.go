package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Config 保存应用程序配置。
type Config struct {
	App      AppConfig      `json:"app"`
	MySQL    MySQLConfig    `json:"mysql"`
	Redis    RedisConfig    `json:"redis"`
	Email    EmailConfig    `json:"email"`
	Security SecurityConfig `json:"security"`
	Vision   VisionConfig   `json:"vision"`
	Search   SearchConfig   `json:"search"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env              string        `json:"env"`                 // 运行环境: local / prod
	LogLevel         string        `json:"log_level"`           // 日志级别: debug / info / warn / error
	HTTPAddr         string        `json:"http_addr"`           // API 服务监听地址
	GuestIdleTimeout time.Duration `json:"guest_idle_timeout"`  // Guest 无操作超时（如 "10m"）
	GuestHeartbeat   time.Duration `json:"guest_heartbeat"`     // Guest 心跳间隔（如 "5m"）
	WorkerPoolSize   int           `json:"worker_pool_size"`    // 价格流 worker 数
	QueueCapacity    int           `json:"queue_capacity"`      // worker 池队列容量
	RateLimit        float64       `json:"rate_limit"`          // 外部服务限流速率（token/s）
	RateBurst        float64       `json:"rate_burst"`          // 限流桶容量
	DedupWindow      int           `json:"dedup_window"`        // 观测去重窗口（秒）
	FeedPopTimeout   time.Duration `json:"feed_pop_timeout"`    // 价格流单次阻塞弹出时长
	FeedRescueEvery  time.Duration `json:"feed_rescue_every"`   // 价格流 rescue 扫描间隔
	FeedStuckTimeout time.Duration `json:"feed_stuck_timeout"`  // 价格流处理超时阈值
	SimilarLimit     int           `json:"similar_limit"`       // 相似推荐默认条数
}

// MySQLConfig MySQL 数据库配置。
type MySQLConfig struct {
	DSN string `json:"dsn"` // 数据库连接字符串
}

// RedisConfig Redis 配置。
type RedisConfig struct {
	Addr     string `json:"addr"`     // Redis 地址 (host:port)
	Password string `json:"password"` // Redis 密码
}

// EmailConfig 邮件通知配置。
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
}

// SecurityConfig 安全相关配置。
type SecurityConfig struct {
	JWTSecret  string `json:"jwt_secret"`  // JWT 签名密钥
	InviteCode string `json:"invite_code"` // 邀请码（为空表示禁止注册）
}

// VisionConfig 图片分析服务配置。CredentialsFile 为空时使用
// 内置的静态后备分析器。
type VisionConfig struct {
	CredentialsFile string `json:"credentials_file"`
}

// SearchConfig 购物搜索服务配置。BaseURL 为空时退回到
// 内置目录搜索。
type SearchConfig struct {
	BaseURL string        `json:"base_url"`
	APIKey  string        `json:"api_key"`
	Timeout time.Duration `json:"timeout"`
}

// Load 从 JSON 文件加载配置。
//
// 它会尝试读取 configs/config.json 文件，如果不存在则使用默认值。
//
// 参数:
//
//	configPath: 配置文件路径（如果为空则使用默认路径 "configs/config.json")
//
// 返回值:
//
//	*Config: 加载完成的配置对象
//	error: 加载失败返回错误
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	// 如果配置文件不存在，使用默认配置
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		// 即使没有配置文件，也允许环境变量覆盖默认值
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// 应用默认值（对于未设置的字段）
	applyDefaults(cfg)

	// 环境变量优先覆盖配置
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOrDefault 加载配置，如果失败则返回默认配置（不报错）。
func LoadOrDefault(configPath ...string) *Config {
	cfg, err := Load(configPath...)
	if err != nil {
		fallback := getDefaultConfig()
		applyEnvOverrides(fallback)
		return fallback
	}
	return cfg
}

// Save 保存配置到 JSON 文件。
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:              "local",
			LogLevel:         "info",
			HTTPAddr:         ":8081",
			GuestIdleTimeout: 10 * time.Minute,
			GuestHeartbeat:   5 * time.Minute,
			WorkerPoolSize:   20,
			QueueCapacity:    500,
			RateLimit:        3,
			RateBurst:        5,
			DedupWindow:      3600,
			FeedPopTimeout:   5 * time.Second,
			FeedRescueEvery:  time.Minute,
			FeedStuckTimeout: 5 * time.Minute,
			SimilarLimit:     6,
		},
		MySQL: MySQLConfig{
			DSN: "root:password@tcp(localhost:3306)/furniq?parseTime=true&loc=Local",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
		},
		Email: EmailConfig{
			SMTPHost:  "smtp.gmail.com",
			SMTPPort:  587,
			SMTPUser:  "",
			SMTPPass:  "",
			FromEmail: "",
		},
		Security: SecurityConfig{
			JWTSecret:  "dev_secret_change_me",
			InviteCode: "",
		},
		Vision: VisionConfig{
			CredentialsFile: "",
		},
		Search: SearchConfig{
			BaseURL: "",
			APIKey:  "",
			Timeout: 30 * time.Second,
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.GuestIdleTimeout == 0 {
		cfg.App.GuestIdleTimeout = defaults.App.GuestIdleTimeout
	}
	if cfg.App.GuestHeartbeat == 0 {
		cfg.App.GuestHeartbeat = defaults.App.GuestHeartbeat
	}
	if cfg.App.WorkerPoolSize == 0 {
		cfg.App.WorkerPoolSize = defaults.App.WorkerPoolSize
	}
	if cfg.App.QueueCapacity == 0 {
		cfg.App.QueueCapacity = defaults.App.QueueCapacity
	}
	if cfg.App.RateLimit == 0 {
		cfg.App.RateLimit = defaults.App.RateLimit
	}
	if cfg.App.RateBurst == 0 {
		cfg.App.RateBurst = defaults.App.RateBurst
	}
	if cfg.App.DedupWindow == 0 {
		cfg.App.DedupWindow = defaults.App.DedupWindow
	}
	if cfg.App.FeedPopTimeout == 0 {
		cfg.App.FeedPopTimeout = defaults.App.FeedPopTimeout
	}
	if cfg.App.FeedRescueEvery == 0 {
		cfg.App.FeedRescueEvery = defaults.App.FeedRescueEvery
	}
	if cfg.App.FeedStuckTimeout == 0 {
		cfg.App.FeedStuckTimeout = defaults.App.FeedStuckTimeout
	}
	if cfg.App.SimilarLimit == 0 {
		cfg.App.SimilarLimit = defaults.App.SimilarLimit
	}
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = defaults.Security.JWTSecret
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = defaults.Search.Timeout
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("db_host", "DB_HOST")
	_ = viper.BindEnv("db_password", "DB_PASSWORD")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("smtp_pass", "SMTP_PASS")
	_ = viper.BindEnv("jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("invite_code", "INVITE_CODE")
	_ = viper.BindEnv("search_api_key", "SEARCH_API_KEY")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}
	if v := os.Getenv("APP_GUEST_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.GuestIdleTimeout = d
		}
	}
	if v := os.Getenv("APP_GUEST_HEARTBEAT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.GuestHeartbeat = d
		}
	}
	if v := os.Getenv("APP_WORKER_POOL_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.WorkerPoolSize = i
		}
	}
	if v := os.Getenv("APP_QUEUE_CAPACITY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.QueueCapacity = i
		}
	}
	if v := os.Getenv("APP_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateLimit = f
		}
	}
	if v := os.Getenv("APP_RATE_BURST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateBurst = f
		}
	}
	if v := os.Getenv("APP_DEDUP_WINDOW"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.DedupWindow = i
		}
	}
	if v := os.Getenv("APP_FEED_POP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.FeedPopTimeout = d
		}
	}
	if v := os.Getenv("APP_FEED_RESCUE_EVERY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.FeedRescueEvery = d
		}
	}
	if v := os.Getenv("APP_FEED_STUCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.FeedStuckTimeout = d
		}
	}
	if v := os.Getenv("APP_SIMILAR_LIMIT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.SimilarLimit = i
		}
	}

	if v := viper.GetString("jwt_secret"); v != "" {
		cfg.Security.JWTSecret = v
	}
	if v := os.Getenv("APP_INVITE_CODE"); v != "" {
		cfg.Security.InviteCode = v
	}
	if v := viper.GetString("invite_code"); v != "" {
		cfg.Security.InviteCode = v
	}

	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.MySQL.DSN = v
	} else if hasAnyEnv("DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME") || viper.GetString("db_host") != "" || viper.GetString("db_password") != "" {
		parsed := parseMySQLDSN(cfg.MySQL.DSN)
		if v := viper.GetString("db_host"); v != "" {
			host := v
			port := getenvDefault("DB_PORT", parsed.Addr, "3306")
			parsed.Addr = host + ":" + port
		} else if v := os.Getenv("DB_PORT"); v != "" {
			host := parsed.Addr
			if strings.Contains(host, ":") {
				host = strings.Split(host, ":")[0]
			}
			parsed.Addr = host + ":" + v
		}
		if v := os.Getenv("DB_USER"); v != "" {
			parsed.User = v
		}
		if v := viper.GetString("db_password"); v != "" {
			parsed.Passwd = v
		}
		if v := os.Getenv("DB_NAME"); v != "" {
			parsed.DBName = v
		}
		cfg.MySQL.DSN = parsed.FormatDSN()
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
	}
	if v := viper.GetString("smtp_pass"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}

	if v := os.Getenv("VISION_CREDENTIALS_FILE"); v != "" {
		cfg.Vision.CredentialsFile = v
	}

	if v := os.Getenv("SEARCH_BASE_URL"); v != "" {
		cfg.Search.BaseURL = v
	}
	if v := viper.GetString("search_api_key"); v != "" {
		cfg.Search.APIKey = v
	}
	if v := os.Getenv("SEARCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Search.Timeout = d
		}
	}
}

func hasAnyEnv(keys ...string) bool {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func getenvDefault(envKey, fallbackAddr, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if fallbackAddr == "" {
		return defaultValue
	}
	if strings.Contains(fallbackAddr, ":") {
		parts := strings.Split(fallbackAddr, ":")
		if len(parts) == 2 && parts[1] != "" {
			return parts[1]
		}
	}
	return defaultValue
}

func parseMySQLDSN(dsn string) *mysql.Config {
	fallback := &mysql.Config{
		User:   "root",
		Passwd: "",
		Net:    "tcp",
		Addr:   "localhost:3306",
		DBName: "furniq",
		Params: map[string]string{
			"parseTime": "true",
			"loc":       "Local",
		},
	}
	if dsn == "" {
		return fallback
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fallback
	}
	return parsed
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串。
func (a *AppConfig) UnmarshalJSON(data []byte) error {
	type Alias AppConfig
	aux := &struct {
		GuestIdleTimeout string `json:"guest_idle_timeout"`
		GuestHeartbeat   string `json:"guest_heartbeat"`
		FeedPopTimeout   string `json:"feed_pop_timeout"`
		FeedRescueEvery  string `json:"feed_rescue_every"`
		FeedStuckTimeout string `json:"feed_stuck_timeout"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	set := func(dst *time.Duration, raw, field string) error {
		if raw == "" {
			return nil
		}
		duration, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s format: %w", field, err)
		}
		*dst = duration
		return nil
	}

	if err := set(&a.GuestIdleTimeout, aux.GuestIdleTimeout, "guest_idle_timeout"); err != nil {
		return err
	}
	if err := set(&a.GuestHeartbeat, aux.GuestHeartbeat, "guest_heartbeat"); err != nil {
		return err
	}
	if err := set(&a.FeedPopTimeout, aux.FeedPopTimeout, "feed_pop_timeout"); err != nil {
		return err
	}
	if err := set(&a.FeedRescueEvery, aux.FeedRescueEvery, "feed_rescue_every"); err != nil {
		return err
	}
	if err := set(&a.FeedStuckTimeout, aux.FeedStuckTimeout, "feed_stuck_timeout"); err != nil {
		return err
	}
	return nil
}

// MarshalJSON 自定义 JSON 序列化，将 Duration 转为字符串。
func (a AppConfig) MarshalJSON() ([]byte, error) {
	type Alias AppConfig
	return json.Marshal(&struct {
		GuestIdleTimeout string `json:"guest_idle_timeout"`
		GuestHeartbeat   string `json:"guest_heartbeat"`
		FeedPopTimeout   string `json:"feed_pop_timeout"`
		FeedRescueEvery  string `json:"feed_rescue_every"`
		FeedStuckTimeout string `json:"feed_stuck_timeout"`
		*Alias
	}{
		GuestIdleTimeout: a.GuestIdleTimeout.String(),
		GuestHeartbeat:   a.GuestHeartbeat.String(),
		FeedPopTimeout:   a.FeedPopTimeout.String(),
		FeedRescueEvery:  a.FeedRescueEvery.String(),
		FeedStuckTimeout: a.FeedStuckTimeout.String(),
		Alias:            (*Alias)(&a),
	})
}

// SearchConfig 里的 Timeout 同样接受 "30s" 形式的字符串。
func (s *SearchConfig) UnmarshalJSON(data []byte) error {
	type Alias SearchConfig
	aux := &struct {
		Timeout string `json:"timeout"`
		*Alias
	}{
		Alias: (*Alias)(s),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timeout != "" {
		duration, err := time.ParseDuration(aux.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout format: %w", err)
		}
		s.Timeout = duration
	}
	return nil
}

// MarshalJSON 将 Timeout 序列化为字符串。
func (s SearchConfig) MarshalJSON() ([]byte, error) {
	type Alias SearchConfig
	return json.Marshal(&struct {
		Timeout string `json:"timeout"`
		*Alias
	}{
		Timeout: s.Timeout.String(),
		Alias:   (*Alias)(&s),
	})
}
