package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// ProviderConfig 定义外部临时邮箱服务商（mail.tm 协议）的访问配置
type ProviderConfig struct {
	BaseURL        string        // API 根地址，默认 "https://api.mail.tm"
	Timeout        time.Duration // 单次请求超时，默认 15 秒
	RateLimit      float64       // 每秒最多请求数，默认 8
	DomainCacheTTL time.Duration // 域名列表缓存时间，默认 10 分钟
}

// WatcherConfig 定义新邮件轮询任务的配置
type WatcherConfig struct {
	Interval    time.Duration // 两轮轮询之间的间隔，默认 30 秒
	Concurrency int           // 单轮内并发轮询的会话数，默认 4
}

// TelegramConfig 定义 Telegram 推送配置，BotToken 为空时只写日志
type TelegramConfig struct {
	BotToken string
	APIBase  string        // 默认 "https://api.telegram.org"
	Timeout  time.Duration // 默认 10 秒
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，为空时只输出到控制台
}

// RedisConfig 定义 Redis 缓存服务配置，Address 为空表示不启用
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// JWTConfig 定义网关与管理接口使用的 JWT 配置
type JWTConfig struct {
	Secret      string        // JWT 签名密钥，必须至少 32 字符
	Issuer      string        // 默认 "tempmail-bot"
	TokenExpiry time.Duration // 默认 24 小时
}

// BroadcastConfig 定义管理员广播配置
type BroadcastConfig struct {
	Workers int // 并发推送协程数，默认 8
}

// Config 是系统核心配置的根结构体
type Config struct {
	Server    ServerConfig
	Provider  ProviderConfig
	Watcher   WatcherConfig
	Telegram  TelegramConfig
	CORS      CORSConfig
	Log       LogConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Broadcast BroadcastConfig
}

const defaultJWTSecret = "change-me-in-production"

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: TEMPMAIL_BOT_
// 例如: TEMPMAIL_BOT_WATCHER_INTERVAL, TEMPMAIL_BOT_TELEGRAM_BOT_TOKEN
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("tempmail_bot")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("provider.base_url", "https://api.mail.tm")
	v.SetDefault("provider.timeout", "15s")
	v.SetDefault("provider.rate_limit", 8)
	v.SetDefault("provider.domain_cache_ttl", "10m")
	v.SetDefault("watcher.interval", "30s")
	v.SetDefault("watcher.concurrency", 4)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.timeout", "10s")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("jwt.issuer", "tempmail-bot")
	v.SetDefault("jwt.token_expiry", "24h")
	v.SetDefault("broadcast.workers", 8)

	providerTimeout, err := parseDuration(v, "provider.timeout")
	if err != nil {
		return nil, err
	}
	domainCacheTTL, err := parseDuration(v, "provider.domain_cache_ttl")
	if err != nil {
		return nil, err
	}
	interval, err := parseDuration(v, "watcher.interval")
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		return nil, fmt.Errorf("watcher.interval must be positive")
	}
	telegramTimeout, err := parseDuration(v, "telegram.timeout")
	if err != nil {
		return nil, err
	}
	tokenExpiry, err := parseDuration(v, "jwt.token_expiry")
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(strings.TrimSpace(v.GetString("provider.base_url")), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("provider.base_url must not be empty")
	}

	rateLimit := v.GetFloat64("provider.rate_limit")
	if rateLimit <= 0 {
		rateLimit = 8
	}

	concurrency := v.GetInt("watcher.concurrency")
	if concurrency <= 0 {
		concurrency = 1
	}

	workers := v.GetInt("broadcast.workers")
	if workers <= 0 {
		workers = 8
	}

	corsOrigins := parseList(v.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	jwtSecret := v.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == defaultJWTSecret {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set TEMPMAIL_BOT_JWT_SECRET environment variable")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Provider: ProviderConfig{
			BaseURL:        baseURL,
			Timeout:        providerTimeout,
			RateLimit:      rateLimit,
			DomainCacheTTL: domainCacheTTL,
		},
		Watcher: WatcherConfig{
			Interval:    interval,
			Concurrency: concurrency,
		},
		Telegram: TelegramConfig{
			BotToken: strings.TrimSpace(v.GetString("telegram.bot_token")),
			APIBase:  strings.TrimRight(v.GetString("telegram.api_base"), "/"),
			Timeout:  telegramTimeout,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
		Redis: RedisConfig{
			Address:  strings.TrimSpace(v.GetString("redis.address")),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:      jwtSecret,
			Issuer:      v.GetString("jwt.issuer"),
			TokenExpiry: tokenExpiry,
		},
		Broadcast: BroadcastConfig{
			Workers: workers,
		},
	}

	return cfg, nil
}

// parseDuration 读取并解析时长配置，错误信息中带上配置键名
func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
//
// 参数:
//   - value: 逗号分隔的字符串，如 "item1,item2,item3"
//
// 返回值:
//   - []string: 解析后的字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env
//
// 文件不存在时静默失败；已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
