package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// 不安全的默认值列表 (生产环境不应使用)
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"internal-secret":                      true,
	"internal-service-secret":              true,
	"":                                     true,
}

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	JWT            JWTConfig
	Subscription   SubscriptionConfig
	Redis          RedisConfig
	RateLimit      RateLimitConfig
	Log            LogConfig
	InternalSecret string
}

type ServerConfig struct {
	Port string
	Mode string
	// PublicBaseURL overrides the request origin when building subscription links
	PublicBaseURL string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Schema   string
	SSLMode  string
}

// JWTConfig holds the session-token secret shared with the identity provider
type JWTConfig struct {
	SecretKey string
}

type SubscriptionConfig struct {
	// TokenSecret signs subscription tokens; falls back to the session secret
	TokenSecret   string
	MaxExpiryDays int
	RetentionDays int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	UserPerMinute     int
	DeliveryPerMinute int
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, using system environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:          getEnv("SERVER_PORT", "8006"),
			Mode:          getEnv("GIN_MODE", "release"), // 默认为 release 模式
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "saas_user"),
			Password: getEnv("DB_PASSWORD", "saas_pass"),
			DBName:   getEnv("DB_NAME", "saas_db"),
			Schema:   getEnv("DB_SCHEMA", "panel"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
		},
		Subscription: SubscriptionConfig{
			TokenSecret:   getEnv("SUBSCRIPTION_TOKEN_SECRET", ""),
			MaxExpiryDays: getEnvInt("SUBSCRIPTION_TOKEN_MAX_DAYS", 30),
			RetentionDays: getEnvInt("SUBSCRIPTION_TOKEN_RETENTION_DAYS", 90),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			UserPerMinute:     getEnvInt("RATE_LIMIT_USER_PER_MINUTE", 30),
			DeliveryPerMinute: getEnvInt("RATE_LIMIT_DELIVERY_PER_MINUTE", 60),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		InternalSecret: getEnv("INTERNAL_SECRET", ""),
	}

	if cfg.Subscription.TokenSecret == "" {
		cfg.Subscription.TokenSecret = cfg.JWT.SecretKey
	}

	// 日志脱敏: 不记录敏感配置
	log.Printf("[config] Subscription link service loaded: port=%s db=%s/%s.%s redis=%t",
		cfg.Server.Port, cfg.Database.Host, cfg.Database.DBName, cfg.Database.Schema, cfg.Redis.Addr != "")

	return cfg
}

// Validate 验证配置有效性，生产环境必须设置安全的密钥
func (c *Config) Validate() error {
	if insecureDefaults[c.JWT.SecretKey] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}

	if insecureDefaults[c.Subscription.TokenSecret] || len(c.Subscription.TokenSecret) < 32 {
		return fmt.Errorf("SUBSCRIPTION_TOKEN_SECRET must be at least 32 characters long")
	}
	if c.Subscription.MaxExpiryDays <= 0 {
		return fmt.Errorf("SUBSCRIPTION_TOKEN_MAX_DAYS must be positive")
	}
	if c.Subscription.RetentionDays <= 0 {
		return fmt.Errorf("SUBSCRIPTION_TOKEN_RETENTION_DAYS must be positive")
	}

	if insecureDefaults[c.InternalSecret] {
		return fmt.Errorf("INTERNAL_SECRET must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.InternalSecret) < 32 {
		return fmt.Errorf("INTERNAL_SECRET must be at least 32 characters long")
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
