package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	App       AppConfig       `mapstructure:"app"`
	Voucher   VoucherConfig   `mapstructure:"voucher"`
	CheckIn   CheckInConfig   `mapstructure:"checkin"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	OSS       OSSConfig       `mapstructure:"oss"`
	Push      PushConfig      `mapstructure:"push"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
	// Replicas 只读副本 DSN 列表，公开查询走副本
	Replicas []string `mapstructure:"replicas"`
}

// DSN gorm/pgx 使用的 key=value 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode, d.TimeZone)
}

// URL golang-migrate 使用的 URL 形式
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int64  `mapstructure:"expire"` // 小时
}

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

// VoucherConfig 券码签发策略
type VoucherConfig struct {
	Window          time.Duration `mapstructure:"window"`            // 有效期，签发时固定
	CodeLength      int           `mapstructure:"code_length"`       // 券码长度（Crockford base32 字符数）
	MaxCodeAttempts int           `mapstructure:"max_code_attempts"` // 券码冲突时最多重新生成次数
	IssueLockTTL    time.Duration `mapstructure:"issue_lock_ttl"`
	IssueLockWait   time.Duration `mapstructure:"issue_lock_wait"`
}

// CheckInConfig 到店打卡去重策略: none | daily
type CheckInConfig struct {
	Dedup string `mapstructure:"dedup"`
}

// CatalogConfig 优惠目录缓存，CacheTTL 为 0 时不缓存
type CatalogConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type SweeperConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

// RateLimitConfig 公开接口（券码查询、核销、打卡）按 IP 限流
type RateLimitConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
}

type PushConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	AppKey          int64  `mapstructure:"app_key"`
	RegionID        string `mapstructure:"region_id"` // e.g., "eu-central-1"
}

var GlobalConfig Config

// Validate 验证配置
func (c *Config) Validate() error {
	if c.JWT.Secret == "" || c.JWT.Secret == "your_super_secret_key" {
		return errors.New("please set a secure JWT secret in production")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}

	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	if c.Voucher.Window <= 0 {
		return errors.New("voucher window must be positive")
	}
	if c.Voucher.CodeLength < 12 {
		return errors.New("voucher code length should be at least 12 characters")
	}
	// vouchers.code 为 varchar(32)
	if c.Voucher.CodeLength > 32 {
		return errors.New("voucher code length must not exceed 32 characters")
	}
	if c.Voucher.MaxCodeAttempts <= 0 {
		return errors.New("voucher max_code_attempts must be positive")
	}

	switch c.CheckIn.Dedup {
	case "none", "daily":
	default:
		return fmt.Errorf("unknown checkin dedup policy %q", c.CheckIn.Dedup)
	}

	if c.Sweeper.Enabled && (c.Sweeper.Interval <= 0 || c.Sweeper.BatchSize <= 0) {
		return errors.New("sweeper interval and batch_size must be positive when enabled")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("jwt.expire", 24)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.debug", true)
	v.SetDefault("voucher.window", "24h")
	v.SetDefault("voucher.code_length", 16)
	v.SetDefault("voucher.max_code_attempts", 5)
	v.SetDefault("voucher.issue_lock_ttl", "5s")
	v.SetDefault("voucher.issue_lock_wait", "2s")
	v.SetDefault("checkin.dedup", "none")
	v.SetDefault("sweeper.enabled", false)
	v.SetDefault("sweeper.interval", "10m")
	v.SetDefault("sweeper.batch_size", 500)
	v.SetDefault("ratelimit.qps", 20)
	v.SetDefault("ratelimit.burst", 40)
	v.SetDefault("catalog.cache_ttl", "60s")
}

// Load 读取配置文件与环境变量，path 为空时按 APP_ENV 查找 ./configs/config[.env].yaml
func Load(path string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		env := os.Getenv("APP_ENV")
		configName := "config"
		if env != "" && env != "dev" {
			configName = "config." + env
		}
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// DATABASE_HOST -> database.host
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// AutomaticEnv 只对已知 key 生效，常用变量再显式覆盖一次
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		cfg.JWT.Secret = jwtSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfig 加载配置并写入 GlobalConfig
func LoadConfig(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	GlobalConfig = *cfg
	return nil
}
