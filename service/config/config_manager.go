/*
 * @module service/config/config_manager
 * @description 配置加载：.env 文件 -> 环境变量 -> 数据源目录YAML -> 校验，得到显式传递的 Config
 * @architecture 分层架构 - 配置层，无全局状态
 * @stateFlow godotenv 加载 -> 读取环境变量 -> 加载YAML目录 -> validator 校验
 * @rules
 *   - 组件通过构造参数获得配置，不在运行中读取环境变量
 *   - .env 文件不存在不是错误，已存在的环境变量不被覆盖
 * @dependencies github.com/joho/godotenv, github.com/spf13/cast, github.com/go-playground/validator/v10
 * @refs sources.go, service/init.go
 */

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"

	"github.com/icedo724/medi/service/datasource"
	"github.com/icedo724/medi/service/rate_limiter"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled  bool
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Schema   string
}

// DSN 返回连接字符串，优先使用 DATABASE_URL
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Seoul",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.Schema)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int

	// RunLock 定时运行前先获取Redis锁，多副本部署时开启
	RunLock    bool
	RunLockTTL time.Duration `validate:"gte=0"`
}

// Addr Redis地址
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// KafkaConfig 运行事件Kafka配置
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// MQTTConfig 运行事件MQTT配置
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
}

// Config 服务配置
type Config struct {
	APIKey               string
	RegistryURL          string        `validate:"required,url"`
	DetailBaseURL        string        `validate:"required,url"`
	UDIURL               string        `validate:"required,url"`
	RegistryCategoryCode string
	PageSize             int           `validate:"gt=0"`
	MaxPages             int           `validate:"gte=0"`
	PagePace             time.Duration `validate:"gte=0"`
	DetailPace           time.Duration `validate:"gte=0"`
	HTTPTimeout          time.Duration `validate:"gt=0"`
	AggregatorWorkers    int           `validate:"gte=1,lte=64"`
	MatchMinScore        float64       `validate:"gte=0,lte=100"`
	MatchProcessor       string        `validate:"omitempty,oneof=nfc full"`
	RFMReferenceDate     time.Time
	DataDir              string `validate:"required"`
	SourcesFile          string
	LocalizeHeaders      bool
	SegmentDisplayNames  bool

	LogLevel    string `validate:"oneof=debug info warn error"`
	ListenPort  string `validate:"required,numeric"`
	BaseContext string

	PacerMode  string `validate:"oneof=interval token redis"`
	PacerBurst int    `validate:"gte=1"`

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	MQTT     MQTTConfig
	RunCron  string

	// RunRetentionDays 运行记录保留天数，0 表示不清理
	RunRetentionDays int `validate:"gte=0"`

	Sources *SourceCatalog `validate:"required"`
}

var validate = validator.New()

// Load 加载配置，envFiles 为空时尝试当前目录的 .env
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("加载环境文件 %s 失败: %w", f, err)
		}
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv 从环境变量读取配置，未设置的项使用默认值
func FromEnv() (*Config, error) {
	cfg := &Config{
		APIKey:               strings.TrimSpace(os.Getenv("DATA_GO_KR_API_KEY")),
		RegistryURL:          getEnvWithDefault("REGISTRY_URL", datasource.DefaultRegistryURL),
		DetailBaseURL:        getEnvWithDefault("DETAIL_BASE_URL", datasource.DefaultDetailBaseURL),
		UDIURL:               getEnvWithDefault("UDI_URL", datasource.DefaultUDIURL),
		RegistryCategoryCode: getEnvWithDefault("REGISTRY_CATEGORY_CODE", datasource.DefaultCategoryCode),
		PageSize:             cast.ToInt(getEnvWithDefault("PAGE_SIZE", "1000")),
		MaxPages:             cast.ToInt(getEnvWithDefault("MAX_PAGES", "10")),
		PagePace:             time.Duration(cast.ToInt(getEnvWithDefault("PAGE_PACE_MS", "100"))) * time.Millisecond,
		DetailPace:           time.Duration(cast.ToInt(getEnvWithDefault("DETAIL_PACE_MS", "50"))) * time.Millisecond,
		HTTPTimeout:          time.Duration(cast.ToInt(getEnvWithDefault("HTTP_TIMEOUT_SECONDS", "10"))) * time.Second,
		AggregatorWorkers:    cast.ToInt(getEnvWithDefault("AGGREGATOR_WORKERS", "1")),
		MatchMinScore:        cast.ToFloat64(getEnvWithDefault("MATCH_MIN_SCORE", "0")),
		MatchProcessor:       getEnvWithDefault("MATCH_PROCESSOR", "nfc"),
		DataDir:              getEnvWithDefault("DATA_DIR", "./data"),
		SourcesFile:          os.Getenv("SOURCES_FILE"),
		LocalizeHeaders:      cast.ToBool(getEnvWithDefault("LOCALIZE_HEADERS", "false")),
		SegmentDisplayNames:  cast.ToBool(getEnvWithDefault("SEGMENT_DISPLAY_NAMES", "false")),
		LogLevel:             strings.ToLower(getEnvWithDefault("LOG_LEVEL", "info")),
		ListenPort:           getEnvWithDefault("LISTEN_PORT", "80"),
		BaseContext:          os.Getenv("BASE_CONTEXT"),
		PacerMode:            getEnvWithDefault("PACER_MODE", rate_limiter.PacerModeInterval),
		PacerBurst:           cast.ToInt(getEnvWithDefault("PACER_BURST", "1")),
		Database: DatabaseConfig{
			Enabled:  cast.ToBool(getEnvWithDefault("DB_ENABLED", "false")),
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnvWithDefault("DB_HOST", "localhost"),
			Port:     getEnvWithDefault("DB_PORT", "5432"),
			User:     getEnvWithDefault("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnvWithDefault("DB_NAME", "postgres"),
			SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
			Schema:   getEnvWithDefault("DB_SCHEMA", "public"),
		},
		Redis: RedisConfig{
			Host:       getEnvWithDefault("REDIS_HOST", "localhost"),
			Port:       getEnvWithDefault("REDIS_PORT", "6379"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         cast.ToInt(getEnvWithDefault("REDIS_DB", "0")),
			RunLock:    cast.ToBool(getEnvWithDefault("RUN_LOCK_ENABLED", "false")),
			RunLockTTL: time.Duration(cast.ToInt(getEnvWithDefault("RUN_LOCK_TTL_SECONDS", "300"))) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnvWithDefault("KAFKA_TOPIC", "medi.pipeline.runs"),
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			Topic:    getEnvWithDefault("MQTT_TOPIC", "medi/pipeline/runs"),
			ClientID: getEnvWithDefault("MQTT_CLIENT_ID", "medi-pipeline"),
		},
		RunCron:          os.Getenv("RUN_CRON"),
		RunRetentionDays: cast.ToInt(getEnvWithDefault("RUN_RETENTION_DAYS", "30")),
	}

	if raw := strings.TrimSpace(os.Getenv("RFM_REFERENCE_DATE")); raw != "" {
		t, err := cast.ToTimeE(raw)
		if err != nil {
			return nil, fmt.Errorf("RFM_REFERENCE_DATE 格式错误: %w", err)
		}
		cfg.RFMReferenceDate = t
	}

	sources, err := LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	cfg.Sources = sources

	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("配置校验失败: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("配置校验失败: %w", err)
	}
	return nil
}

// ReferenceDate 返回RFM参考日期，未配置时使用当天
func (c *Config) ReferenceDate(now time.Time) time.Time {
	if c.RFMReferenceDate.IsZero() {
		return now
	}
	return c.RFMReferenceDate
}

// PacerOptions 构造外部调用节流器参数
func (c *Config) PacerOptions(interval time.Duration, key string) rate_limiter.PacerOptions {
	opts := rate_limiter.PacerOptions{
		Mode:     c.PacerMode,
		Interval: interval,
		Burst:    c.PacerBurst,
	}
	if c.PacerMode == rate_limiter.PacerModeRedis {
		maxRequests, windowSeconds := redisWindow(interval)
		opts.Redis = &rate_limiter.RedisPacerConfig{
			Addr:          c.Redis.Addr(),
			Password:      c.Redis.Password,
			DB:            c.Redis.DB,
			Key:           key,
			MaxRequests:   maxRequests,
			WindowSeconds: windowSeconds,
		}
	}
	return opts
}

// redisWindow 把调用间隔换算为固定窗口参数：间隔不足1秒时每秒放行多次，否则一个窗口只放行一次
func redisWindow(interval time.Duration) (maxRequests, windowSeconds int) {
	switch {
	case interval <= 0:
		return 1, 1
	case interval < time.Second:
		return int(time.Second / interval), 1
	default:
		return 1, int((interval + time.Second - 1) / time.Second)
	}
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
