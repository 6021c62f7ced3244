package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	commoncfg "github.com/ARodriguezHacks/covid-calendar/common/config"

	"gopkg.in/yaml.v3"
)

// Config covid-household（HTTP API）配置
// 优先级：环境变量 > CONFIG_FILE（yaml）> 默认值
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	DBEnabled    bool                     `yaml:"db_enabled"`
	Database     commoncfg.DatabaseConfig `yaml:"database"`
	RedisEnabled bool                     `yaml:"redis_enabled"`
	Redis        commoncfg.RedisConfig    `yaml:"redis"`
	Guidance     GuidanceConfig           `yaml:"guidance"`
	Notify       NotifyConfig             `yaml:"notify"`
	Log          struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// GuidanceConfig 隔离策略与指导缓存
type GuidanceConfig struct {
	OnsetIsolationDays int           `yaml:"onset_isolation_days"` // 首次症状/阳性后隔离天数
	SymptomsEndDays    int           `yaml:"symptoms_end_days"`    // 症状结束后天数
	CachePrefix        string        `yaml:"cache_prefix"`
	CacheTTL           time.Duration `yaml:"cache_ttl"`
}

// NotifyConfig 暴露变更通知（Redis Stream / MQTT / Webhook）
type NotifyConfig struct {
	Stream         string               `yaml:"stream"` // 为空则不写 Stream
	MQTTEnabled    bool                 `yaml:"mqtt_enabled"`
	MQTT           commoncfg.MQTTConfig `yaml:"mqtt"`
	TopicPrefix    string               `yaml:"topic_prefix"`
	WebhookURL     string               `yaml:"webhook_url"` // 为空则不调用
	WebhookTimeout time.Duration        `yaml:"webhook_timeout"`
	WebhookRetries int                  `yaml:"webhook_retries"`
}

func defaults() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8080"

	// 默认启用；main 在 DB 不可用时回退到内存仓库
	cfg.DBEnabled = true
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "covid_household",
		SSLMode:  "disable",
		MaxConns: 10,
		MaxIdle:  5,
	}

	cfg.RedisEnabled = true
	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}

	cfg.Guidance = GuidanceConfig{
		OnsetIsolationDays: 10,
		SymptomsEndDays:    1,
		CachePrefix:        "covid-household:guidance:",
		CacheTTL:           10 * time.Minute,
	}

	cfg.Notify = NotifyConfig{
		Stream: "covid-household:exposure-changes",
		MQTT: commoncfg.MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "covid-household",
			QoS:      1,
		},
		TopicPrefix:    "covid-household/exposures",
		WebhookTimeout: 5 * time.Second,
		WebhookRetries: 3,
	}

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() {
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)

	c.DBEnabled = parseBool(getEnv("DB_ENABLED", ""), c.DBEnabled)
	c.Database.LoadFromEnv("DB")

	c.RedisEnabled = parseBool(getEnv("REDIS_ENABLED", ""), c.RedisEnabled)
	c.Redis.LoadFromEnv("REDIS")

	c.Guidance.OnsetIsolationDays = parseInt(getEnv("ISOLATION_ONSET_DAYS", ""), c.Guidance.OnsetIsolationDays)
	c.Guidance.SymptomsEndDays = parseInt(getEnv("ISOLATION_SYMPTOMS_END_DAYS", ""), c.Guidance.SymptomsEndDays)
	c.Guidance.CachePrefix = getEnv("GUIDANCE_CACHE_PREFIX", c.Guidance.CachePrefix)
	c.Guidance.CacheTTL = parseDuration(getEnv("GUIDANCE_CACHE_TTL", ""), c.Guidance.CacheTTL)

	c.Notify.Stream = getEnv("NOTIFY_STREAM", c.Notify.Stream)
	c.Notify.MQTTEnabled = parseBool(getEnv("MQTT_ENABLED", ""), c.Notify.MQTTEnabled)
	c.Notify.MQTT.LoadFromEnv("MQTT")
	c.Notify.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", c.Notify.TopicPrefix)
	c.Notify.WebhookURL = getEnv("WEBHOOK_URL", c.Notify.WebhookURL)
	c.Notify.WebhookTimeout = parseDuration(getEnv("WEBHOOK_TIMEOUT", ""), c.Notify.WebhookTimeout)
	c.Notify.WebhookRetries = parseInt(getEnv("WEBHOOK_RETRIES", ""), c.Notify.WebhookRetries)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate 检查会导致错误指导结果的配置
func (c *Config) Validate() error {
	if c.Guidance.OnsetIsolationDays < 0 {
		return fmt.Errorf("ISOLATION_ONSET_DAYS must be >= 0, got %d", c.Guidance.OnsetIsolationDays)
	}
	if c.Guidance.SymptomsEndDays < 0 {
		return fmt.Errorf("ISOLATION_SYMPTOMS_END_DAYS must be >= 0, got %d", c.Guidance.SymptomsEndDays)
	}
	if c.Notify.WebhookRetries < 0 {
		return fmt.Errorf("WEBHOOK_RETRIES must be >= 0, got %d", c.Notify.WebhookRetries)
	}
	if c.Notify.MQTTEnabled && c.Notify.MQTT.Broker == "" {
		return fmt.Errorf("MQTT_BROKER is required when MQTT_ENABLED=true")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseBool(s string, def bool) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return def
}

// parseDuration 接受纯整数（秒）或 Go duration 字符串（如 "10m"）
func parseDuration(s string, def time.Duration) time.Duration {
	if secs, err := strconv.Atoi(s); err == nil {
		if secs <= 0 {
			return def
		}
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
