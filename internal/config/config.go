package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	LogLevel string

	// 远端订单服务
	OrderAPIBaseURL string
	PollInterval    time.Duration
	RequestTimeout  time.Duration
	// Location 看板按该时区计算“今天”和日期标签。
	Location *time.Location

	// Redis（可选）：跨实例的预计时间通知认领 + 动作接口限流
	RedisAddr        string
	RedisDB          int
	EstimateClaimTTL time.Duration
	ActionRateLimit  int
	ActionRateWindow time.Duration

	// Kafka（可选）：动作事件
	KafkaBrokers []string
	KafkaTopic   string
	// KafkaGroupID 每个实例一个，默认按主机名生成。
	KafkaGroupID string

	// 动作审计流水（可选），sqlite 文件路径
	JournalPath string
}

// RedisEnabled 是否配置了 redis。
func (c AppConfig) RedisEnabled() bool { return c.RedisAddr != "" }

// KafkaEnabled 是否配置了 kafka。
func (c AppConfig) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		OrderAPIBaseURL:  getEnv("ORDER_API_BASE_URL", "https://route66-server.gofastapi.com"),
		PollInterval:     10 * time.Second,
		RequestTimeout:   8 * time.Second,
		Location:         time.Local,
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisDB:          0,
		EstimateClaimTTL: 48 * time.Hour,
		ActionRateLimit:  30,
		ActionRateWindow: 10 * time.Second,
		KafkaBrokers:     splitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "order-dashboard-actions"),
		KafkaGroupID:     getEnv("KAFKA_GROUP_ID", defaultGroupID()),
		JournalPath:      getEnv("JOURNAL_PATH", ""),
	}

	if _, err := url.ParseRequestURI(cfg.OrderAPIBaseURL); err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_API_BASE_URL: %w", err)
	}

	pollSec, err := getEnvInt("POLL_INTERVAL_SEC", int(cfg.PollInterval.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid POLL_INTERVAL_SEC: %w", err)
	}
	if pollSec <= 0 {
		return AppConfig{}, fmt.Errorf("POLL_INTERVAL_SEC must be > 0")
	}
	cfg.PollInterval = time.Duration(pollSec) * time.Second

	timeoutSec, err := getEnvInt("REQUEST_TIMEOUT_SEC", int(cfg.RequestTimeout.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REQUEST_TIMEOUT_SEC: %w", err)
	}
	if timeoutSec <= 0 {
		return AppConfig{}, fmt.Errorf("REQUEST_TIMEOUT_SEC must be > 0")
	}
	cfg.RequestTimeout = time.Duration(timeoutSec) * time.Second

	if tz := getEnv("DASHBOARD_TZ", ""); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return AppConfig{}, fmt.Errorf("invalid DASHBOARD_TZ: %w", err)
		}
		cfg.Location = loc
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	claimTTLHour, err := getEnvInt("ESTIMATE_CLAIM_TTL_HOUR", int(cfg.EstimateClaimTTL.Hours()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ESTIMATE_CLAIM_TTL_HOUR: %w", err)
	}
	if claimTTLHour <= 0 {
		return AppConfig{}, fmt.Errorf("ESTIMATE_CLAIM_TTL_HOUR must be > 0")
	}
	cfg.EstimateClaimTTL = time.Duration(claimTTLHour) * time.Hour

	rateLimit, err := getEnvInt("ACTION_RATE_LIMIT", cfg.ActionRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ACTION_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("ACTION_RATE_LIMIT must be > 0")
	}
	cfg.ActionRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("ACTION_RATE_WINDOW_SEC", int(cfg.ActionRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ACTION_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("ACTION_RATE_WINDOW_SEC must be > 0")
	}
	cfg.ActionRateWindow = time.Duration(rateWindowSec) * time.Second

	if cfg.KafkaEnabled() && cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// defaultGroupID 同一台主机重启后沿用同一个消费组。
func defaultGroupID() string {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		return "order-dashboard"
	}
	return "order-dashboard-" + strings.TrimSpace(host)
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
