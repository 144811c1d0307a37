package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Upstream       UpstreamConfig
	RateLimit      RateLimitConfig
	Retry          RetryConfig
	CircuitBreaker CircuitBreakerConfig
	Download       DownloadConfig
	Calendar       CalendarConfig
	Scheduler      SchedulerConfig
	Kafka          KafkaConfig
	Logging        LoggingConfig
	ServiceKey     string
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database specific configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// UpstreamConfig holds configuration for the upstream market-data API
type UpstreamConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// RateLimitConfig caps calls against the upstream quota
type RateLimitConfig struct {
	MaxCallsPerMinute int
	MaxCallsPerDay    int
	MinCallInterval   time.Duration
}

// RetryConfig controls the gateway's retry behaviour
type RetryConfig struct {
	MaxRetries int
	Strategy   string
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Factor     float64
}

// CircuitBreakerConfig controls the per-operation circuit breakers
type CircuitBreakerConfig struct {
	FailureThreshold int
	Timeout          time.Duration
}

// DownloadConfig holds plan and executor defaults
type DownloadConfig struct {
	DefaultMaxUnits  int
	TaskInterval     time.Duration
	PerCallEstimate  time.Duration
	LowCoverageRate  float64
	LowCoverageLimit int
	DefaultStartDate string
}

// CalendarConfig points at the holiday exception data
type CalendarConfig struct {
	Path string
}

// SchedulerConfig controls the background download trigger
type SchedulerConfig struct {
	Enabled         bool
	Cron            string
	WindowDays      int
	TradingDaysOnly bool
}

// KafkaConfig holds Kafka specific configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads the configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment variables override
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8090")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "10s")
	v.SetDefault("server.idleTimeout", "120s")

	// Database defaults
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", "30m")

	// Upstream defaults
	v.SetDefault("upstream.url", "http://api.tushare.pro")
	v.SetDefault("upstream.timeout", "30s")

	// Rate limit defaults match the free upstream account tier
	v.SetDefault("ratelimit.maxCallsPerMinute", 2)
	v.SetDefault("ratelimit.maxCallsPerDay", 120)
	v.SetDefault("ratelimit.minCallInterval", "30s")

	// Retry defaults
	v.SetDefault("retry.maxRetries", 3)
	v.SetDefault("retry.strategy", "exponential")
	v.SetDefault("retry.baseDelay", "1s")
	v.SetDefault("retry.maxDelay", "5m")
	v.SetDefault("retry.factor", 2.0)

	// Circuit breaker defaults
	v.SetDefault("circuitbreaker.failureThreshold", 5)
	v.SetDefault("circuitbreaker.timeout", "60s")

	// Download defaults
	v.SetDefault("download.defaultMaxUnits", 30)
	v.SetDefault("download.taskInterval", "1s")
	v.SetDefault("download.perCallEstimate", "30s")
	v.SetDefault("download.lowCoverageRate", 80.0)
	v.SetDefault("download.lowCoverageLimit", 100)
	v.SetDefault("download.defaultStartDate", "2020-01-01")

	// Calendar defaults
	v.SetDefault("calendar.path", "config/calendar.yaml")

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.cron", "0 9 * * *")
	v.SetDefault("scheduler.windowDays", 7)
	v.SetDefault("scheduler.tradingDaysOnly", true)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "download-run-events")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("servicekey", "market-data-sync-key")
}
