package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Telegram      TelegramConfig
	Scheduler     SchedulerConfig
	Observability ObservabilityConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	// Debug enables verbose rendering (§6's debug).
	Debug   bool
	Version string

	Timezone string
	Location *time.Location

	ShutdownTimeout time.Duration

	// SecretKey is the process secret (§6's secret_key). Verified at startup
	// against SecretKeyHash via internal/infrastructure/secret, not used for
	// per-request webhook auth (that's the per-bot token itself).
	SecretKey     string
	SecretKeyHash string
}

// DatabaseConfig holds PostgreSQL connection settings (§6's db_*).
type DatabaseConfig struct {
	URL string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	QueryTimeout time.Duration
	LogQueries   bool
}

// RedisConfig holds Redis connection settings, backing the token-to-Bot
// cache and the permission-resolution cache of §5/§11.
type RedisConfig struct {
	URL string

	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Disabled bool
}

// TelegramConfig holds settings for the many bots this core serves, plus
// the fixed audit/notification destinations of §6.
type TelegramConfig struct {
	// LoggingBotToken/LoggingChatID — the audit sink bot+chat.
	LoggingBotToken string
	LoggingChatID   int64

	// StaffChatID — the admin-tag notifier destination (§4.8).
	StaffChatID int64

	// ExternalBlocklistURL — optional feed for sync_external_blocklist (§4.9).
	ExternalBlocklistURL string

	ParseMode string // "HTML" or "MarkdownV2"
}

// SchedulerConfig holds background job settings (§4.9).
type SchedulerConfig struct {
	Enabled bool

	DeleteMessageDelay     time.Duration
	RefreshGroupInfo       time.Duration
	SyncExternalBlocklist  time.Duration
	PollInterval           time.Duration

	MaxConcurrentJobs int
	JobTimeout        time.Duration
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.App = loadAppConfig()

	var err error
	cfg.Database, err = loadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("database config: %w", err)
	}

	cfg.Redis = loadRedisConfig()
	cfg.Telegram = loadTelegramConfig()
	cfg.Scheduler = loadSchedulerConfig()
	cfg.Observability = loadObservabilityConfig()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func loadAppConfig() AppConfig {
	env := Environment(getEnv("APP_ENV", "development"))
	timezone := getEnv("APP_TIMEZONE", "Europe/Rome")

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}

	return AppConfig{
		Name:            getEnv("APP_NAME", "campus-hub"),
		Environment:     env,
		Debug:           env == EnvDevelopment || getEnvBool("DEBUG", false),
		Version:         getEnv("APP_VERSION", "0.1.0"),
		Timezone:        timezone,
		Location:        loc,
		ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
		SecretKey:       getEnv("SECRET_KEY", ""),
		SecretKeyHash:   getEnv("SECRET_KEY_HASH", ""),
	}
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	url := getEnv("DATABASE_URL", "")
	if url == "" {
		host := getEnv("DB_HOST", "")
		port := getEnv("DB_PORT", "5432")
		user := getEnv("DB_USER", "")
		pass := getEnv("DB_PASSWORD", "")
		name := getEnv("DB_NAME", "postgres")
		sslmode := getEnv("DB_SSLMODE", "require")

		if host != "" && user != "" {
			url = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
				user, pass, host, port, name, sslmode)
		}
	}

	return DatabaseConfig{
		URL:             url,
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		QueryTimeout:    getEnvDuration("DB_QUERY_TIMEOUT", 30*time.Second),
		LogQueries:      getEnvBool("DB_LOG_QUERIES", false),
	}, nil
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:          getEnv("REDIS_URL", ""),
		Host:         getEnv("REDIS_HOST", "localhost"),
		Port:         getEnvInt("REDIS_PORT", 6379),
		Password:     getEnv("REDIS_PASSWORD", ""),
		DB:           getEnvInt("REDIS_DB", 0),
		PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
		MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		Disabled:     getEnvBool("REDIS_DISABLED", false),
	}
}

func loadTelegramConfig() TelegramConfig {
	return TelegramConfig{
		LoggingBotToken:      getEnv("LOGGING_BOT_TOKEN", ""),
		LoggingChatID:        getEnvInt64("LOGGING_CHAT_ID", 0),
		StaffChatID:          getEnvInt64("STAFF_CHAT_ID", 0),
		ExternalBlocklistURL: getEnv("EXTERNAL_BLOCKLIST_URL", ""),
		ParseMode:            getEnv("TELEGRAM_PARSE_MODE", "HTML"),
	}
}

func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:               getEnvBool("SCHEDULER_ENABLED", true),
		DeleteMessageDelay:    getEnvDuration("SCHEDULER_DELETE_MESSAGE_DELAY", 90*time.Second),
		RefreshGroupInfo:      getEnvDuration("SCHEDULER_REFRESH_GROUP_INFO_INTERVAL", 1*time.Hour),
		SyncExternalBlocklist: getEnvDuration("SCHEDULER_SYNC_BLOCKLIST_INTERVAL", 24*time.Hour),
		PollInterval:          getEnvDuration("SCHEDULER_POLL_INTERVAL", 2*time.Second),
		MaxConcurrentJobs:     getEnvInt("SCHEDULER_MAX_CONCURRENT", 5),
		JobTimeout:            getEnvDuration("SCHEDULER_JOB_TIMEOUT", 5*time.Minute),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.App.Environment == EnvProduction {
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required in production")
		}
		if c.App.SecretKey == "" || c.App.SecretKeyHash == "" {
			errs = append(errs, "SECRET_KEY and SECRET_KEY_HASH are required in production")
		}
		if c.Telegram.LoggingBotToken == "" {
			errs = append(errs, "LOGGING_BOT_TOKEN is required in production")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// --- Helper functions for environment variable parsing ---

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
