package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Storage media accepted by AGENTTASK_STORE.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

const (
	envListenAddr    = "AGENTTASK_LISTEN_ADDR"
	envStore         = "AGENTTASK_STORE"
	envDBPath        = "AGENTTASK_DB_PATH"
	envRedisAddr     = "AGENTTASK_REDIS_ADDR"
	envRedisPassword = "AGENTTASK_REDIS_PASSWORD"
	envRedisDB       = "AGENTTASK_REDIS_DB"
	envRedisPrefix   = "AGENTTASK_REDIS_PREFIX"
	envLogLevel      = "AGENTTASK_LOG_LEVEL"
	envRunTimeout    = "AGENTTASK_RUN_TIMEOUT"
	envRunHistory    = "AGENTTASK_RUN_HISTORY"
)

// ErrInvalidConfig is wrapped by every error Load returns.
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New()

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string      `default:":8080" validate:"required"`
	Store      string      `default:"sqlite" validate:"oneof=sqlite redis memory"`
	DBPath     string      `default:"agenttask.db"`
	Redis      RedisConfig
	LogLevel   slog.Level
	RunTimeout time.Duration `validate:"gte=0"`
	RunHistory int           `default:"256" validate:"gt=0"`
}

// RedisConfig addresses the Redis server used when Store is "redis".
type RedisConfig struct {
	Addr     string `default:"localhost:6379"`
	Password string
	DB       int    `validate:"gte=0"`
	Prefix   string `default:"agenttask"`
}

// Load reads configuration from environment variables on top of the struct
// defaults and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: defaults: %v", ErrInvalidConfig, err)
	}
	cfg.LogLevel = slog.LevelInfo

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envStore); v != "" {
		cfg.Store = strings.ToLower(v)
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envRedisAddr); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv(envRedisPassword); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv(envRedisPrefix); v != "" {
		cfg.Redis.Prefix = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envRedisDB); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, envRedisDB, err)
		}
		cfg.Redis.DB = db
	}
	if v := os.Getenv(envRunTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, envRunTimeout, err)
		}
		cfg.RunTimeout = d
	}
	if v := os.Getenv(envRunHistory); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, envRunHistory, err)
		}
		cfg.RunHistory = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field rules and the settings the chosen store depends on.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("%w: %s is required for the sqlite store", ErrInvalidConfig, envDBPath)
		}
	case StoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: %s is required for the redis store", ErrInvalidConfig, envRedisAddr)
		}
	}
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
