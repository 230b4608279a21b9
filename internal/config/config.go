package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Env string `yaml:"env"`
}

type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Component string `yaml:"component"`
	Source    bool   `yaml:"source"`
}

type DBConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type HTTPConfig struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type GRPCConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// MatchingConfig tunes the swipe feed.
type MatchingConfig struct {
	CandidateBatch int           `yaml:"candidate_batch"`
	SwipeRateLimit int           `yaml:"swipe_rate_limit"`
	RateWindow     time.Duration `yaml:"rate_window"`
}

// ChatConfig tunes message threads.
type ChatConfig struct {
	MaxBodyLen       int `yaml:"max_body_len"`
	DefaultPageSize  int `yaml:"default_page_size"`
	MaxPageSize      int `yaml:"max_page_size"`
	MessageRateLimit int `yaml:"message_rate_limit"`
}

type Config struct {
	App      AppConfig      `yaml:"app"`
	Log      LogConfig      `yaml:"log"`
	DB       DBConfig       `yaml:"db"`
	Redis    RedisConfig    `yaml:"redis"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Matching MatchingConfig `yaml:"matching"`
	Chat     ChatConfig     `yaml:"chat"`
}

// Defaults returns the built-in configuration without consulting the environment.
func Defaults() *Config {
	cfg := &Config{}

	cfg.App.Env = "production"

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Log.Component = "swipelingo"

	cfg.DB.Driver = "mysql"
	cfg.DB.Host = "localhost"
	cfg.DB.Port = "3306"
	cfg.DB.User = "root"
	cfg.DB.Password = "root"
	cfg.DB.Name = "swipelingo"
	cfg.DB.MaxOpenConns = 25
	cfg.DB.MaxIdleConns = 5
	cfg.DB.ConnMaxLifetime = 5 * time.Minute
	cfg.DB.AutoMigrate = true

	cfg.Redis.Addr = "localhost:6379"

	cfg.HTTP.Host = "0.0.0.0"
	cfg.HTTP.Port = "8080"
	cfg.HTTP.ReadTimeout = 10 * time.Second
	cfg.HTTP.WriteTimeout = 10 * time.Second

	cfg.GRPC.Host = "127.0.0.1"
	cfg.GRPC.Port = "50051"

	cfg.Matching.CandidateBatch = 20
	cfg.Matching.SwipeRateLimit = 120
	cfg.Matching.RateWindow = time.Minute

	cfg.Chat.MaxBodyLen = 4000
	cfg.Chat.DefaultPageSize = 50
	cfg.Chat.MaxPageSize = 200
	cfg.Chat.MessageRateLimit = 60

	return cfg
}

// New loads configuration in order: defaults, .env, the YAML file named by
// CONFIG_FILE, then environment variables. A broken YAML file is fatal for
// the caller, so New panics rather than silently running with defaults.
func New() *Config {
	cfg, err := Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load is New with an explicit YAML path. An empty path skips the file.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Defaults()

	if path == "" {
		path = strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.App.Env = getEnvDefault("APP_ENV", cfg.App.Env)

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", cfg.Log.Component)
	if v, ok := os.LookupEnv("LOG_SOURCE"); ok {
		cfg.Log.Source = isTruthy(v)
	}

	// Database
	cfg.DB.Driver = strings.ToLower(getEnvDefault("DB_DRIVER", cfg.DB.Driver))
	cfg.DB.DSN = getEnvDefault("DB_DSN", cfg.DB.DSN)
	if cfg.DB.Driver == "mysql" {
		cfg.DB.DSN = getEnvDefault("MYSQL_DSN", cfg.DB.DSN)
	}
	cfg.DB.Host = getEnvDefault("DB_HOST", cfg.DB.Host)
	cfg.DB.Port = getEnvDefault("DB_PORT", cfg.DB.Port)
	cfg.DB.User = getEnvDefault("DB_USER", cfg.DB.User)
	cfg.DB.Password = getEnvDefault("DB_PASSWORD", cfg.DB.Password)
	cfg.DB.Name = getEnvDefault("DB_NAME", cfg.DB.Name)
	cfg.DB.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", cfg.DB.MaxOpenConns)
	cfg.DB.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", cfg.DB.MaxIdleConns)
	cfg.DB.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", cfg.DB.ConnMaxLifetime)
	if v, ok := os.LookupEnv("DB_AUTO_MIGRATE"); ok {
		cfg.DB.AutoMigrate = isTruthy(v)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)

	// HTTP
	cfg.HTTP.Host = getEnvDefault("HTTP_HOST", cfg.HTTP.Host)
	cfg.HTTP.Port = getEnvDefault("HTTP_PORT", cfg.HTTP.Port)
	cfg.HTTP.ReadTimeout = getEnvDuration("HTTP_READ_TIMEOUT", cfg.HTTP.ReadTimeout)
	cfg.HTTP.WriteTimeout = getEnvDuration("HTTP_WRITE_TIMEOUT", cfg.HTTP.WriteTimeout)

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", cfg.GRPC.Host)
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", cfg.GRPC.Port)

	// Matching / chat
	cfg.Matching.CandidateBatch = getEnvInt("CANDIDATE_BATCH", cfg.Matching.CandidateBatch)
	cfg.Matching.SwipeRateLimit = getEnvInt("SWIPE_RATE_LIMIT", cfg.Matching.SwipeRateLimit)
	cfg.Matching.RateWindow = getEnvDuration("RATE_WINDOW", cfg.Matching.RateWindow)
	cfg.Chat.MaxBodyLen = getEnvInt("CHAT_MAX_BODY_LEN", cfg.Chat.MaxBodyLen)
	cfg.Chat.DefaultPageSize = getEnvInt("CHAT_DEFAULT_PAGE_SIZE", cfg.Chat.DefaultPageSize)
	cfg.Chat.MaxPageSize = getEnvInt("CHAT_MAX_PAGE_SIZE", cfg.Chat.MaxPageSize)
	cfg.Chat.MessageRateLimit = getEnvInt("MESSAGE_RATE_LIMIT", cfg.Chat.MessageRateLimit)
}

// DSNFor returns the connection string for the configured driver.
// An explicit DSN always wins over the host/port fields.
func (c *Config) DSNFor() string {
	if c.DB.DSN != "" {
		return c.DB.DSN
	}
	switch c.DB.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name,
		)
	case "sqlite":
		return c.DB.Name + ".db"
	default:
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name,
		)
	}
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
