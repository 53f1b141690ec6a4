package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Session backends
const (
	SessionFile   = "file"
	SessionSQLite = "sqlite"
	SessionRedis  = "redis"
	SessionMemory = "memory"
)

// Config holds client settings
type Config struct {
	ServerURL      string        `yaml:"server_url" json:"server_url"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"` // Per request, applies to every network call
	ReadRetries    int           `yaml:"read_retries" json:"read_retries"`       // Retries for idempotent GETs only

	FeedCacheTTL    time.Duration `yaml:"feed_cache_ttl" json:"feed_cache_ttl"`
	CommentCacheTTL time.Duration `yaml:"comment_cache_ttl" json:"comment_cache_ttl"`
	ScrollDebounce  time.Duration `yaml:"scroll_debounce" json:"scroll_debounce"`
	AutoRefresh     time.Duration `yaml:"auto_refresh" json:"auto_refresh"` // 0 disables background page-1 refresh

	// Session store
	SessionBackend    string `yaml:"session_backend" json:"session_backend"` // file, sqlite, redis, memory
	SessionPath       string `yaml:"session_path" json:"session_path"`
	SessionPassphrase string `yaml:"session_passphrase,omitempty" json:"-"`
	RedisAddr         string `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`

	// Logging configuration
	LogLevel   string `yaml:"log_level" json:"log_level"`     // Log level: DEBUG, INFO, WARN, ERROR
	LogFile    string `yaml:"log_file" json:"log_file"`       // Path to log file
	LogConsole bool   `yaml:"log_console" json:"log_console"` // Enable console logging
}

// Dir returns ~/.instafeed
func Dir() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		return ".instafeed"
	}
	return filepath.Join(home, ".instafeed")
}

// DefaultConfig returns default settings with environment overrides applied
func DefaultConfig() *Config {
	dir := Dir()

	cfg := &Config{
		ServerURL:       "http://localhost:8080",
		RequestTimeout:  30 * time.Second,
		ReadRetries:     3,
		FeedCacheTTL:    60 * time.Second,
		CommentCacheTTL: 30 * time.Second,
		ScrollDebounce:  300 * time.Millisecond,
		SessionBackend:  SessionFile,
		SessionPath:     filepath.Join(dir, "session.json"),
		RedisAddr:       "localhost:6379",
		LogLevel:        "INFO",
		LogFile:         filepath.Join(dir, "logs", "instafeed.log"),
	}
	cfg.applyEnv()
	return cfg
}

// applyEnv overrides fields from INSTAFEED_* variables
func (c *Config) applyEnv() {
	c.ServerURL = getEnv("INSTAFEED_SERVER_URL", c.ServerURL)
	c.SessionBackend = getEnv("INSTAFEED_SESSION_BACKEND", c.SessionBackend)
	c.SessionPath = getEnv("INSTAFEED_SESSION_PATH", c.SessionPath)
	c.SessionPassphrase = getEnv("INSTAFEED_SESSION_KEY", c.SessionPassphrase)
	c.RedisAddr = getEnv("INSTAFEED_REDIS_ADDR", c.RedisAddr)
	c.LogLevel = getEnv("INSTAFEED_LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("INSTAFEED_LOG_FILE", c.LogFile)
	if v := os.Getenv("INSTAFEED_LOG_CONSOLE"); v != "" {
		c.LogConsole = v == "true"
	}
	c.RequestTimeout = getDuration("INSTAFEED_REQUEST_TIMEOUT", c.RequestTimeout)
	c.FeedCacheTTL = getDuration("INSTAFEED_FEED_CACHE_TTL", c.FeedCacheTTL)
	c.CommentCacheTTL = getDuration("INSTAFEED_COMMENT_CACHE_TTL", c.CommentCacheTTL)
	if v := os.Getenv("INSTAFEED_READ_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.ReadRetries = n
		}
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Validate reports settings the client cannot run with
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	switch c.SessionBackend {
	case SessionFile, SessionSQLite, SessionRedis, SessionMemory:
	default:
		return fmt.Errorf("unknown session_backend %q", c.SessionBackend)
	}
	return nil
}

// Path returns the config file location
func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load loads config from ~/.instafeed/config.yaml
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom loads config from path. A missing file yields defaults.
// A .env file in the working directory is applied before anything else.
func LoadFrom(path string) (*Config, error) {
	_ = godotenv.Load() // optional

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// Environment wins over the file.
	cfg.applyEnv()

	return cfg, nil
}

// Save saves config to ~/.instafeed/config.yaml
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo writes the config as YAML
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
