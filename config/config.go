package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName     = "drip-check"
	EnvFileName = "config.env"
)

const (
	DefaultAPIURL     = "http://localhost:8080/api"
	DefaultDBPath     = "history.db"
	DefaultTimeout    = 90 * time.Second
	DefaultMaxRetries = 3
	DefaultListenAddr = ":8080"
	DefaultRateLimit  = 30
	DefaultModel      = "gemini-2.5-flash"
	DefaultCachePath  = "analysis-cache.db"
)

// Config holds settings for both the CLI and the backend.
type Config struct {
	APIURL     string
	DBPath     string
	Timeout    time.Duration
	MaxRetries int

	ListenAddr   string
	GeminiAPIKey string
	GeminiModel  string
	// CachePath is the backend's analysis cache database; "none" disables it.
	CachePath string
	// RateLimit is the number of analysis requests the backend accepts per minute.
	RateLimit int
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	configPath := filepath.Join(configBase, AppName, EnvFileName)
	_ = godotenv.Load(configPath)
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		APIURL:       getEnv("DRIPCHECK_API_URL", DefaultAPIURL),
		DBPath:       getEnv("DRIPCHECK_DB_PATH", DefaultDBPath),
		ListenAddr:   getEnv("DRIPCHECK_LISTEN_ADDR", DefaultListenAddr),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("DRIPCHECK_GEMINI_MODEL", DefaultModel),
		CachePath:    getEnv("DRIPCHECK_CACHE_PATH", DefaultCachePath),
	}

	var err error
	if cfg.Timeout, err = getDuration("DRIPCHECK_TIMEOUT", DefaultTimeout); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = getInt("DRIPCHECK_MAX_RETRIES", DefaultMaxRetries); err != nil {
		return nil, err
	}
	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("DRIPCHECK_MAX_RETRIES must be at least 1, got %d", cfg.MaxRetries)
	}
	if cfg.RateLimit, err = getInt("DRIPCHECK_RATE_LIMIT", DefaultRateLimit); err != nil {
		return nil, err
	}
	if cfg.RateLimit < 1 {
		return nil, fmt.Errorf("DRIPCHECK_RATE_LIMIT must be at least 1, got %d", cfg.RateLimit)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

// getDuration accepts Go durations ("90s") or a plain number of seconds.
func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
