package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the reranking service
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Batching configuration
	Batching BatchingConfig `mapstructure:"batching"`

	// Scorer configuration
	Scorer ScorerConfig `mapstructure:"scorer"`

	// Cache configuration
	Cache CacheConfig `mapstructure:"cache"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// BatchingConfig holds batch accumulation and dispatch configuration
type BatchingConfig struct {
	// MaxBatchSize is the size at which a batch is released immediately
	MaxBatchSize int `mapstructure:"max_batch_size"`

	// MaxWait bounds how long a partial batch waits for more requests
	MaxWait time.Duration `mapstructure:"max_wait"`

	// MaxQueueDepth bounds undispatched requests before Submit rejects
	MaxQueueDepth int `mapstructure:"max_queue_depth"`

	// RequestTimeout is the per-request deadline while awaiting a score
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ScorerConfig holds score function backend configuration
type ScorerConfig struct {
	Provider   string        `mapstructure:"provider"` // http, openai, local, mock
	Model      string        `mapstructure:"model"`
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// CacheConfig holds score cache configuration
type CacheConfig struct {
	Backend string        `mapstructure:"backend"` // none, memory, redis, badger
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Badger  BadgerConfig  `mapstructure:"badger"`
}

// RedisConfig holds Redis connection settings for the score cache
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BadgerConfig holds Badger settings for the local persistent score cache
type BadgerConfig struct {
	Path string `mapstructure:"path"`
}

// CircuitBreakerConfig holds configuration for circuit breaking around the
// scorer backend
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configured bounds
func (c *Config) Validate() error {
	if c.Batching.MaxBatchSize <= 0 {
		return fmt.Errorf("batching.max_batch_size must be positive, got %d", c.Batching.MaxBatchSize)
	}
	if c.Batching.MaxWait <= 0 {
		return fmt.Errorf("batching.max_wait must be positive, got %s", c.Batching.MaxWait)
	}
	if c.Batching.MaxQueueDepth <= 0 {
		return fmt.Errorf("batching.max_queue_depth must be positive, got %d", c.Batching.MaxQueueDepth)
	}
	if c.Batching.RequestTimeout <= 0 {
		return fmt.Errorf("batching.request_timeout must be positive, got %s", c.Batching.RequestTimeout)
	}
	switch c.Cache.Backend {
	case "", "none", "memory", "redis", "badger":
	default:
		return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")

	// Batching defaults
	viper.SetDefault("batching.max_batch_size", 32)
	viper.SetDefault("batching.max_wait", "25ms")
	viper.SetDefault("batching.max_queue_depth", 1024)
	viper.SetDefault("batching.request_timeout", "30s")

	// Scorer defaults
	viper.SetDefault("scorer.provider", "http")
	viper.SetDefault("scorer.model", "BAAI/bge-reranker-v2-m3")
	viper.SetDefault("scorer.base_url", "http://localhost:8000")
	viper.SetDefault("scorer.timeout", "30s")
	viper.SetDefault("scorer.max_retries", 2)

	// Cache defaults
	viper.SetDefault("cache.backend", "none")
	viper.SetDefault("cache.ttl", "1h")
	viper.SetDefault("cache.redis.addr", "localhost:6379")
	viper.SetDefault("cache.redis.db", 0)
	viper.SetDefault("cache.badger.path", "./rerank_cache")

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", false)
	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if baseURL := os.Getenv("SCORER_BASE_URL"); baseURL != "" {
		config.Scorer.BaseURL = baseURL
	}
	if model := os.Getenv("SCORER_MODEL"); model != "" {
		config.Scorer.Model = model
	}
	if apiKey := os.Getenv("SCORER_API_KEY"); apiKey != "" {
		config.Scorer.APIKey = apiKey
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && config.Scorer.APIKey == "" {
		config.Scorer.APIKey = apiKey
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Cache.Redis.Addr = addr
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		config.Cache.Redis.Password = pass
	}
}
