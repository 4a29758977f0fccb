// Package config loads the application's YAML configuration, overridable
// by a handful of environment variables for containerized deployment.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	MySQL          MySQLConfig          `yaml:"mysql"`
	Redis          RedisConfig          `yaml:"redis"`
	Migrations     MigrationsConfig     `yaml:"migrations"`
	Shortener      ShortenerConfig      `yaml:"shortener"`
	BloomFilter    BloomFilterConfig    `yaml:"bloom"`
	Dedup          DedupConfig          `yaml:"dedup"`
	Alias          AliasConfig          `yaml:"alias"`
	Store          StoreConfig          `yaml:"store"`
	Snowflake      SnowflakeConfig      `yaml:"snowflake"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port    int    `yaml:"port"`
	Mode    string `yaml:"mode"`
	BaseURL string `yaml:"base_url"`
}

// MySQLConfig configures the Persistent Store's MySQL adapter.
type MySQLConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// DSN returns the MySQL data source name for gorm's driver.
func (m *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&multiStatements=true",
		m.Username, m.Password, m.Host, m.Port, m.Database)
}

// RedisConfig configures the optional read-through resolver cache.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// Addr returns the Redis network address.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MigrationsConfig locates the schema migration files.
type MigrationsConfig struct {
	Path string `yaml:"path"`
}

// ShortenerConfig configures the Code Generator (CG).
type ShortenerConfig struct {
	Length       int    `yaml:"length"`
	Alphabet     string `yaml:"alphabet"`
	EngineKind   string `yaml:"engine_kind"`
	RetryBudget  int    `yaml:"retry_budget"`
}

// BloomFilterConfig configures the Bloom Filter (BF).
type BloomFilterConfig struct {
	TargetCapacity          uint    `yaml:"target_capacity"`
	FalsePositiveRate       float64 `yaml:"false_positive_rate"`
	SnapshotIntervalSeconds int     `yaml:"snapshot_interval_seconds"`
	SnapshotName            string  `yaml:"snapshot_name"`
	// ShutdownFlushTimeoutMS is not read: the Snapshotter's shutdown flush
	// always uses a fixed 3-second timeout.
	ShutdownFlushTimeoutMS  int     `yaml:"shutdown_flush_timeout_ms"`
}

// DedupConfig controls whether the Allocator deduplicates identical URLs.
type DedupConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AliasConfig configures the Alias Validator (AV).
type AliasConfig struct {
	MaxLength int      `yaml:"max_length"`
	Reserved  []string `yaml:"reserved"`
}

// StoreConfig declares the maximum URL length. The handler layer does not
// read it and does not check URL length.
type StoreConfig struct {
	MaxURLLength int `yaml:"max_url_length"`
}

// SnowflakeConfig configures the distributed ID generator used for urls.id.
type SnowflakeConfig struct {
	DatacenterID int64 `yaml:"datacenter_id"`
	WorkerID     int64 `yaml:"worker_id"`
}

// RateLimitConfig mirrors the teacher's rate-limiting middleware configuration.
type RateLimitConfig struct {
	Enabled   bool                    `yaml:"enabled"`
	Strategy  string                  `yaml:"strategy"`
	Global    RateLimitRule           `yaml:"global"`
	Endpoints []RateLimitEndpointRule `yaml:"endpoints"`
}

// RateLimitRule is a single limit/window pair.
type RateLimitRule struct {
	Limit  int `yaml:"limit"`
	Window int `yaml:"window"`
}

// RateLimitEndpointRule attaches a RateLimitRule to a specific route path.
type RateLimitEndpointRule struct {
	Path   string `yaml:"path"`
	Limit  int    `yaml:"limit"`
	Window int    `yaml:"window"`
}

// CircuitBreakerConfig configures the gobreaker wrapping PS-dependent calls.
type CircuitBreakerConfig struct {
	MaxRequests          uint32 `yaml:"max_requests"`
	IntervalSeconds      int    `yaml:"interval_seconds"`
	TimeoutSeconds       int    `yaml:"timeout_seconds"`
	ConsecutiveFailures  uint32 `yaml:"consecutive_failures"`
}

var globalConfig *Config

// Load reads and parses the YAML configuration file at path, applying
// environment variable overrides for containerized deployments.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if host := os.Getenv("MYSQL_HOST"); host != "" {
		cfg.MySQL.Host = host
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.Redis.Host = host
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get returns the most recently loaded configuration.
func Get() *Config {
	return globalConfig
}
