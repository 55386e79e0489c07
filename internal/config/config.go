package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Logging        LoggingConfig
	Classification ClassificationConfig
	Cache          CacheConfig
	Governor       GovernorConfig
	Provider       ProviderConfig
	Admin          AdminConfig
	CircuitBreaker CircuitBreakerConfig
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	RunMigrations bool   `mapstructure:"run_migrations"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ClassificationConfig struct {
	Fallback FallbackConfig `mapstructure:"fallback"`
}

// FallbackConfig decides the verdict when evaluation itself fails:
// "allow" (fail-open) or "block" (fail-closed).
type FallbackConfig struct {
	OnError string `mapstructure:"on_error"`
}

type CacheConfig struct {
	Backend    string `mapstructure:"backend"` // "memory" or "redis"
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

type GovernorConfig struct {
	Classes map[string]RateWindowConfig `mapstructure:"classes"`
	Default RateWindowConfig            `mapstructure:"default"`
}

type RateWindowConfig struct {
	MaxRequests  int `mapstructure:"max_requests"`
	WindowMs     int `mapstructure:"window_ms"`
	MinSpacingMs int `mapstructure:"min_spacing_ms"`
	JitterMaxMs  int `mapstructure:"jitter_max_ms"`
}

type ProviderConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	TimeoutSeconds  time.Duration `mapstructure:"timeout_seconds"`
	CacheTTLSeconds int           `mapstructure:"cache_ttl_seconds"`
	Retry           RetryConfig   `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type AdminConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
