package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("provider.base_url", "PROVIDER_BASE_URL")
	viper.BindEnv("provider.api_key", "PROVIDER_API_KEY")

	viper.BindEnv("cache.backend", "CACHE_BACKEND")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func setDefaults() {
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.ttl_seconds", 3600)
	viper.SetDefault("cache.key_prefix", "decision:")
	viper.SetDefault("classification.fallback.on_error", "allow")
	viper.SetDefault("governor.default.max_requests", 10)
	viper.SetDefault("governor.default.window_ms", 60000)
	viper.SetDefault("governor.default.min_spacing_ms", 200)
	viper.SetDefault("governor.default.jitter_max_ms", 100)
}
