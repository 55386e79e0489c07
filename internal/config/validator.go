package config

import (
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateClassification(cfg.Classification); err != nil {
		errors = append(errors, err)
	}

	if err := validateCache(cfg.Cache); err != nil {
		errors = append(errors, err)
	}

	if err := validateGovernor(cfg.Governor); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "postgres host is required",
		}
	}
	if cfg.Postgres.Port < 1 || cfg.Postgres.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Postgres.Port),
		}
	}
	return nil
}

func validateClassification(cfg ClassificationConfig) error {
	switch cfg.Fallback.OnError {
	case "allow", "block":
		return nil
	default:
		return &ValidationError{
			Field:   "classification.fallback.on_error",
			Message: fmt.Sprintf("must be 'allow' or 'block', got %q", cfg.Fallback.OnError),
		}
	}
}

func validateCache(cfg CacheConfig) error {
	switch cfg.Backend {
	case "memory", "redis":
	default:
		return &ValidationError{
			Field:   "cache.backend",
			Message: fmt.Sprintf("must be 'memory' or 'redis', got %q", cfg.Backend),
		}
	}
	if cfg.TTLSeconds <= 0 {
		return &ValidationError{
			Field:   "cache.ttl_seconds",
			Message: "ttl must be positive",
		}
	}
	return nil
}

func validateGovernor(cfg GovernorConfig) error {
	check := func(field string, w RateWindowConfig) error {
		if w.MaxRequests <= 0 {
			return &ValidationError{Field: field + ".max_requests", Message: "must be positive"}
		}
		if w.WindowMs <= 0 {
			return &ValidationError{Field: field + ".window_ms", Message: "must be positive"}
		}
		if w.MinSpacingMs < 0 {
			return &ValidationError{Field: field + ".min_spacing_ms", Message: "must be non-negative"}
		}
		return nil
	}

	if err := check("governor.default", cfg.Default); err != nil {
		return err
	}
	for name, w := range cfg.Classes {
		if err := check("governor.classes."+name, w); err != nil {
			return err
		}
	}
	return nil
}
