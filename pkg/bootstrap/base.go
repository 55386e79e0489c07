package bootstrap

import (
	"context"
	"fmt"

	"screener/internal/config"
	"screener/internal/logger"
)

type Base struct {
	Config *config.Config
	Logger logger.Logger
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
