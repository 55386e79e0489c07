package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"

	"screener/internal/config"
	"screener/internal/logger"
)

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
	}
}

func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", dc.Config.Database.Redis.Host, dc.Config.Database.Redis.Port),
		Password: dc.Config.Database.Redis.Password,
		DB:       dc.Config.Database.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.Info("Redis connected successfully")
	return rdb, nil
}

func (dc *DatabaseConnector) InitPostgreSQL(ctx context.Context) (*sql.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		dc.Config.Database.Postgres.User,
		dc.Config.Database.Postgres.Password,
		dc.Config.Database.Postgres.Host,
		dc.Config.Database.Postgres.Port,
		dc.Config.Database.Postgres.DBName,
		dc.Config.Database.Postgres.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if dc.Config.Database.RunMigrations {
		if err := dc.runMigrations(db); err != nil {
			db.Close()
			return nil, err
		}
	}

	dc.Logger.Info("PostgreSQL connected successfully")
	return db, nil
}

func (dc *DatabaseConnector) runMigrations(db *sql.DB) error {
	dir := dc.Config.Database.MigrationsDir
	if dir == "" {
		dir = "migrations/postgres"
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	dc.Logger.Infow("Migrations applied", "dir", dir)
	return nil
}

func (dc *DatabaseConnector) ShutdownDatabases(ctx context.Context, redis *redis.Client, postgres *sql.DB) []error {
	var errs []error

	if redis != nil {
		if err := redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if postgres != nil {
		if err := postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
	}

	return errs
}
