// Package bootstrap assembles the process runtime shared by every command:
// database, Redis, tracing and the wired engines.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"keyhouse/internal/cache"
	"keyhouse/internal/config"
	"keyhouse/internal/database"
	"keyhouse/internal/middleware"
	"keyhouse/internal/observability"
	"keyhouse/internal/repository"
	"keyhouse/internal/seed"
	"keyhouse/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema runs auto-migration and the SQL migrations on startup.
	ApplySchema bool
	// SeedStages upserts the built-in review stage configuration.
	SeedStages bool
	// RequireRedis fails startup when Redis is unreachable instead of
	// running with caching and event delivery disabled.
	RequireRedis bool
}

// Runtime holds the process-wide dependencies.
type Runtime struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Services *service.Services

	shutdownTracing func(context.Context) error
}

// Settings maps configuration onto engine tunables.
func Settings(cfg *config.Config) service.Settings {
	return service.Settings{
		InspectionFeeWindow: time.Duration(cfg.InspectionFeeWindowMinutes) * time.Minute,
		SlotCacheTTL:        time.Duration(cfg.SlotCacheTTLSeconds) * time.Second,
		FeatureFlags:        cfg.FeatureFlags,
	}
}

// InitRuntime connects to the database and Redis, sets up tracing and wires
// the engines.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "keyhouse-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing setup failed: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db); err != nil {
			return nil, fmt.Errorf("schema apply failed: %w", err)
		}
	}

	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		if opts.RequireRedis {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		middleware.Logger.WarnContext(ctx, "Redis unavailable, caching and event delivery disabled",
			slog.String("error", err.Error()))
		rdb = nil
	}

	rt := &Runtime{
		Config:          cfg,
		DB:              db,
		Redis:           rdb,
		Services:        service.NewServices(repository.NewStore(db), rdb, Settings(cfg)),
		shutdownTracing: shutdownTracing,
	}

	if opts.SeedStages {
		if _, err := seed.Run(ctx, rt.Services, seed.Options{}); err != nil {
			return nil, fmt.Errorf("failed to seed review stages: %w", err)
		}
	}

	return rt, nil
}

// Close releases the database and Redis connections and flushes traces.
func (r *Runtime) Close(ctx context.Context) {
	if r.shutdownTracing != nil {
		if err := r.shutdownTracing(ctx); err != nil {
			middleware.Logger.ErrorContext(ctx, "error shutting down tracer", slog.String("error", err.Error()))
		}
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			middleware.Logger.ErrorContext(ctx, "error closing redis", slog.String("error", err.Error()))
		}
	}
	if sqlDB, err := r.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			middleware.Logger.ErrorContext(ctx, "error closing sql DB", slog.String("error", err.Error()))
		}
	}
}
