package database

import (
	"context"
	"fmt"
	"log/slog"

	"keyhouse/internal/middleware"

	"gorm.io/gorm"
)

// SchemaStatus summarizes the migration state for cmd/migrate.
type SchemaStatus struct {
	Driver            string
	AppliedVersions   []int
	PendingMigrations []Migration
}

// ApplySchema creates or updates every table, then applies the SQL
// migrations that add partial unique indexes.
func ApplySchema(ctx context.Context, db *gorm.DB) error {
	middleware.Logger.InfoContext(ctx, "Running GORM AutoMigrate", slog.String("driver", db.Dialector.Name()))
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("run sql migrations: %w", err)
	}
	return nil
}

// GetSchemaStatus reports applied and pending SQL migrations.
func GetSchemaStatus(ctx context.Context, db *gorm.DB) (*SchemaStatus, error) {
	if err := db.WithContext(ctx).AutoMigrate(&MigrationLog{}); err != nil {
		return nil, fmt.Errorf("failed to ensure migration logs table: %w", err)
	}

	registered, err := LoadMigrations()
	if err != nil {
		return nil, err
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{Driver: db.Dialector.Name(), AppliedVersions: applied}
	appliedSet := make(map[int]bool, len(applied))
	for _, version := range applied {
		appliedSet[version] = true
	}
	for _, m := range registered {
		if !appliedSet[m.Version] {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
