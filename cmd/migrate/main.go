// Command migrate manages the keyhouse schema outside of server startup.
//
//	migrate up            apply pending SQL migrations
//	migrate auto          AutoMigrate every model, then apply SQL migrations
//	migrate status        print driver plus applied and pending counts
//	migrate list          print every registered migration with its state
//	migrate down VERSION  revert one applied migration
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"keyhouse/internal/config"
	"keyhouse/internal/database"

	"gorm.io/gorm"
)

var errUsage = errors.New("usage: migrate <up|auto|status|list|down> [version]")

func main() {
	flag.Parse()
	if flag.NArg() < 1 {
		log.Fatal(errUsage)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Connect does not apply the schema; that is what this command is for.
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer func() { _ = sqlDB.Close() }()
	}

	if err := execute(context.Background(), db, flag.Args(), os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// execute runs one migrate subcommand against db and writes its report to out.
func execute(ctx context.Context, db *gorm.DB, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
		fmt.Fprintln(out, "sql migrations applied")

	case "auto":
		if err := database.ApplySchema(ctx, db); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		fmt.Fprintln(out, "models and sql migrations applied")

	case "status":
		status, err := database.GetSchemaStatus(ctx, db)
		if err != nil {
			return fmt.Errorf("schema status: %w", err)
		}
		fmt.Fprintf(out, "driver=%s applied=%d pending=%d\n",
			status.Driver, len(status.AppliedVersions), len(status.PendingMigrations))
		for _, m := range status.PendingMigrations {
			fmt.Fprintf(out, "pending %s\n", m.String())
		}

	case "list":
		return list(ctx, db, out)

	case "down":
		if len(args) < 2 {
			return errors.New("usage: migrate down <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback %06d: %w", version, err)
		}
		fmt.Fprintf(out, "rolled back %06d\n", version)

	default:
		return errUsage
	}
	return nil
}

// list prints every embedded migration, marking the ones already applied.
func list(ctx context.Context, db *gorm.DB, out io.Writer) error {
	registered, err := database.LoadMigrations()
	if err != nil {
		return err
	}
	status, err := database.GetSchemaStatus(ctx, db)
	if err != nil {
		return fmt.Errorf("schema status: %w", err)
	}

	applied := make(map[int]bool, len(status.AppliedVersions))
	for _, v := range status.AppliedVersions {
		applied[v] = true
	}
	for _, m := range registered {
		mark := " "
		if applied[m.Version] {
			mark = "x"
		}
		fmt.Fprintf(out, "[%s] %s\n", mark, m.String())
	}
	return nil
}
