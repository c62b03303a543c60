package seed

import (
	"context"
	"fmt"
	"log/slog"

	"keyhouse/internal/middleware"
	"keyhouse/internal/service"
)

// Options selects what Run seeds.
type Options struct {
	// StageConfig overrides the built-in stage configuration when set.
	StageConfig []StageBlock
	Demo        *DemoOptions
}

// Result summarizes a seeding run.
type Result struct {
	StagesApplied int
	Demo          *Demo
}

// Run applies the review stage configuration and, when requested, demo data.
func Run(ctx context.Context, svc *service.Services, opts Options) (*Result, error) {
	blocks := opts.StageConfig
	if blocks == nil {
		var err error
		blocks, err = BuiltInStageConfig()
		if err != nil {
			return nil, err
		}
	}

	applied, err := ApplyStageConfig(ctx, svc.Reviews, blocks)
	if err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "review stages seeded", slog.Int("stages", applied))

	res := &Result{StagesApplied: applied}
	if opts.Demo != nil {
		demo, err := NewFactory(svc, opts.Demo.Seed).SeedDemo(ctx, *opts.Demo)
		if err != nil {
			return res, fmt.Errorf("demo data: %w", err)
		}
		middleware.Logger.InfoContext(ctx, "demo data seeded",
			slog.Int("developers", len(demo.Developers)),
			slog.Int("applications", len(demo.Applications)),
			slog.Int("inspections", len(demo.Inspections)),
		)
		res.Demo = demo
	}
	return res, nil
}
