// Command jobs runs the periodic lifecycle jobs once. An external scheduler
// (cron, a Kubernetes CronJob) decides the cadence.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"keyhouse/internal/bootstrap"
	"keyhouse/internal/config"

	"github.com/google/uuid"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	target := flag.String("target", "", "Inspection id for confirm-inspection")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-target id] [job]\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Runs every periodic job when no job is named.")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	jobs := rt.Services.Jobs
	now := time.Now().UTC()

	if flag.NArg() == 0 {
		return jobs.RunAll(ctx, now)
	}

	var id uuid.UUID
	if *target != "" {
		if id, err = uuid.Parse(*target); err != nil {
			return fmt.Errorf("invalid target %q: %w", *target, err)
		}
	}
	affected, err := jobs.Run(ctx, flag.Arg(0), now, id)
	if err != nil {
		return err
	}
	log.Printf("%s: %d affected", flag.Arg(0), affected)
	return nil
}
