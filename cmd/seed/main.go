// Command seed loads review stage configuration and optional demo data.
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
	"keyhouse/internal/middleware"
	"keyhouse/internal/models"
	"keyhouse/internal/seed"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	stageFile := flag.String("stages", "", "YAML stage configuration (defaults to the built-in set)")
	demo := flag.Bool("demo", false, "Seed demo organizations, slots and applications")
	developers := flag.Int("developers", 2, "Demo developer organizations")
	buyers := flag.Int("buyers", 5, "Demo buyers")
	randSeed := flag.Int64("seed", 0, "Faker seed; 0 picks a random one")
	tokens := flag.Bool("tokens", true, "Print bearer tokens for the demo actors")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	opts := seed.Options{}
	if *stageFile != "" {
		f, err := os.Open(*stageFile)
		if err != nil {
			return fmt.Errorf("open stage file: %w", err)
		}
		blocks, err := seed.LoadStageConfig(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", *stageFile, err)
		}
		opts.StageConfig = blocks
	}
	if *demo {
		opts.Demo = &seed.DemoOptions{Developers: *developers, Buyers: *buyers, Seed: *randSeed}
	}

	res, err := seed.Run(ctx, rt.Services, opts)
	if err != nil {
		return err
	}
	log.Printf("review stages applied: %d", res.StagesApplied)

	if res.Demo == nil || !*tokens {
		return nil
	}

	platform := models.Actor{
		UserID:           uuid.New(),
		OrganizationID:   uuid.New(),
		OrganizationType: models.OrganizationTypePlatform,
	}
	printToken := func(label string, a models.Actor) error {
		token, err := middleware.SignActorToken(a, cfg.JWTSecret, jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		})
		if err != nil {
			return fmt.Errorf("sign token for %s: %w", label, err)
		}
		fmt.Printf("%-28s %s\n", label, token)
		return nil
	}

	if err := printToken("platform", platform); err != nil {
		return err
	}
	if err := printToken("lender "+res.Demo.Lender.OrganizationID.String()[:8], res.Demo.Lender); err != nil {
		return err
	}
	for _, d := range res.Demo.Developers {
		if err := printToken("developer "+d.OrganizationID.String()[:8], d); err != nil {
			return err
		}
	}
	for _, b := range res.Demo.Buyers {
		if err := printToken("buyer "+b.UserID.String()[:8], b); err != nil {
			return err
		}
	}
	return nil
}
