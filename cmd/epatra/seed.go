package main

import (
	"context"
	"fmt"

	"epatra/internal/db"
	"epatra/internal/seed"
	"epatra/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Seed the database with the built-in roles and form fields",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c.String("env-file"))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		logrus.Info("Connected to database")

		logrus.Info("Seeding roles...")
		if err := seed.SeedRoles(ctx, store.NewRoleRepository(pool)); err != nil {
			return fmt.Errorf("failed to seed roles: %w", err)
		}

		logrus.Info("Seeding field configurations...")
		if err := seed.SeedFieldConfigs(ctx, store.NewFieldConfigRepository(pool)); err != nil {
			return fmt.Errorf("failed to seed field configurations: %w", err)
		}

		logrus.Info("Seed complete")

		return nil
	},
}
