package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sessionkit/auth-api/internal/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply embedded database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		if err := postgres.Migrate(ctx, cfg.DB.DatabaseURL); err != nil {
			log.Error("migrate_failed", slog.String("err", err.Error()))
			return err
		}

		log.Info("migrate_done")
		return nil
	},
}
