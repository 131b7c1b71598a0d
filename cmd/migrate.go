package main

import (
	"github.com/spf13/cobra"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := logger.New(cfg.LogLevel)
		defer func() { _ = log.Sync() }()

		if err := db.Migrate(cmd.Context(), cfg.DB); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	},
}
