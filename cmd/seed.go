package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/repository/postgresql"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/seed"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load return order and return request fixtures into the document store",
	Long: `Loads YAML fixtures into the postgres document store. Without --file the
fixtures shipped with the binary are used. The memory backend seeds itself on
startup and does not need this command.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "Path to a YAML fixtures file")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Store.Backend != config.BackendPostgres {
		return fmt.Errorf("seed requires STORE_BACKEND=%s, got %q", config.BackendPostgres, cfg.Store.Backend)
	}

	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	fixtures, err := seed.Load(seedFile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	database, err := db.NewDb(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close()

	store := storage.NewPostgresStore(database, postgresql.NewDocumentRepo(database), cfg.Store.ProjectID)
	if err := seed.Apply(ctx, store, fixtures); err != nil {
		return err
	}

	log.Info("fixtures loaded",
		zap.String("project", cfg.Store.ProjectID),
		zap.Int("orders", len(fixtures.Orders)),
		zap.Int("requests", len(fixtures.Requests)))
	return nil
}
