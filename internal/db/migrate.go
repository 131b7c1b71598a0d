package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/db/migrations"
)

// Migrate applies every pending migration. Goose needs database/sql, so a
// short-lived connection is opened through the pgx stdlib driver.
func Migrate(ctx context.Context, cfg config.DBConfig) error {
	conn, err := sql.Open("pgx", cfg.DSN(applicationName+"-migrate"))
	if err != nil {
		return fmt.Errorf("db open error: %w", err)
	}
	defer conn.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, conn, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}
