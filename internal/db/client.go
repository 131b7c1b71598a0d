package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/config"
)

const applicationName = "returns-dashboard"

func NewDb(ctx context.Context, cfg config.DBConfig) (*Database, error) {
	pool, err := pgxpool.Connect(ctx, cfg.DSN(applicationName))
	if err != nil {
		return nil, fmt.Errorf("connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return NewDatabase(pool), nil
}
