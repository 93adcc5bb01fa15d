// Package postgres opens the pgx-backed connection pool and applies schema
// migrations.
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shorturl/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// New connects to the database described by cfg and sizes the pool from it.
// Zero pool settings keep the database/sql defaults.
func New(ctx context.Context, cfg config.Postgres) (*sqlx.DB, error) {
	const op = "postgres.New"

	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	configurePool(db, cfg)

	return db, nil
}

func configurePool(db *sqlx.DB, cfg config.Postgres) {
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
}
