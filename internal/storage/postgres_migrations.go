package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const pgCreateMigrationsTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

type pgMigration struct {
	version    int
	name       string
	statements []string
}

var pgMigrations = []pgMigration{
	{version: 1, name: "items", statements: []string{
		`CREATE TABLE IF NOT EXISTS items (
            id             BIGINT PRIMARY KEY,
            name           TEXT NOT NULL UNIQUE,
            icon_url       TEXT,
            buy_threshold  BIGINT NOT NULL,
            sell_threshold BIGINT NOT NULL,
            lowest_seen    BIGINT NOT NULL DEFAULT 999999999
        );`,
	}},
	{version: 2, name: "state", statements: []string{
		`CREATE TABLE IF NOT EXISTS state (
            singleton   BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
            last_run    BIGINT NOT NULL DEFAULT 0,
            limit_until BIGINT NOT NULL DEFAULT 0
        );`,
		`INSERT INTO state (singleton) VALUES (TRUE) ON CONFLICT (singleton) DO NOTHING;`,
	}},
	{version: 3, name: "items last seen prices", statements: []string{
		`ALTER TABLE items ADD COLUMN IF NOT EXISTS last_buy_price BIGINT NOT NULL DEFAULT 0;`,
		`ALTER TABLE items ADD COLUMN IF NOT EXISTS last_sell_price BIGINT NOT NULL DEFAULT 0;`,
	}},
	{version: 4, name: "state.custom_dir", statements: []string{
		`ALTER TABLE state ADD COLUMN IF NOT EXISTS custom_dir TEXT;`,
	}},
}

// Migrate applies pending schema steps, one transaction per step.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, pgCreateMigrationsTableSQL); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range pgMigrations {
		if m.version <= current {
			continue
		}
		if err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			for _, stmt := range m.statements {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2) ON CONFLICT (version) DO NOTHING;`,
				m.version, m.name)
			return err
		}); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}
