package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Base layout for a fresh database. Older files created before a column
// existed are brought forward by the numbered steps below.
const sqliteBootstrapSQL = `
CREATE TABLE IF NOT EXISTS items (
    id              INTEGER NOT NULL UNIQUE,
    name            TEXT,
    buy_threshold   INTEGER NOT NULL,
    sell_threshold  INTEGER NOT NULL,
    lowest_seen     INTEGER DEFAULT 999999999,
    last_buy_price  INTEGER DEFAULT 0,
    last_sell_price INTEGER DEFAULT 0,
    icon_url        TEXT,
    PRIMARY KEY(id)
);
CREATE TABLE IF NOT EXISTS state (last_run INT, limit_until INT, custom_dir TEXT);
`

type sqliteMigration struct {
	version int
	name    string
	up      func(ctx context.Context, tx *sql.Tx) error
}

// Versions match PRAGMA user_version values written by earlier releases, so
// existing databases pick up where they left off.
var sqliteMigrations = []sqliteMigration{
	{version: 1, name: "items.icon_url", up: addColumns("items", column{"icon_url", "TEXT"})},
	{version: 2, name: "items last seen prices", up: addColumns("items",
		column{"last_buy_price", "INTEGER DEFAULT 0"},
		column{"last_sell_price", "INTEGER DEFAULT 0"},
	)},
	{version: 3, name: "state.custom_dir", up: addColumns("state", column{"custom_dir", "TEXT"})},
	{version: 4, name: "split buy/sell thresholds", up: splitThresholds},
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	if err := bootstrapSQLite(ctx, db); err != nil {
		return err
	}

	var current int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range sqliteMigrations {
		if m.version <= current {
			continue
		}
		if err := applySQLiteMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		current = m.version
	}
	return nil
}

func bootstrapSQLite(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bootstrap: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, sqliteBootstrapSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	// exactly one state row
	var rows int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM state;`).Scan(&rows); err != nil {
		return fmt.Errorf("count state rows: %w", err)
	}
	switch {
	case rows == 0:
		if _, err := tx.ExecContext(ctx, `INSERT INTO state (last_run, limit_until) VALUES (0, 0);`); err != nil {
			return fmt.Errorf("seed state: %w", err)
		}
	case rows > 1:
		if _, err := tx.ExecContext(ctx, `DELETE FROM state WHERE rowid NOT IN (SELECT MIN(rowid) FROM state);`); err != nil {
			return fmt.Errorf("dedupe state: %w", err)
		}
	}

	return tx.Commit()
}

func applySQLiteMigration(ctx context.Context, db *sql.DB, m sqliteMigration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.up(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, m.version)); err != nil {
		return fmt.Errorf("bump user_version: %w", err)
	}
	return tx.Commit()
}

type column struct {
	name string
	decl string
}

func addColumns(table string, cols ...column) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		existing, err := tableColumns(ctx, tx, table)
		if err != nil {
			return err
		}
		for _, c := range cols {
			if existing[c.name] {
				continue
			}
			stmt := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s;`, table, c.name, c.decl)
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("add %s.%s: %w", table, c.name, err)
			}
		}
		return nil
	}
}

func splitThresholds(ctx context.Context, tx *sql.Tx) error {
	existing, err := tableColumns(ctx, tx, "items")
	if err != nil {
		return err
	}
	if existing["sell_threshold"] {
		return nil
	}
	stmts := []string{
		`ALTER TABLE items RENAME COLUMN threshold TO buy_threshold;`,
		`ALTER TABLE items ADD COLUMN sell_threshold INTEGER NOT NULL DEFAULT 0;`,
		`UPDATE items SET sell_threshold = buy_threshold;`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func tableColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s);`, table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
