package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteListItemsSQL = `SELECT
        id,
        COALESCE(name, ''),
        COALESCE(icon_url, ''),
        buy_threshold,
        sell_threshold,
        COALESCE(lowest_seen, 999999999),
        COALESCE(last_buy_price, 0),
        COALESCE(last_sell_price, 0)
    FROM items
    ORDER BY id;`

	sqliteCountDuplicatesSQL = `SELECT COUNT(*) FROM items WHERE id = ? OR name = ?;`

	sqliteInsertItemSQL = `INSERT INTO items (
        id, name, icon_url, buy_threshold, sell_threshold, lowest_seen, last_buy_price, last_sell_price
    ) VALUES (?, ?, ?, ?, ?, ?, 0, 0);`

	sqliteDeleteItemSQL = `DELETE FROM items WHERE id = ?;`

	sqliteRecordPricesSQL = `UPDATE items
    SET last_buy_price = ?, last_sell_price = ?
    WHERE id = ?;`

	sqliteRecordPricesWatermarkSQL = `UPDATE items
    SET last_buy_price = ?, last_sell_price = ?, lowest_seen = ?
    WHERE id = ?;`

	sqliteSelectStateSQL = `SELECT
        COALESCE(last_run, 0),
        COALESCE(limit_until, 0),
        COALESCE(custom_dir, '')
    FROM state
    LIMIT 1;`

	sqliteAdvanceCooldownSQL = `UPDATE state SET limit_until = MAX(COALESCE(limit_until, 0), ?);`
	sqliteClearCooldownSQL   = `UPDATE state SET limit_until = 0;`
	sqliteMarkRunSQL         = `UPDATE state SET last_run = ?;`
	sqliteDeleteAllItemsSQL  = `DELETE FROM items;`
	sqliteResetStateSQL      = `UPDATE state SET last_run = 0, limit_until = 0;`
)

// SQLiteStore persists state in a single local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps PRAGMA state and write ordering consistent
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := migrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	return s.db, nil
}

// Items returns every tracked item keyed by id.
func (s *SQLiteStore) Items(ctx context.Context) (map[int64]Item, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, sqliteListItemsSQL)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64]Item)
	for rows.Next() {
		var it Item
		if err := rows.Scan(
			&it.ID,
			&it.Name,
			&it.IconURL,
			&it.BuyThreshold,
			&it.SellThreshold,
			&it.LowestSeen,
			&it.LastBuyPrice,
			&it.LastSellPrice,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items[it.ID] = it
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// AddItem inserts a new item, failing with ErrDuplicateItem when the id or
// name is taken.
func (s *SQLiteStore) AddItem(ctx context.Context, item Item) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if err := validateItem(item); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add item: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, sqliteCountDuplicatesSQL, item.ID, item.Name).Scan(&count); err != nil {
		return fmt.Errorf("check duplicate item: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: id=%d name=%s", ErrDuplicateItem, item.ID, item.Name)
	}

	if _, err := tx.ExecContext(ctx, sqliteInsertItemSQL,
		item.ID,
		item.Name,
		item.IconURL,
		item.BuyThreshold,
		item.SellThreshold,
		LowestSeenSentinel,
	); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add item: %w", err)
	}
	return nil
}

// DeleteItem removes the item and reports whether a row existed.
func (s *SQLiteStore) DeleteItem(ctx context.Context, id int64) (bool, error) {
	db, err := s.getDB()
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx, sqliteDeleteItemSQL, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	return affectedOne(res)
}

// SetThresholds updates whichever thresholds are non-nil and resets the
// lowest-seen watermark.
func (s *SQLiteStore) SetThresholds(ctx context.Context, id int64, buy, sell *int64) (bool, error) {
	db, err := s.getDB()
	if err != nil {
		return false, err
	}
	if err := validateThresholds(buy, sell); err != nil {
		return false, err
	}

	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if buy != nil {
		sets = append(sets, "buy_threshold = ?")
		args = append(args, *buy)
	}
	if sell != nil {
		sets = append(sets, "sell_threshold = ?")
		args = append(args, *sell)
	}
	sets = append(sets, "lowest_seen = ?")
	args = append(args, LowestSeenSentinel, id)

	query := "UPDATE items SET " + strings.Join(sets, ", ") + " WHERE id = ?;"
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update thresholds: %w", err)
	}
	return affectedOne(res)
}

// RecordPrices overwrites the last seen prices, and the watermark when given.
func (s *SQLiteStore) RecordPrices(ctx context.Context, id int64, buy, sell int64, lowestSeen *int64) (bool, error) {
	db, err := s.getDB()
	if err != nil {
		return false, err
	}

	var res sql.Result
	if lowestSeen != nil {
		res, err = db.ExecContext(ctx, sqliteRecordPricesWatermarkSQL, buy, sell, *lowestSeen, id)
	} else {
		res, err = db.ExecContext(ctx, sqliteRecordPricesSQL, buy, sell, id)
	}
	if err != nil {
		return false, fmt.Errorf("record prices: %w", err)
	}
	return affectedOne(res)
}

// State reads the singleton state row.
func (s *SQLiteStore) State(ctx context.Context) (GlobalState, error) {
	db, err := s.getDB()
	if err != nil {
		return GlobalState{}, err
	}
	var lastRun, limitUntil int64
	var customDir string
	if err := db.QueryRowContext(ctx, sqliteSelectStateSQL).Scan(&lastRun, &limitUntil, &customDir); err != nil {
		return GlobalState{}, fmt.Errorf("read state: %w", err)
	}
	return GlobalState{
		LastRun:    fromUnix(lastRun),
		LimitUntil: fromUnix(limitUntil),
		CustomDir:  customDir,
	}, nil
}

// CooldownUntil returns the rate-limit cutoff, zero when none is set.
func (s *SQLiteStore) CooldownUntil(ctx context.Context) (time.Time, error) {
	state, err := s.State(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return state.LimitUntil, nil
}

// SetCooldownUntil advances the cutoff to until unless it is already later.
func (s *SQLiteStore) SetCooldownUntil(ctx context.Context, until time.Time) error {
	return s.exec(ctx, "set cooldown", sqliteAdvanceCooldownSQL, toUnix(until))
}

// ClearCooldown removes any active cutoff.
func (s *SQLiteStore) ClearCooldown(ctx context.Context) error {
	return s.exec(ctx, "clear cooldown", sqliteClearCooldownSQL)
}

// MarkRun records the completion time of a poll cycle.
func (s *SQLiteStore) MarkRun(ctx context.Context, at time.Time) error {
	return s.exec(ctx, "mark run", sqliteMarkRunSQL, toUnix(at))
}

// ResetAll deletes every item and zeroes the state timestamps.
func (s *SQLiteStore) ResetAll(ctx context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, sqliteDeleteAllItemsSQL); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sqliteResetStateSQL); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

func (s *SQLiteStore) exec(ctx context.Context, op, query string, args ...any) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

var _ Store = (*SQLiteStore)(nil)
