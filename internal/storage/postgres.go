package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tpalerts/internal/config"
)

const (
	pgListItemsSQL = `SELECT
        id,
        name,
        COALESCE(icon_url, ''),
        buy_threshold,
        sell_threshold,
        lowest_seen,
        last_buy_price,
        last_sell_price
    FROM items
    ORDER BY id;`

	pgCountDuplicatesSQL = `SELECT COUNT(*) FROM items WHERE id = $1 OR name = $2;`

	pgInsertItemSQL = `INSERT INTO items (
        id, name, icon_url, buy_threshold, sell_threshold, lowest_seen, last_buy_price, last_sell_price
    ) VALUES (
        $1,$2,$3,$4,$5,$6,0,0
    );`

	pgDeleteItemSQL = `DELETE FROM items WHERE id = $1;`

	pgSetThresholdsSQL = `UPDATE items
    SET buy_threshold  = COALESCE($2, buy_threshold),
        sell_threshold = COALESCE($3, sell_threshold),
        lowest_seen    = $4
    WHERE id = $1;`

	pgRecordPricesSQL = `UPDATE items
    SET last_buy_price  = $2,
        last_sell_price = $3,
        lowest_seen     = COALESCE($4, lowest_seen)
    WHERE id = $1;`

	pgSelectStateSQL = `SELECT last_run, limit_until, COALESCE(custom_dir, '') FROM state LIMIT 1;`

	pgAdvanceCooldownSQL = `UPDATE state SET limit_until = GREATEST(limit_until, $1);`
	pgClearCooldownSQL   = `UPDATE state SET limit_until = 0;`
	pgMarkRunSQL         = `UPDATE state SET last_run = $1;`
	pgDeleteAllItemsSQL  = `DELETE FROM items;`
	pgResetStateSQL      = `UPDATE state SET last_run = 0, limit_until = 0;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`

	pgUniqueViolation = "23505"
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// PostgresStore persists state in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wires a pgx pool into a store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *PostgresStore) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session lock dies with the connection anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// Items returns every tracked item keyed by id.
func (s *PostgresStore) Items(ctx context.Context) (map[int64]Item, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, pgListItemsSQL)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
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
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// AddItem inserts a new item, failing with ErrDuplicateItem when the id or
// name is taken.
func (s *PostgresStore) AddItem(ctx context.Context, item Item) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if err := validateItem(item); err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin add item: %w", err)
	}
	defer tx.Rollback(ctx)

	var count int64
	if err := tx.QueryRow(ctx, pgCountDuplicatesSQL, item.ID, item.Name).Scan(&count); err != nil {
		return fmt.Errorf("check duplicate item: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: id=%d name=%s", ErrDuplicateItem, item.ID, item.Name)
	}

	if _, err := tx.Exec(ctx, pgInsertItemSQL,
		item.ID,
		item.Name,
		item.IconURL,
		item.BuyThreshold,
		item.SellThreshold,
		LowestSeenSentinel,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: id=%d name=%s", ErrDuplicateItem, item.ID, item.Name)
		}
		return fmt.Errorf("insert item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit add item: %w", err)
	}
	return nil
}

// DeleteItem removes the item and reports whether a row existed.
func (s *PostgresStore) DeleteItem(ctx context.Context, id int64) (bool, error) {
	return s.execOne(ctx, "delete item", pgDeleteItemSQL, id)
}

// SetThresholds updates whichever thresholds are non-nil and resets the
// lowest-seen watermark.
func (s *PostgresStore) SetThresholds(ctx context.Context, id int64, buy, sell *int64) (bool, error) {
	if err := validateThresholds(buy, sell); err != nil {
		return false, err
	}
	return s.execOne(ctx, "update thresholds", pgSetThresholdsSQL, id, buy, sell, LowestSeenSentinel)
}

// RecordPrices overwrites the last seen prices, and the watermark when given.
func (s *PostgresStore) RecordPrices(ctx context.Context, id int64, buy, sell int64, lowestSeen *int64) (bool, error) {
	return s.execOne(ctx, "record prices", pgRecordPricesSQL, id, buy, sell, lowestSeen)
}

// State reads the singleton state row.
func (s *PostgresStore) State(ctx context.Context) (GlobalState, error) {
	pool, err := s.getPool()
	if err != nil {
		return GlobalState{}, err
	}
	var lastRun, limitUntil int64
	var customDir string
	if err := pool.QueryRow(ctx, pgSelectStateSQL).Scan(&lastRun, &limitUntil, &customDir); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GlobalState{}, fmt.Errorf("read state: state row missing")
		}
		return GlobalState{}, fmt.Errorf("read state: %w", err)
	}
	return GlobalState{
		LastRun:    fromUnix(lastRun),
		LimitUntil: fromUnix(limitUntil),
		CustomDir:  customDir,
	}, nil
}

// CooldownUntil returns the rate-limit cutoff, zero when none is set.
func (s *PostgresStore) CooldownUntil(ctx context.Context) (time.Time, error) {
	state, err := s.State(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return state.LimitUntil, nil
}

// SetCooldownUntil advances the cutoff to until unless it is already later.
func (s *PostgresStore) SetCooldownUntil(ctx context.Context, until time.Time) error {
	_, err := s.execOne(ctx, "set cooldown", pgAdvanceCooldownSQL, toUnix(until))
	return err
}

// ClearCooldown removes any active cutoff.
func (s *PostgresStore) ClearCooldown(ctx context.Context) error {
	_, err := s.execOne(ctx, "clear cooldown", pgClearCooldownSQL)
	return err
}

// MarkRun records the completion time of a poll cycle.
func (s *PostgresStore) MarkRun(ctx context.Context, at time.Time) error {
	_, err := s.execOne(ctx, "mark run", pgMarkRunSQL, toUnix(at))
	return err
}

// ResetAll deletes every item and zeroes the state timestamps.
func (s *PostgresStore) ResetAll(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, pgDeleteAllItemsSQL); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	if _, err := tx.Exec(ctx, pgResetStateSQL); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) execOne(ctx context.Context, op, query string, args ...any) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	tag, err := pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected() == 1, nil
}

var (
	_ Store          = (*PostgresStore)(nil)
	_ AdvisoryLocker = (*PostgresStore)(nil)
)
