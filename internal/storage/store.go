package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tpalerts/internal/config"
)

var (
	// ErrDuplicateItem indicates the id or name is already tracked.
	ErrDuplicateItem = errors.New("storage: item with this id or name already exists")
	// ErrItemNotFound is used by callers that turn a false result into an error.
	ErrItemNotFound = errors.New("storage: item not found")
	// ErrNoThreshold indicates SetThresholds was called without a value.
	ErrNoThreshold = errors.New("storage: at least one threshold must be provided")
	// ErrInvalidItem indicates an item failed basic validation.
	ErrInvalidItem = errors.New("storage: invalid item")
	// ErrNotConfigured indicates the storage handle was not initialised.
	ErrNotConfigured = errors.New("storage: not configured")
)

// ItemStore defines operations on tracked items. Not-found conditions are
// reported as a false result, not an error.
type ItemStore interface {
	Items(ctx context.Context) (map[int64]Item, error)
	AddItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, id int64) (bool, error)
	SetThresholds(ctx context.Context, id int64, buy, sell *int64) (bool, error)
	RecordPrices(ctx context.Context, id int64, buy, sell int64, lowestSeen *int64) (bool, error)
}

// CooldownStore exposes the rate-limit cutoff.
type CooldownStore interface {
	CooldownUntil(ctx context.Context) (time.Time, error)
	// SetCooldownUntil only ever moves the cutoff forward.
	SetCooldownUntil(ctx context.Context, until time.Time) error
	ClearCooldown(ctx context.Context) error
}

// StateStore defines operations on the singleton state row.
type StateStore interface {
	CooldownStore
	State(ctx context.Context) (GlobalState, error)
	MarkRun(ctx context.Context, at time.Time) error
	ResetAll(ctx context.Context) error
}

// Store aggregates item and state persistence. Every mutating call commits
// before it returns.
type Store interface {
	ItemStore
	StateStore
	Close() error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Open selects the backend from configuration and applies pending migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig, sqlitePath string) (Store, error) {
	switch cfg.Driver {
	case "", config.DriverSQLite:
		return OpenSQLite(ctx, sqlitePath)
	case config.DriverPostgres:
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func validateItem(item Item) error {
	if item.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidItem)
	}
	if item.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	if item.BuyThreshold < 0 || item.SellThreshold < 0 {
		return fmt.Errorf("%w: thresholds cannot be negative", ErrInvalidItem)
	}
	return nil
}

func validateThresholds(buy, sell *int64) error {
	if buy == nil && sell == nil {
		return ErrNoThreshold
	}
	if (buy != nil && *buy < 0) || (sell != nil && *sell < 0) {
		return fmt.Errorf("%w: thresholds cannot be negative", ErrInvalidItem)
	}
	return nil
}
