package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.sqlite3"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func int64p(v int64) *int64 { return &v }

func TestAddItemAndDuplicates(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	item := Item{ID: 19721, Name: "Glob of Ectoplasm", IconURL: "https://render/ecto.png", BuyThreshold: 2500, SellThreshold: 2000}
	if err := s.AddItem(ctx, item); err != nil {
		t.Fatalf("add item: %v", err)
	}

	if err := s.AddItem(ctx, Item{ID: 19721, Name: "Other", BuyThreshold: 1, SellThreshold: 1}); !errors.Is(err, ErrDuplicateItem) {
		t.Fatalf("same id should be ErrDuplicateItem, got %v", err)
	}
	if err := s.AddItem(ctx, Item{ID: 1, Name: "Glob of Ectoplasm", BuyThreshold: 1, SellThreshold: 1}); !errors.Is(err, ErrDuplicateItem) {
		t.Fatalf("same name should be ErrDuplicateItem, got %v", err)
	}

	items, err := s.Items(ctx)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("failed adds must not change state, got %d items", len(items))
	}
	got := items[19721]
	if got.Name != item.Name || got.IconURL != item.IconURL || got.BuyThreshold != 2500 || got.SellThreshold != 2000 {
		t.Fatalf("unexpected item: %+v", got)
	}
	if got.LowestSeen != LowestSeenSentinel || got.LastBuyPrice != 0 || got.LastSellPrice != 0 {
		t.Fatalf("new item should start with sentinel watermark and zero prices: %+v", got)
	}
}

func TestAddItemValidation(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	for _, it := range []Item{
		{ID: 0, Name: "x"},
		{ID: 5, Name: ""},
		{ID: 5, Name: "x", BuyThreshold: -1},
	} {
		if err := s.AddItem(ctx, it); !errors.Is(err, ErrInvalidItem) {
			t.Fatalf("expected ErrInvalidItem for %+v, got %v", it, err)
		}
	}
}

func TestDeleteItemTwice(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	if err := s.AddItem(ctx, Item{ID: 7, Name: "Mithril Ore", BuyThreshold: 10, SellThreshold: 5}); err != nil {
		t.Fatal(err)
	}

	removed, err := s.DeleteItem(ctx, 7)
	if err != nil || !removed {
		t.Fatalf("first delete should remove row: %v %v", removed, err)
	}
	removed, err = s.DeleteItem(ctx, 7)
	if err != nil || removed {
		t.Fatalf("second delete should report false: %v %v", removed, err)
	}
}

func TestSetThresholdsResetsWatermark(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	if err := s.AddItem(ctx, Item{ID: 7, Name: "Mithril Ore", BuyThreshold: 10, SellThreshold: 5}); err != nil {
		t.Fatal(err)
	}
	if ok, err := s.RecordPrices(ctx, 7, 8, 6, int64p(6)); err != nil || !ok {
		t.Fatalf("record prices: %v %v", ok, err)
	}

	ok, err := s.SetThresholds(ctx, 7, int64p(42), nil)
	if err != nil || !ok {
		t.Fatalf("set buy threshold: %v %v", ok, err)
	}
	items, _ := s.Items(ctx)
	got := items[7]
	if got.BuyThreshold != 42 || got.SellThreshold != 5 {
		t.Fatalf("only buy threshold should change: %+v", got)
	}
	if got.LowestSeen != LowestSeenSentinel {
		t.Fatalf("watermark should reset to sentinel, got %d", got.LowestSeen)
	}

	if ok, err := s.SetThresholds(ctx, 7, nil, int64p(3)); err != nil || !ok {
		t.Fatalf("set sell threshold: %v %v", ok, err)
	}
	items, _ = s.Items(ctx)
	if items[7].BuyThreshold != 42 || items[7].SellThreshold != 3 {
		t.Fatalf("unexpected thresholds: %+v", items[7])
	}

	if _, err := s.SetThresholds(ctx, 7, nil, nil); !errors.Is(err, ErrNoThreshold) {
		t.Fatalf("expected ErrNoThreshold, got %v", err)
	}
	if ok, err := s.SetThresholds(ctx, 999, int64p(1), nil); err != nil || ok {
		t.Fatalf("unknown id should report false: %v %v", ok, err)
	}
}

func TestRecordPrices(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	if err := s.AddItem(ctx, Item{ID: 42, Name: "Vial of Powerful Blood", BuyThreshold: 500, SellThreshold: 100}); err != nil {
		t.Fatal(err)
	}

	if ok, err := s.RecordPrices(ctx, 42, 600, 90, nil); err != nil || !ok {
		t.Fatalf("record prices: %v %v", ok, err)
	}
	items, _ := s.Items(ctx)
	if items[42].LastBuyPrice != 600 || items[42].LastSellPrice != 90 {
		t.Fatalf("prices not persisted: %+v", items[42])
	}
	if items[42].LowestSeen != LowestSeenSentinel {
		t.Fatalf("watermark must be untouched without a value: %d", items[42].LowestSeen)
	}

	if ok, err := s.RecordPrices(ctx, 42, 610, 80, int64p(80)); err != nil || !ok {
		t.Fatalf("record prices with watermark: %v %v", ok, err)
	}
	items, _ = s.Items(ctx)
	if items[42].LowestSeen != 80 {
		t.Fatalf("watermark not updated: %d", items[42].LowestSeen)
	}

	if ok, err := s.RecordPrices(ctx, 404, 1, 1, nil); err != nil || ok {
		t.Fatalf("unknown id should report false: %v %v", ok, err)
	}
}

func TestCooldownOnlyMovesForward(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	until, err := s.CooldownUntil(ctx)
	if err != nil || !until.IsZero() {
		t.Fatalf("fresh store should have no cooldown: %v %v", until, err)
	}

	later := time.Now().Add(20 * time.Minute).Truncate(time.Second)
	if err := s.SetCooldownUntil(ctx, later); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCooldownUntil(ctx, later.Add(-10*time.Minute)); err != nil {
		t.Fatal(err)
	}
	until, _ = s.CooldownUntil(ctx)
	if !until.Equal(later) {
		t.Fatalf("cooldown must not move backwards: got %s want %s", until, later)
	}

	if err := s.ClearCooldown(ctx); err != nil {
		t.Fatal(err)
	}
	until, _ = s.CooldownUntil(ctx)
	if !until.IsZero() {
		t.Fatalf("cooldown should be cleared, got %s", until)
	}
}

func TestResetAll(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	_ = s.AddItem(ctx, Item{ID: 1, Name: "a", BuyThreshold: 1, SellThreshold: 1})
	_ = s.AddItem(ctx, Item{ID: 2, Name: "b", BuyThreshold: 1, SellThreshold: 1})
	_ = s.SetCooldownUntil(ctx, time.Now().Add(time.Hour))
	_ = s.MarkRun(ctx, time.Now())

	if err := s.ResetAll(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	items, _ := s.Items(ctx)
	if len(items) != 0 {
		t.Fatalf("items should be gone, got %d", len(items))
	}
	state, err := s.State(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !state.LastRun.IsZero() || !state.LimitUntil.IsZero() {
		t.Fatalf("state timestamps should be zero: %+v", state)
	}
}

func TestReopenKeepsSingleStateRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.sqlite3")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s, err := OpenSQLite(ctx, path)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		s.Close()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var rows, version int
	if err := db.QueryRow(`SELECT COUNT(*) FROM state;`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Fatalf("expected exactly one state row, got %d", rows)
	}
	if err := db.QueryRow(`PRAGMA user_version;`).Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != len(sqliteMigrations) {
		t.Fatalf("expected user_version %d, got %d", len(sqliteMigrations), version)
	}
}

func TestMigratesLegacyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.sqlite3")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	legacy := []string{
		`CREATE TABLE items (id INTEGER NOT NULL UNIQUE, name TEXT, threshold INTEGER NOT NULL, lowest_seen INTEGER DEFAULT 999999999, PRIMARY KEY(id));`,
		`CREATE TABLE state (last_run INT, limit_until INT);`,
		`INSERT INTO state (last_run, limit_until) VALUES (0, 0);`,
		`INSERT INTO state (last_run, limit_until) VALUES (0, 0);`,
		`INSERT INTO items (id, name, threshold) VALUES (24, 'Vial of Thin Blood', 150);`,
	}
	for _, stmt := range legacy {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("legacy setup %q: %v", stmt, err)
		}
	}
	db.Close()

	s, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("open legacy: %v", err)
	}
	defer s.Close()

	items, err := s.Items(context.Background())
	if err != nil {
		t.Fatalf("items after migration: %v", err)
	}
	got := items[24]
	if got.BuyThreshold != 150 || got.SellThreshold != 150 {
		t.Fatalf("threshold split should copy the old value: %+v", got)
	}
	if got.IconURL != "" || got.LastBuyPrice != 0 {
		t.Fatalf("new columns should default: %+v", got)
	}

	state, err := s.State(context.Background())
	if err != nil {
		t.Fatalf("state after migration: %v", err)
	}
	if state.CustomDir != "" {
		t.Fatalf("custom dir should be empty, got %q", state.CustomDir)
	}
}
