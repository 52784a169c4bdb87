package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tpalerts/internal/config"
	"tpalerts/internal/price"
	"tpalerts/internal/storage"
)

func newTestApp(t *testing.T, marketURL string) (*App, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Data:      config.DataConfig{Dir: dir},
		Database:  config.DatabaseConfig{Driver: config.DriverSQLite},
		Scheduler: config.SchedulerConfig{Interval: time.Minute, EmptyWait: time.Second},
		Market: config.MarketConfig{
			BaseURL:           marketURL,
			RequestTimeout:    time.Second,
			RequestsPerSecond: 100,
			Burst:             10,
			BatchSize:         200,
			RateLimitCooldown: 20 * time.Minute,
		},
		File: filepath.Join(dir, "config.yaml"),
	}
	a := NewApp(cfg, zerolog.Nop())
	var out bytes.Buffer
	a.Out = &out
	return a, &out
}

func itemServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") == "19976" {
			_, _ = w.Write([]byte(`[{"id":19976,"name":"Mystic Coin","icon":"https://render/coin.png"}]`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"text":"all ids provided are invalid"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestItemLifecycle(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t, itemServer(t).URL)

	if err := a.Add(ctx, 19976, "1g50s", "1g"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out.String(), "Item added successfully: Mystic Coin") {
		t.Fatalf("unexpected output: %s", out.String())
	}

	if err := a.Add(ctx, 19976, "1g50s", "1g"); !errors.Is(err, storage.ErrDuplicateItem) {
		t.Fatalf("重复添加应返回 ErrDuplicateItem, 实际 %v", err)
	}
	if err := a.Add(ctx, 1, "1g", "1g"); !errors.Is(err, storage.ErrItemNotFound) {
		t.Fatalf("unknown id should be ErrItemNotFound, got %v", err)
	}
	if err := a.Add(ctx, 19976, "abc", "1g"); !errors.Is(err, price.ErrInvalidPriceFormat) {
		t.Fatalf("bad threshold should be ErrInvalidPriceFormat, got %v", err)
	}

	out.Reset()
	if err := a.Threshold(ctx, 19976, "", "90s"); err != nil {
		t.Fatalf("threshold: %v", err)
	}
	if !strings.Contains(out.String(), "Sell Threshold updated successfully to 0g90s00c") {
		t.Fatalf("unexpected output: %s", out.String())
	}
	if err := a.Threshold(ctx, 5, "1g", ""); !errors.Is(err, storage.ErrItemNotFound) {
		t.Fatalf("missing item should be ErrItemNotFound, got %v", err)
	}

	out.Reset()
	if err := a.List(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "1g50s00c") || !strings.Contains(out.String(), "0g90s00c") {
		t.Fatalf("list output missing thresholds:\n%s", out.String())
	}

	if err := a.Delete(ctx, 19976); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := a.Delete(ctx, 19976); !errors.Is(err, storage.ErrItemNotFound) {
		t.Fatalf("second delete should be ErrItemNotFound, got %v", err)
	}
}

func TestAddRespectsCooldown(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected while cooling down")
	}))
	defer srv.Close()
	a, _ := newTestApp(t, srv.URL)

	store, err := a.openStore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetCooldownUntil(ctx, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	store.Close()

	if err := a.Add(ctx, 19976, "1g", "1g"); err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestCleanResetsStoreAndTruncatesLogs(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t, itemServer(t).URL)
	if err := a.Add(ctx, 19976, "1g", "1g"); err != nil {
		t.Fatal(err)
	}

	if err := os.MkdirAll(a.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	logFile := filepath.Join(a.Paths.LogDir, "2026-01-01_alerts.log")
	if err := os.WriteFile(logFile, []byte("old alert\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := a.Clean(ctx); err != nil {
		t.Fatalf("clean: %v", err)
	}

	store, err := a.openStore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	items, err := store.Items(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("items should be gone, got %d", len(items))
	}
	info, err := os.Stat(logFile)
	if err != nil {
		t.Fatalf("log file should survive: %v", err)
	}
	if info.Size() != 0 {
		t.Fatal("log file should be empty")
	}
}

func TestExportCSVAndPNG(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t, itemServer(t).URL)
	if err := a.Add(ctx, 19976, "1g50s", "1g"); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "items.csv")
	pngPath := filepath.Join(dir, "out", "items.png")
	if err := a.Export(ctx, ExportOptions{CSVPath: csvPath, PNGPath: pngPath}); err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][0] != "19976" || rows[1][2] != "15000" || rows[1][6] != "" {
		t.Fatalf("unexpected csv rows: %v", rows)
	}

	png, err := os.ReadFile(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("png output is not a PNG file")
	}

	if err := a.Export(ctx, ExportOptions{}); err == nil {
		t.Fatal("export without outputs should fail")
	}
}

func TestLogsListing(t *testing.T) {
	a, out := newTestApp(t, "http://127.0.0.1:1")
	if err := a.Logs(""); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No logs available.") {
		t.Fatalf("unexpected output %q", out.String())
	}

	if err := os.WriteFile(filepath.Join(a.Paths.LogDir, "2026-02-03_alerts.log"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := a.Logs("2026-02-03_alerts.log"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "hello") {
		t.Fatalf("log content missing: %q", out.String())
	}
}

func TestSimulateAlertRequiresWebhook(t *testing.T) {
	a, _ := newTestApp(t, "http://127.0.0.1:1")
	a.Config.Alerting.Enabled = true
	err := a.SimulateAlert(context.Background(), SimulateOptions{BuyThreshold: "1g", SellThreshold: "1g", BuyPrice: "2g", SellPrice: "2g"})
	if err == nil {
		t.Fatal("missing webhook should fail")
	}

	a.Config.Alerting.Discord.WebhookURL = "https://example.com/hook"
	if err := a.SimulateAlert(context.Background(), SimulateOptions{}); err == nil || !strings.Contains(err.Error(), "invalid webhook") {
		t.Fatalf("foreign webhook should be rejected, got %v", err)
	}
}

func TestRunOnceWritesAlertLog(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/items":
			_, _ = w.Write([]byte(`[{"id":42,"name":"Mystic Coin","icon":""}]`))
		case "/v2/commerce/listings":
			_, _ = w.Write([]byte(`[{"id":42,"buys":[{"listings":1,"unit_price":600,"quantity":5}],"sells":[{"listings":1,"unit_price":90,"quantity":2}]}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a, out := newTestApp(t, srv.URL)
	if err := a.Add(ctx, 42, "5s", "1s"); err != nil {
		t.Fatal(err)
	}
	out.Reset()

	if err := a.Run(ctx, RunOptions{Once: true}); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !strings.Contains(out.String(), "Alert items: 2") {
		t.Fatalf("status table missing:\n%s", out.String())
	}

	names, err := a.LogNames()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 {
		t.Fatalf("expected one alert log, got %v", names)
	}
	content, err := os.ReadFile(filepath.Join(a.Paths.LogDir, names[0]))
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(content), "\n"); lines != 2 {
		t.Fatalf("expected two alert lines, got %d:\n%s", lines, content)
	}
}
