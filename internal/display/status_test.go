package display

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"tpalerts/internal/fetcher"
	"tpalerts/internal/storage"
)

func TestStatus(t *testing.T) {
	item := storage.Item{BuyThreshold: 100, SellThreshold: 50}
	cases := []struct {
		buy, sell int64
		want      string
	}{
		{150, 40, "SELL/BUY"},
		{150, 60, "SELL"},
		{90, 40, "BUY"},
		{90, 60, "WAIT"},
	}
	for _, tc := range cases {
		listing := fetcher.Listing{Buy: fetcher.Order{Price: tc.buy}, Sell: fetcher.Order{Price: tc.sell}}
		if got := Status(item, listing); got != tc.want {
			t.Fatalf("buy=%d sell=%d: want %s got %s", tc.buy, tc.sell, tc.want, got)
		}
	}
}

func TestRenderStatus(t *testing.T) {
	items := map[int64]storage.Item{
		42: {ID: 42, Name: "Mystic Coin", BuyThreshold: 500, SellThreshold: 100, LastBuyPrice: 400},
		43: {ID: 43, Name: "Unlisted", BuyThreshold: 1},
	}
	listings := map[int64]fetcher.Listing{
		42: {ID: 42, Buy: fetcher.Order{Price: 600, Quantity: 5}, Sell: fetcher.Order{Price: 90, Quantity: 2}},
	}

	var buf bytes.Buffer
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := RenderStatus(&buf, now, items, listings, 2); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"2026-01-02 03:04:05 - Monitoring Mode",
		"Mystic Coin",
		"0g06s00c",
		"+50.00%",
		"N/A",
		"SELL/BUY",
		"Alert items: 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Unlisted") {
		t.Fatal("items without listings are not rendered")
	}
}

func TestRenderItemsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderItems(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No items") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
