package alerting

import (
	"testing"

	"tpalerts/internal/fetcher"
	"tpalerts/internal/storage"
)

func TestEvaluateBothDirections(t *testing.T) {
	items := map[int64]storage.Item{
		42: {ID: 42, Name: "Mystic Coin", IconURL: "icon", BuyThreshold: 100, SellThreshold: 50},
	}
	listings := map[int64]fetcher.Listing{
		42: {ID: 42, Buy: fetcher.Order{Price: 150, Quantity: 7}, Sell: fetcher.Order{Price: 40, Quantity: 3}},
	}

	events := Evaluate(items, listings)
	if len(events) != 2 {
		t.Fatalf("expected two events, got %d", len(events))
	}
	want := []Event{
		{ItemID: 42, Name: "Mystic Coin", Icon: "icon", Direction: SellOpportunity, Price: 150, Threshold: 100, Quantity: 7},
		{ItemID: 42, Name: "Mystic Coin", Icon: "icon", Direction: BuyOpportunity, Price: 40, Threshold: 50, Quantity: 3},
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d: want %+v got %+v", i, want[i], events[i])
		}
	}
}

func TestEvaluateWithinBand(t *testing.T) {
	items := map[int64]storage.Item{42: {ID: 42, Name: "Mystic Coin", BuyThreshold: 100, SellThreshold: 50}}
	listings := map[int64]fetcher.Listing{
		42: {ID: 42, Buy: fetcher.Order{Price: 90, Quantity: 1}, Sell: fetcher.Order{Price: 60, Quantity: 1}},
	}
	if events := Evaluate(items, listings); len(events) != 0 {
		t.Fatalf("prices inside thresholds should not alert: %+v", events)
	}
}

func TestEvaluateEqualPriceDoesNotFire(t *testing.T) {
	items := map[int64]storage.Item{1: {ID: 1, Name: "a", BuyThreshold: 100, SellThreshold: 50}}
	listings := map[int64]fetcher.Listing{
		1: {ID: 1, Buy: fetcher.Order{Price: 100}, Sell: fetcher.Order{Price: 50}},
	}
	if events := Evaluate(items, listings); len(events) != 0 {
		t.Fatalf("comparisons are strict, got %+v", events)
	}
}

func TestEvaluateOrderAndMissingListings(t *testing.T) {
	items := map[int64]storage.Item{
		30: {ID: 30, Name: "c", BuyThreshold: 10},
		10: {ID: 10, Name: "a", BuyThreshold: 10},
		20: {ID: 20, Name: "b", BuyThreshold: 10},
	}
	listings := map[int64]fetcher.Listing{
		30: {ID: 30, Buy: fetcher.Order{Price: 11}},
		10: {ID: 10, Buy: fetcher.Order{Price: 11}},
	}
	events := Evaluate(items, listings)
	if len(events) != 2 || events[0].ItemID != 10 || events[1].ItemID != 30 {
		t.Fatalf("events should follow item id order and skip missing listings: %+v", events)
	}

	sell, buy := Split(events)
	if len(sell) != 2 || len(buy) != 0 {
		t.Fatalf("split mismatch: sell=%d buy=%d", len(sell), len(buy))
	}
}
