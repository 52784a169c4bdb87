package alerting

import (
	"sort"

	"tpalerts/internal/fetcher"
	"tpalerts/internal/storage"
)

// Direction classifies a threshold crossing.
type Direction string

const (
	// SellOpportunity fires when the best bid exceeds the buy threshold.
	SellOpportunity Direction = "sell"
	// BuyOpportunity fires when the best ask drops under the sell threshold.
	BuyOpportunity Direction = "buy"
)

// Title is the heading used for a bundle of events in this direction.
func (d Direction) Title() string {
	switch d {
	case SellOpportunity:
		return "SELL Opportunity"
	case BuyOpportunity:
		return "BUY Opportunity"
	default:
		return string(d)
	}
}

// Event is a single threshold crossing observed during one poll cycle.
type Event struct {
	ItemID    int64
	Name      string
	Icon      string
	Direction Direction
	Price     int64
	Threshold int64
	Quantity  int64
}

// Evaluate compares listings against the thresholds of items. Items without a
// listing are ignored. Events are ordered by item id, and for one item the
// SellOpportunity event precedes the BuyOpportunity event.
func Evaluate(items map[int64]storage.Item, listings map[int64]fetcher.Listing) []Event {
	ids := make([]int64, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var events []Event
	for _, id := range ids {
		listing, ok := listings[id]
		if !ok {
			continue
		}
		item := items[id]
		if listing.Buy.Price > item.BuyThreshold {
			events = append(events, Event{
				ItemID:    id,
				Name:      item.Name,
				Icon:      item.IconURL,
				Direction: SellOpportunity,
				Price:     listing.Buy.Price,
				Threshold: item.BuyThreshold,
				Quantity:  listing.Buy.Quantity,
			})
		}
		if listing.Sell.Price < item.SellThreshold {
			events = append(events, Event{
				ItemID:    id,
				Name:      item.Name,
				Icon:      item.IconURL,
				Direction: BuyOpportunity,
				Price:     listing.Sell.Price,
				Threshold: item.SellThreshold,
				Quantity:  listing.Sell.Quantity,
			})
		}
	}
	return events
}

// Split groups events by direction, preserving order inside each group.
func Split(events []Event) (sell, buy []Event) {
	for _, ev := range events {
		switch ev.Direction {
		case SellOpportunity:
			sell = append(sell, ev)
		case BuyOpportunity:
			buy = append(buy, ev)
		}
	}
	return sell, buy
}
