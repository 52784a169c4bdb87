package display

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"tpalerts/internal/fetcher"
	"tpalerts/internal/price"
	"tpalerts/internal/storage"
)

// Status classifies an item against its thresholds.
func Status(item storage.Item, listing fetcher.Listing) string {
	var parts []string
	if listing.Buy.Price > item.BuyThreshold {
		parts = append(parts, "SELL")
	}
	if listing.Sell.Price < item.SellThreshold {
		parts = append(parts, "BUY")
	}
	if len(parts) == 0 {
		return "WAIT"
	}
	return strings.Join(parts, "/")
}

// RenderStatus prints the monitoring table. Percent columns compare the fetched
// prices with the last prices stored on items, so items must be the snapshot
// taken before this cycle persisted anything.
func RenderStatus(w io.Writer, now time.Time, items map[int64]storage.Item, listings map[int64]fetcher.Listing, alerts int) error {
	ids := make([]int64, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rule := strings.Repeat("=", 120)
	if _, err := fmt.Fprintf(w, "\n%s\n%s - Monitoring Mode\n", rule, now.Format(time.DateTime)); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(tw, "Item\tBuy Threshold\tBuy Price\tBuy Qty\tBuy %\tSell Threshold\tSell Price\tSell Qty\tSell %\tStatus\t")
	for _, id := range ids {
		item := items[id]
		listing, ok := listings[id]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%d\t%s\t%s\t\n",
			item.Name,
			price.Format(item.BuyThreshold),
			price.Format(listing.Buy.Price),
			listing.Buy.Quantity,
			price.PercentChange(listing.Buy.Price, item.LastBuyPrice),
			price.Format(item.SellThreshold),
			price.Format(listing.Sell.Price),
			listing.Sell.Quantity,
			price.PercentChange(listing.Sell.Price, item.LastSellPrice),
			Status(item, listing),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nAlert items: %d\n%s\n", alerts, rule)
	return err
}

// RenderItems prints the tracked items with their thresholds.
func RenderItems(w io.Writer, items map[int64]storage.Item) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No items in database.")
		return err
	}
	ids := make([]int64, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tItem\tBuy Threshold\tSell Threshold\tLast Buy\tLast Sell")
	for _, id := range ids {
		item := items[id]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			item.ID, item.Name,
			price.Format(item.BuyThreshold), price.Format(item.SellThreshold),
			price.Format(item.LastBuyPrice), price.Format(item.LastSellPrice))
	}
	return tw.Flush()
}
