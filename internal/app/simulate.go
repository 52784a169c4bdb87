package app

import (
	"context"
	"errors"
	"fmt"

	"tpalerts/internal/alerting"
	"tpalerts/internal/fetcher"
	"tpalerts/internal/price"
	"tpalerts/internal/storage"
)

// SimulateOptions describe a synthetic item and its prices.
type SimulateOptions struct {
	Name          string
	Icon          string
	BuyThreshold  string
	SellThreshold string
	BuyPrice      string
	SellPrice     string
	Quantity      int64
}

// SimulateAlert evaluates synthetic prices and delivers the resulting alert
// through the configured webhook. Nothing is persisted.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is disabled")
	}
	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if notifier == nil {
		return errors.New("discord webhook is not configured")
	}

	values := make([]int64, 4)
	for i, raw := range []string{opts.BuyThreshold, opts.SellThreshold, opts.BuyPrice, opts.SellPrice} {
		v, err := price.Parse(raw)
		if err != nil {
			return err
		}
		values[i] = v
	}

	name := opts.Name
	if name == "" {
		name = "Simulated Item"
	}
	qty := opts.Quantity
	if qty <= 0 {
		qty = 1
	}

	items := map[int64]storage.Item{
		0: {Name: name, IconURL: opts.Icon, BuyThreshold: values[0], SellThreshold: values[1]},
	}
	listings := map[int64]fetcher.Listing{
		0: {Buy: fetcher.Order{Price: values[2], Quantity: qty}, Sell: fetcher.Order{Price: values[3], Quantity: qty}},
	}

	events := alerting.Evaluate(items, listings)
	if len(events) == 0 {
		return errors.New("simulated prices do not cross either threshold")
	}
	if err := notifier.Send(ctx, events); err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Fprintf(a.Out, "sent %s: %s at %s\n", ev.Direction.Title(), ev.Name, price.Format(ev.Price))
	}
	return nil
}
