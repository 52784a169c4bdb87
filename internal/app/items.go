package app

import (
	"context"
	"fmt"
	"time"

	"tpalerts/internal/display"
	"tpalerts/internal/fetcher"
	"tpalerts/internal/price"
	"tpalerts/internal/storage"
)

// List prints the tracked items.
func (a *App) List(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	items, err := store.Items(ctx)
	if err != nil {
		return err
	}
	return display.RenderItems(a.Out, items)
}

// Add looks up the item on the trading post and starts tracking it.
func (a *App) Add(ctx context.Context, id int64, buy, sell string) error {
	buyCopper, err := price.Parse(buy)
	if err != nil {
		return fmt.Errorf("invalid buy threshold: %w", err)
	}
	sellCopper, err := price.Parse(sell)
	if err != nil {
		return fmt.Errorf("invalid sell threshold: %w", err)
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := a.checkCooldown(ctx, store); err != nil {
		return err
	}

	meta, err := a.newMarket(store).FetchItemMetadata(ctx, []int64{id})
	if err != nil {
		return fmt.Errorf("fetch item info: %w", err)
	}
	info, ok := meta[id]
	if !ok {
		return fmt.Errorf("%w: %d", storage.ErrItemNotFound, id)
	}

	if err := store.AddItem(ctx, storage.Item{
		ID:            id,
		Name:          info.Name,
		IconURL:       info.Icon,
		BuyThreshold:  buyCopper,
		SellThreshold: sellCopper,
	}); err != nil {
		return err
	}

	a.Logger.Info().Int64("item_id", id).Str("name", info.Name).Msg("item added")
	fmt.Fprintf(a.Out, "Item added successfully: %s\nBuy Threshold: %s\nSell Threshold: %s\n",
		info.Name, price.Format(buyCopper), price.Format(sellCopper))
	return nil
}

// Delete stops tracking id.
func (a *App) Delete(ctx context.Context, id int64) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	found, err := store.DeleteItem(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %d", storage.ErrItemNotFound, id)
	}
	fmt.Fprintln(a.Out, "Item deleted successfully.")
	return nil
}

// Threshold updates one or both thresholds. Empty strings leave a side as is.
func (a *App) Threshold(ctx context.Context, id int64, buy, sell string) error {
	var buyCopper, sellCopper *int64
	if buy != "" {
		v, err := price.Parse(buy)
		if err != nil {
			return fmt.Errorf("invalid buy threshold: %w", err)
		}
		buyCopper = &v
	}
	if sell != "" {
		v, err := price.Parse(sell)
		if err != nil {
			return fmt.Errorf("invalid sell threshold: %w", err)
		}
		sellCopper = &v
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	found, err := store.SetThresholds(ctx, id, buyCopper, sellCopper)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %d", storage.ErrItemNotFound, id)
	}
	if buyCopper != nil {
		fmt.Fprintf(a.Out, "Buy Threshold updated successfully to %s\n", price.Format(*buyCopper))
	}
	if sellCopper != nil {
		fmt.Fprintf(a.Out, "Sell Threshold updated successfully to %s\n", price.Format(*sellCopper))
	}
	return nil
}

func (a *App) checkCooldown(ctx context.Context, store storage.StateStore) error {
	state, err := store.State(ctx)
	if err != nil {
		return err
	}
	if state.CooldownActive(time.Now()) {
		return fmt.Errorf("%w: next try at %s", fetcher.ErrRateLimited, state.LimitUntil.Local().Format(time.TimeOnly))
	}
	return nil
}
