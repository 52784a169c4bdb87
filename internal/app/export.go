package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"

	"tpalerts/internal/price"
	"tpalerts/internal/storage"
)

// ExportOptions hold output paths for a snapshot export.
type ExportOptions struct {
	CSVPath string
	PNGPath string
}

// Export writes the tracked items with their thresholds and last seen prices
// as CSV and/or a PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	byID, err := store.Items(ctx)
	if err != nil {
		return err
	}
	if len(byID) == 0 {
		a.Logger.Info().Msg("no items to export")
		return nil
	}
	items := sortedItems(byID)
	a.Logger.Info().Int("items", len(items)).Msg("exporting snapshot")

	if opts.CSVPath != "" {
		if err := writeItemsCSV(opts.CSVPath, items); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeItemsPNG(opts.PNGPath, items); err != nil {
			return err
		}
	}

	return nil
}

func sortedItems(byID map[int64]storage.Item) []storage.Item {
	items := make([]storage.Item, 0, len(byID))
	for _, it := range byID {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func writeItemsCSV(path string, items []storage.Item) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"id", "name", "buy_threshold", "sell_threshold", "last_buy_price", "last_sell_price", "lowest_seen", "buy_threshold_text", "sell_threshold_text"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, it := range items {
		lowest := ""
		if it.LowestSeen != storage.LowestSeenSentinel {
			lowest = strconv.FormatInt(it.LowestSeen, 10)
		}
		record := []string{
			strconv.FormatInt(it.ID, 10),
			it.Name,
			strconv.FormatInt(it.BuyThreshold, 10),
			strconv.FormatInt(it.SellThreshold, 10),
			strconv.FormatInt(it.LastBuyPrice, 10),
			strconv.FormatInt(it.LastSellPrice, 10),
			lowest,
			price.Format(it.BuyThreshold),
			price.Format(it.SellThreshold),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// writeItemsPNG plots each item's last prices against its thresholds, in gold.
func writeItemsPNG(path string, items []storage.Item) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]float64, len(items))
	ticks := make([]chart.Tick, len(items))
	lastBuy := make([]float64, len(items))
	buyThreshold := make([]float64, len(items))
	lastSell := make([]float64, len(items))
	sellThreshold := make([]float64, len(items))

	maxY := 0.0
	for i, it := range items {
		x[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i), Label: it.Name}
		lastBuy[i] = toGold(it.LastBuyPrice)
		buyThreshold[i] = toGold(it.BuyThreshold)
		lastSell[i] = toGold(it.LastSellPrice)
		sellThreshold[i] = toGold(it.SellThreshold)
		maxY = max(maxY, lastBuy[i], buyThreshold[i], lastSell[i], sellThreshold[i])
	}
	if maxY == 0 {
		maxY = 1
	}

	goldFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4fg")
	}
	point := chart.Style{StrokeWidth: 2, DotWidth: 4}
	dashed := chart.Style{StrokeWidth: 1, StrokeDashArray: []float64{5, 5}}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Ticks: ticks,
			Range: &chart.ContinuousRange{Min: -0.5, Max: float64(len(items)) - 0.5},
		},
		YAxis: chart.YAxis{
			Name:           "Price (gold)",
			ValueFormatter: goldFormatter,
			Range:          &chart.ContinuousRange{Min: 0, Max: maxY * 1.1},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{Name: "Last buy", XValues: x, YValues: lastBuy, Style: point},
			chart.ContinuousSeries{Name: "Buy threshold", XValues: x, YValues: buyThreshold, Style: dashed},
			chart.ContinuousSeries{Name: "Last sell", XValues: x, YValues: lastSell, Style: point},
			chart.ContinuousSeries{Name: "Sell threshold", XValues: x, YValues: sellThreshold, Style: dashed},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func toGold(copper int64) float64 {
	return float64(copper) / float64(price.CopperPerGold)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
