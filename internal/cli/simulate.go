package cli

import (
	"github.com/spf13/cobra"

	"tpalerts/internal/app"
)

var simulateOpts app.SimulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic alert through the configured webhook",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SimulateAlert(cmd.Context(), simulateOpts)
	},
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simulateOpts.Name, "name", "Simulated Item", "Item name shown in the alert")
	f.StringVar(&simulateOpts.Icon, "icon", "", "Icon URL for the embed thumbnail")
	f.StringVar(&simulateOpts.BuyThreshold, "buy-threshold", "1g", "Buy threshold")
	f.StringVar(&simulateOpts.SellThreshold, "sell-threshold", "50s", "Sell threshold")
	f.StringVar(&simulateOpts.BuyPrice, "buy-price", "1g50s", "Best buy order price")
	f.StringVar(&simulateOpts.SellPrice, "sell-price", "40s", "Best sell order price")
	f.Int64Var(&simulateOpts.Quantity, "qty", 1, "Quantity shown in the alert")
}
