package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

const priceFormats = "formats: 1g23s45c, 50s, 100c, 2g"

var (
	thresholdBuy  string
	thresholdSell string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().List(cmd.Context())
	},
}

var addCmd = &cobra.Command{
	Use:   "add <id> <buy_threshold> <sell_threshold>",
	Short: "Add new item (" + priceFormats + ")",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return getApp().Add(cmd.Context(), id, args[1], args[2])
	},
}

var delCmd = &cobra.Command{
	Use:   "del <id>",
	Short: "Delete item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return getApp().Delete(cmd.Context(), id)
	},
}

var thresholdCmd = &cobra.Command{
	Use:   "threshold <id>",
	Short: "Change thresholds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if thresholdBuy == "" && thresholdSell == "" {
			return fmt.Errorf("at least one of --buy or --sell is required")
		}
		return getApp().Threshold(cmd.Context(), id, thresholdBuy, thresholdSell)
	},
}

func init() {
	thresholdCmd.Flags().StringVar(&thresholdBuy, "buy", "", "New buy threshold ("+priceFormats+")")
	thresholdCmd.Flags().StringVar(&thresholdSell, "sell", "", "New sell threshold ("+priceFormats+")")
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("item id must be a positive number, got %q", raw)
	}
	return id, nil
}
