package cli

import (
	"github.com/spf13/cobra"

	"tpalerts/internal/app"
)

var runOpts app.RunOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start monitoring",
	Long: "Polls the trading post every interval until interrupted. Alerts fire when a\n" +
		"buy price is ABOVE its threshold (time to sell) or a sell price is BELOW its\n" +
		"threshold (time to buy).",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), runOpts)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOpts.Once, "once", false, "Run a single poll cycle and exit (fails if another poller holds the lock)")
	runCmd.Flags().DurationVar(&runOpts.Interval, "interval", 0, "Override scheduler.interval")
}
