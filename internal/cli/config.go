package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"tpalerts/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure settings (" + strings.Join(config.Keys(), ", ") + ")",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ShowConfig()
	},
}

var configSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Store a setting in the config file",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetConfig(args[0], args[1])
	},
}

var configUnsetCmd = &cobra.Command{
	Use:       "unset <key>",
	Short:     "Remove a setting from the config file",
	Args:      cobra.ExactArgs(1),
	ValidArgs: config.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().UnsetConfig(args[0])
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configUnsetCmd)
}
