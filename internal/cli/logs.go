package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var cleanYes bool

var logsCmd = &cobra.Command{
	Use:   "logs [file]",
	Short: "View historical logs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		return getApp().Logs(name)
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean all data (items, run state and logs; settings are kept)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cleanYes {
			fmt.Fprint(cmd.OutOrStdout(), "WARNING: This will clear ALL data including items and logs (but keep settings). Continue? (y/n): ")
			line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if strings.ToLower(strings.TrimSpace(line)) != "y" {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
		}
		return getApp().Clean(cmd.Context())
	},
}

func init() {
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "Skip the confirmation prompt")
}
