package app

import (
	"context"
	"fmt"
	"strings"

	"tpalerts/internal/display"
)

// Logs lists the alert logs when name is empty and prints one otherwise.
func (a *App) Logs(name string) error {
	alertLog, err := display.NewAlertLog(a.Paths.LogDir)
	if err != nil {
		return err
	}

	if name == "" {
		names, err := alertLog.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintln(a.Out, "No logs available.")
			return nil
		}
		fmt.Fprintln(a.Out, "Available logs:")
		for i, n := range names {
			fmt.Fprintf(a.Out, "%d. %s\n", i+1, n)
		}
		return nil
	}

	content, err := alertLog.Read(name)
	if err != nil {
		return err
	}
	rule := strings.Repeat("=", 90)
	fmt.Fprintf(a.Out, "Contents of %s:\n%s\n%s%s\n", name, rule, content, rule)
	return nil
}

// LogNames returns the alert log file names.
func (a *App) LogNames() ([]string, error) {
	alertLog, err := display.NewAlertLog(a.Paths.LogDir)
	if err != nil {
		return nil, err
	}
	return alertLog.List()
}

// Clean removes every item, resets the run state and empties the alert logs.
// Configuration is left untouched.
func (a *App) Clean(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.ResetAll(ctx); err != nil {
		return err
	}

	alertLog, err := display.NewAlertLog(a.Paths.LogDir)
	if err != nil {
		return err
	}
	cleared, err := alertLog.TruncateAll()
	for _, name := range cleared {
		fmt.Fprintf(a.Out, "Cleared log file: %s\n", name)
	}
	if err != nil {
		return err
	}

	a.Logger.Info().Int("logs", len(cleared)).Msg("all data cleared")
	fmt.Fprintln(a.Out, "All data has been cleared successfully.")
	return nil
}
