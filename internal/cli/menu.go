package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tpalerts/internal/app"
	"tpalerts/internal/config"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Interactive menu",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMenu(cmd)
	},
}

func runMenu(cmd *cobra.Command) error {
	m := newMenu(getApp(), cmd.InOrStdin(), cmd.OutOrStdout())
	return m.loop(cmd.Context())
}

type menu struct {
	app *app.App
	in  *bufio.Scanner
	out io.Writer
}

func newMenu(a *app.App, in io.Reader, out io.Writer) *menu {
	return &menu{app: a, in: bufio.NewScanner(in), out: out}
}

// prompt prints label and reads one trimmed line. ok is false at end of input.
func (m *menu) prompt(label string) (string, bool) {
	fmt.Fprint(m.out, label)
	if !m.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

func (m *menu) loop(ctx context.Context) error {
	rule := strings.Repeat("=", 50)
	for {
		fmt.Fprintf(m.out, "\n%s\nGUILD WARS 2 TRADING POST ALERT SYSTEM\n%s\n", rule, rule)
		fmt.Fprintln(m.out, "1. Start Monitoring")
		fmt.Fprintln(m.out, "2. List tracked items")
		fmt.Fprintln(m.out, "3. Add item")
		fmt.Fprintln(m.out, "4. Delete item")
		fmt.Fprintln(m.out, "5. Change thresholds")
		fmt.Fprintln(m.out, "6. Configure Settings (API, Webhook, Data Dir)")
		fmt.Fprintln(m.out, "7. View historical logs")
		fmt.Fprintln(m.out, "8. CLEAN ALL DATA (reset everything)")
		fmt.Fprintln(m.out, "9. How to use")
		fmt.Fprintln(m.out, "0. Exit")
		fmt.Fprintln(m.out, rule)

		choice, ok := m.prompt("\nSelect an option (0-9): ")
		if !ok {
			return nil
		}

		var err error
		switch choice {
		case "1":
			err = m.app.Run(ctx, app.RunOptions{})
		case "2":
			err = m.app.List(ctx)
		case "3":
			err = m.addItem(ctx)
		case "4":
			err = m.deleteItem(ctx)
		case "5":
			err = m.changeThresholds(ctx)
		case "6":
			err = m.settings()
		case "7":
			err = m.viewLogs()
		case "8":
			if answer, _ := m.prompt("WARNING: This will clear ALL data including items and logs (but keep settings). Continue? (y/n): "); strings.EqualFold(answer, "y") {
				err = m.app.Clean(ctx)
			}
		case "9":
			m.help()
			continue
		case "0":
			fmt.Fprintln(m.out, "Exiting program...")
			return nil
		default:
			fmt.Fprintln(m.out, "Invalid option. Try again.")
		}
		if err != nil {
			fmt.Fprintf(m.out, "Error: %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}

		if _, ok := m.prompt("\nPress Enter to continue..."); !ok {
			return nil
		}
	}
}

func (m *menu) readID(label string) (int64, error) {
	raw, _ := m.prompt(label)
	return parseID(raw)
}

func (m *menu) addItem(ctx context.Context) error {
	id, err := m.readID("Enter item ID: ")
	if err != nil {
		return err
	}
	buy, _ := m.prompt("Enter BUY threshold: ")
	sell, _ := m.prompt("Enter SELL threshold: ")
	return m.app.Add(ctx, id, buy, sell)
}

func (m *menu) deleteItem(ctx context.Context) error {
	id, err := m.readID("Enter item ID to delete: ")
	if err != nil {
		return err
	}
	return m.app.Delete(ctx, id)
}

func (m *menu) changeThresholds(ctx context.Context) error {
	id, err := m.readID("Enter item ID: ")
	if err != nil {
		return err
	}
	var buy, sell string
	switch which, _ := m.prompt("Change which threshold? (1=Buy, 2=Sell, 3=Both): "); which {
	case "1":
		buy, _ = m.prompt("Enter new BUY threshold: ")
	case "2":
		sell, _ = m.prompt("Enter new SELL threshold: ")
	case "3":
		buy, _ = m.prompt("Enter new BUY threshold: ")
		sell, _ = m.prompt("Enter new SELL threshold: ")
	default:
		fmt.Fprintln(m.out, "Invalid option.")
		return nil
	}
	return m.app.Threshold(ctx, id, buy, sell)
}

func (m *menu) settings() error {
	keys := config.Keys()
	for {
		fmt.Fprintln(m.out, "\nCurrent Configuration:")
		if err := m.app.ShowConfig(); err != nil {
			return err
		}
		fmt.Fprintln(m.out)
		for i, key := range keys {
			fmt.Fprintf(m.out, "%d. Change %s\n", i+1, key)
		}
		back := len(keys) + 1
		fmt.Fprintf(m.out, "%d. Back to main menu\n", back)

		choice, ok := m.prompt(fmt.Sprintf("\nSelect an option (1-%d): ", back))
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(choice)
		if err != nil || n < 1 || n > back {
			fmt.Fprintln(m.out, "Invalid option.")
			continue
		}
		if n == back {
			return nil
		}

		key := keys[n-1]
		value, _ := m.prompt(fmt.Sprintf("Enter %s (leave blank to remove): ", key))
		if value == "" {
			err = m.app.UnsetConfig(key)
		} else {
			err = m.app.SetConfig(key, value)
		}
		if err != nil {
			fmt.Fprintf(m.out, "Error: %v\n", err)
		}
	}
}

func (m *menu) viewLogs() error {
	names, err := m.app.LogNames()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(m.out, "No logs available.")
		return nil
	}
	fmt.Fprintln(m.out, "\nAvailable logs:")
	for i, name := range names {
		fmt.Fprintf(m.out, "%d. %s\n", i+1, name)
	}

	choice, _ := m.prompt("\nSelect a log to view (0 to cancel): ")
	n, err := strconv.Atoi(choice)
	if err != nil || n < 0 || n > len(names) {
		fmt.Fprintln(m.out, "Invalid selection.")
		return nil
	}
	if n == 0 {
		return nil
	}
	return m.app.Logs(names[n-1])
}

func (m *menu) help() {
	rule := strings.Repeat("=", 50)
	fmt.Fprintf(m.out, "\n%s\nHOW TO USE\n%s\n", rule, rule)
	fmt.Fprintln(m.out, "1. Start Monitoring: Runs the polling loop until Ctrl+C")
	fmt.Fprintln(m.out, "2. List tracked items: Shows all items being monitored")
	fmt.Fprintln(m.out, "3. Add item: Add a new item to monitor with buy/sell thresholds")
	fmt.Fprintln(m.out, "4. Delete item: Remove an item from monitoring")
	fmt.Fprintln(m.out, "5. Change thresholds: Modify buy/sell thresholds for an item")
	fmt.Fprintln(m.out, "6. Configure Settings: Set API token, Discord webhook and data directory")
	fmt.Fprintln(m.out, "7. View historical logs: Check past price alerts")
	fmt.Fprintln(m.out, "8. Clean all data: Reset all items and logs (keeps settings)")
	fmt.Fprintln(m.out, "Prices are written as 1g23s45c, 50s, 100c or 2g.")
	fmt.Fprintln(m.out, "Alerts fire when the best buy order is ABOVE the buy threshold (time to SELL)")
	fmt.Fprintln(m.out, "or the best sell listing is BELOW the sell threshold (time to BUY).")
	fmt.Fprintln(m.out, rule)
	m.prompt("\nPress Enter to return to main menu...")
}
