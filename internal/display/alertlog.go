package display

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tpalerts/internal/alerting"
	"tpalerts/internal/price"
)

const logSuffix = "_alerts.log"

// ErrInvalidLogName indicates a log name outside the log directory.
var ErrInvalidLogName = errors.New("display: invalid log file name")

// AlertLog appends threshold crossings to one file per day.
type AlertLog struct {
	dir string
	now func() time.Time
}

// NewAlertLog creates the log directory when it does not exist.
func NewAlertLog(dir string) (*AlertLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &AlertLog{dir: dir, now: time.Now}, nil
}

// Dir returns the directory holding the log files.
func (l *AlertLog) Dir() string { return l.dir }

// CurrentFile is the path events are appended to today.
func (l *AlertLog) CurrentFile() string {
	return filepath.Join(l.dir, l.now().Format(time.DateOnly)+logSuffix)
}

// Append writes one line per event.
func (l *AlertLog) Append(events []alerting.Event) error {
	if len(events) == 0 {
		return nil
	}
	f, err := os.OpenFile(l.CurrentFile(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open alert log: %w", err)
	}
	defer f.Close()

	stamp := l.now().Format(time.DateTime)
	var b strings.Builder
	for _, ev := range events {
		b.WriteString(FormatLogLine(stamp, ev))
		b.WriteByte('\n')
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("write alert log: %w", err)
	}
	return nil
}

// FormatLogLine renders an event the way it is stored in the alert log.
func FormatLogLine(stamp string, ev alerting.Event) string {
	if ev.Direction == alerting.SellOpportunity {
		return fmt.Sprintf("%s - BUY ALERT: %s - Buy Price: %s > Threshold: %s (Qty: %d)",
			stamp, ev.Name, price.Format(ev.Price), price.Format(ev.Threshold), ev.Quantity)
	}
	return fmt.Sprintf("%s - SELL ALERT: %s - Sell Price: %s < Threshold: %s (Qty: %d)",
		stamp, ev.Name, price.Format(ev.Price), price.Format(ev.Threshold), ev.Quantity)
}

// List returns the log file names in lexical order.
func (l *AlertLog) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the contents of one log file.
func (l *AlertLog) Read(name string) (string, error) {
	if name == "" || filepath.Base(name) != name || !strings.HasSuffix(name, ".log") {
		return "", fmt.Errorf("%w: %q", ErrInvalidLogName, name)
	}
	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if err != nil {
		return "", fmt.Errorf("read log %s: %w", name, err)
	}
	return string(data), nil
}

// TruncateAll empties every log file, keeping the files themselves. It returns
// the names that were cleared.
func (l *AlertLog) TruncateAll() ([]string, error) {
	names, err := l.List()
	if err != nil {
		return nil, err
	}
	var errs []error
	cleared := make([]string, 0, len(names))
	for _, name := range names {
		if err := os.Truncate(filepath.Join(l.dir, name), 0); err != nil {
			errs = append(errs, fmt.Errorf("truncate %s: %w", name, err))
			continue
		}
		cleared = append(cleared, name)
	}
	return cleared, errors.Join(errs...)
}
