package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"tpalerts/internal/alerting"
	"tpalerts/internal/config"
	"tpalerts/internal/display"
	"tpalerts/internal/fetcher"
	"tpalerts/internal/logging"
	"tpalerts/internal/scheduler"
	"tpalerts/internal/service"
	"tpalerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Paths  config.Paths
	Logger zerolog.Logger
	// Out receives tables and command output.
	Out io.Writer
	// ConfigPath is where config set/unset write, defaulting to the file
	// that was loaded.
	ConfigPath string
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config:     cfg,
		Paths:      cfg.ResolvePaths(),
		Logger:     logging.Component(logger, "app"),
		Out:        os.Stdout,
		ConfigPath: cfg.File,
	}
}

func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	return storage.Open(ctx, a.Config.Database, a.Paths.Database)
}

func (a *App) newMarket(cooldown storage.CooldownStore) *fetcher.Market {
	m := a.Config.Market
	return fetcher.NewMarket(fetcher.MarketOptions{
		BaseURL:           m.BaseURL,
		Token:             m.APIToken,
		Timeout:           m.RequestTimeout,
		UserAgent:         m.UserAgent,
		RequestsPerSecond: m.RequestsPerSecond,
		Burst:             m.Burst,
		BatchSize:         m.BatchSize,
		RateLimitCooldown: m.RateLimitCooldown,
	}, cooldown, a.Logger)
}

// newNotifier returns nil when alerting is disabled or no webhook is set.
func (a *App) newNotifier() (*alerting.DiscordNotifier, error) {
	cfg := a.Config.Alerting
	if !cfg.Enabled || cfg.Discord.WebhookURL == "" {
		return nil, nil
	}
	return alerting.NewDiscordNotifier(alerting.DiscordOptions{
		WebhookURL:   cfg.Discord.WebhookURL,
		Username:     cfg.Discord.Username,
		Timeout:      cfg.RequestTimeout,
		MaxRetries:   cfg.MaxRetries,
		MaxRetryWait: cfg.MaxRetryWait,
	}, a.Logger)
}

// RunOptions adjust a monitoring run.
type RunOptions struct {
	// Once performs a single poll cycle and returns its error, if any.
	Once bool
	// Interval overrides scheduler.interval when positive.
	Interval time.Duration
}

// Run executes the long-running monitoring loop until SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	alertLog, err := display.NewAlertLog(a.Paths.LogDir)
	if err != nil {
		return err
	}

	discord, err := a.newNotifier()
	if err != nil {
		return err
	}
	var notifier alerting.Notifier
	if discord != nil {
		notifier = discord
	} else {
		a.Logger.Warn().Msg("discord webhook not configured; alerts are only written to the alert log")
	}

	interval := a.Config.Scheduler.Interval
	if opts.Interval > 0 {
		interval = opts.Interval
	}

	sched := scheduler.New(scheduler.Options{StartupDelay: a.Config.Scheduler.StartupDelay}, a.Logger)
	svc := service.New(service.Options{
		Interval:  interval,
		EmptyWait: a.Config.Scheduler.EmptyWait,
		LockKey:   a.Config.Database.AdvisoryLockKey,
	}, sched, store, a.newMarket(store), notifier, alertLog, a.Out, a.Logger)

	if opts.Once {
		outcome, err := svc.RunOnce(ctx)
		if err != nil {
			return err
		}
		return outcome.Err
	}

	fmt.Fprintln(a.Out, "Monitoring Mode activated")
	fmt.Fprintln(a.Out, "Notifications will be sent when:")
	fmt.Fprintln(a.Out, "- Buy prices ABOVE threshold (good time to SELL)")
	fmt.Fprintln(a.Out, "- Sell prices BELOW threshold (good time to BUY)")
	fmt.Fprintln(a.Out, "Press Ctrl+C to stop")

	a.Logger.Info().Str("database", a.Config.Database.Driver).Str("log_dir", a.Paths.LogDir).Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}
