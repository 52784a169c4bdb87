package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"tpalerts/internal/logging"
)

// WebhookPrefix is the only accepted notification endpoint prefix.
const WebhookPrefix = "https://discord.com/api/webhooks/"

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const databaseFileName = "gw2_tp_alerts.sqlite3"

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Data      DataConfig      `mapstructure:"data"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Market    MarketConfig    `mapstructure:"market"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`

	// File is the config file actually read, empty when none was found.
	File string `mapstructure:"-"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DataConfig locates the state database and alert logs.
type DataConfig struct {
	Dir       string `mapstructure:"dir"`
	CustomDir string `mapstructure:"custom_dir"`
}

// DatabaseConfig selects and tunes the state store.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// SchedulerConfig governs poll cadence.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	EmptyWait    time.Duration `mapstructure:"empty_wait"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// MarketConfig covers the trading post API.
type MarketConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIToken          string        `mapstructure:"api_token"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	BatchSize         int           `mapstructure:"batch_size"`
	RateLimitCooldown time.Duration `mapstructure:"rate_limit_cooldown"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	MaxRetryWait   time.Duration `mapstructure:"max_retry_wait"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Discord        DiscordConfig `mapstructure:"discord"`
}

// DiscordConfig describes the webhook destination.
type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Username   string `mapstructure:"username"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	// a missing .env is the common case
	_ = godotenv.Load()

	v := newViper()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("TPALERTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// names understood by earlier versions of the tool
	_ = v.BindEnv("market.api_token", "TPALERTS_MARKET_API_TOKEN", "GW2_API_TOKEN")
	_ = v.BindEnv("alerting.discord.webhook_url", "TPALERTS_ALERTING_DISCORD_WEBHOOK_URL", "DISCORD_WEBHOOK_URL")
	_ = v.BindEnv("data.custom_dir", "TPALERTS_DATA_CUSTOM_DIR", "CUSTOM_DATA_DIR")
	return v
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "tpalerts")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("data.dir", ".")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.advisory_lock_key", int64(0x67773274))

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.empty_wait", "10s")
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("market.base_url", "https://api.guildwars2.com")
	v.SetDefault("market.request_timeout", "30s")
	v.SetDefault("market.requests_per_second", 5.0)
	v.SetDefault("market.burst", 10)
	v.SetDefault("market.batch_size", 200)
	v.SetDefault("market.rate_limit_cooldown", "20m")

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.max_retries", 5)
	v.SetDefault("alerting.max_retry_wait", "60s")
	v.SetDefault("alerting.request_timeout", "30s")
	v.SetDefault("alerting.discord.username", "GW2 TP Bot")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scheduler.EmptyWait <= 0 {
		return fmt.Errorf("scheduler.empty_wait must be greater than zero")
	}
	if c.Market.BatchSize <= 0 {
		return fmt.Errorf("market.batch_size must be greater than zero")
	}
	if c.Market.RequestsPerSecond <= 0 {
		return fmt.Errorf("market.requests_per_second must be greater than zero")
	}
	if c.Market.RateLimitCooldown <= 0 {
		return fmt.Errorf("market.rate_limit_cooldown must be greater than zero")
	}
	if c.Alerting.MaxRetries < 0 {
		return fmt.Errorf("alerting.max_retries cannot be negative")
	}
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	return nil
}

// Paths are the resolved on-disk locations for state and alert logs.
type Paths struct {
	DataDir  string
	Database string
	LogDir   string
}

// ResolvePaths picks the custom data directory when it exists, the default
// data directory otherwise.
func (c *Config) ResolvePaths() Paths {
	dir := c.Data.Dir
	if dir == "" {
		dir = "."
	}
	if custom := strings.TrimSpace(c.Data.CustomDir); custom != "" {
		if info, err := os.Stat(custom); err == nil && info.IsDir() {
			dir = custom
		}
	}

	db := c.Database.Path
	if db == "" {
		db = filepath.Join(dir, databaseFileName)
	}
	return Paths{
		DataDir:  dir,
		Database: db,
		LogDir:   filepath.Join(dir, "logs"),
	}
}
