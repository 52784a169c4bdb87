package app

import (
	"fmt"

	"tpalerts/internal/config"
)

func (a *App) settingsPath() string {
	if a.ConfigPath != "" {
		return a.ConfigPath
	}
	return "config.yaml"
}

// effectiveSetting is the value the running config sees, which may come from
// the environment rather than the file.
func (a *App) effectiveSetting(key string) string {
	switch key {
	case config.KeyAPIToken:
		return a.Config.Market.APIToken
	case config.KeyWebhookURL:
		return a.Config.Alerting.Discord.WebhookURL
	case config.KeyCustomDataDir:
		return a.Config.Data.CustomDir
	}
	return ""
}

// ShowConfig prints the editable settings with secrets masked.
func (a *App) ShowConfig() error {
	settings, err := config.OpenSettings(a.settingsPath())
	if err != nil {
		return err
	}

	fmt.Fprintf(a.Out, "Config file: %s\n", settings.Path())
	for _, key := range config.Keys() {
		val, ok, err := settings.Get(key)
		if err != nil {
			return err
		}
		source := ""
		if !ok {
			if val = a.effectiveSetting(key); val != "" {
				source = " (environment)"
			}
		}
		fmt.Fprintf(a.Out, "%s: %s%s\n", key, config.Mask(key, val), source)
	}
	fmt.Fprintf(a.Out, "database: %s\nlogs: %s\n", a.databaseLabel(), a.Paths.LogDir)
	return nil
}

// SetConfig stores value under key in the config file.
func (a *App) SetConfig(key, value string) error {
	settings, err := config.OpenSettings(a.settingsPath())
	if err != nil {
		return err
	}
	if err := settings.Set(key, value); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "%s updated in %s\n", key, settings.Path())
	return nil
}

// UnsetConfig removes key from the config file.
func (a *App) UnsetConfig(key string) error {
	settings, err := config.OpenSettings(a.settingsPath())
	if err != nil {
		return err
	}
	if err := settings.Unset(key); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "%s removed from %s\n", key, settings.Path())
	return nil
}

func (a *App) databaseLabel() string {
	if a.Config.Database.Driver == config.DriverPostgres {
		return "postgres"
	}
	return a.Paths.Database
}
