package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Setting keys editable through the config command.
const (
	KeyAPIToken      = "api_token"
	KeyWebhookURL    = "webhook_url"
	KeyCustomDataDir = "custom_data_dir"
)

var settingPaths = map[string]string{
	KeyAPIToken:      "market.api_token",
	KeyWebhookURL:    "alerting.discord.webhook_url",
	KeyCustomDataDir: "data.custom_dir",
}

// ErrUnknownSetting is returned for keys outside the editable set.
var ErrUnknownSetting = errors.New("unknown setting")

// Settings edits the small set of operator settings stored in the config file.
type Settings struct {
	path string
	v    *viper.Viper
}

// OpenSettings reads the config file at path; a missing file starts empty.
func OpenSettings(path string) (*Settings, error) {
	if path == "" {
		path = "config.yaml"
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}
	return &Settings{path: path, v: v}, nil
}

// Keys lists the editable setting names.
func Keys() []string {
	keys := make([]string, 0, len(settingPaths))
	for k := range settingPaths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Path is the file the settings are written to.
func (s *Settings) Path() string {
	return s.path
}

// Get returns the stored value for key, if any.
func (s *Settings) Get(key string) (string, bool, error) {
	p, ok := settingPaths[key]
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	if !s.v.IsSet(p) {
		return "", false, nil
	}
	val := s.v.GetString(p)
	return val, val != "", nil
}

// Set validates and persists value under key.
func (s *Settings) Set(key, value string) error {
	p, ok := settingPaths[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return s.Unset(key)
	}

	switch key {
	case KeyWebhookURL:
		if !strings.HasPrefix(value, WebhookPrefix) {
			return fmt.Errorf("invalid webhook URL, must start with %s", WebhookPrefix)
		}
	case KeyCustomDataDir:
		info, err := os.Stat(value)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("directory %s does not exist, create it first", value)
		}
	}

	s.v.Set(p, value)
	return s.save()
}

// Unset removes key from the config file.
func (s *Settings) Unset(key string) error {
	p, ok := settingPaths[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}

	// viper cannot delete keys, so rebuild the tree without the entry.
	all := s.v.AllSettings()
	deleteNested(all, strings.Split(p, "."))
	fresh := viper.New()
	fresh.SetConfigFile(s.path)
	if err := fresh.MergeConfigMap(all); err != nil {
		return fmt.Errorf("rebuild settings: %w", err)
	}
	s.v = fresh
	return s.save()
}

func (s *Settings) save() error {
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func deleteNested(m map[string]any, parts []string) {
	if len(parts) == 0 {
		return
	}
	if len(parts) == 1 {
		delete(m, parts[0])
		return
	}
	child, ok := m[parts[0]].(map[string]any)
	if !ok {
		return
	}
	deleteNested(child, parts[1:])
	if len(child) == 0 {
		delete(m, parts[0])
	}
}

// Mask hides secrets when printing settings.
func Mask(key, value string) string {
	if value == "" {
		return "Not set"
	}
	if key == KeyCustomDataDir {
		return value
	}
	return "*****"
}
