package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"asmlsp/internal/logging"
	"asmlsp/internal/paths"
)

// SettingsFileName is the base name of the server settings file inside the
// asmlsp home directory. Any extension viper understands is accepted.
const SettingsFileName = "asmlsp"

// EnvPrefix prefixes environment overrides, e.g. ASMLSP_LOGGING_LEVEL.
const EnvPrefix = "ASMLSP"

// Settings is the server's own configuration. Project documentation
// selection lives in RootConfig instead.
type Settings struct {
	StoreDir              string             `json:"storeDir" mapstructure:"storeDir"`
	StoreBundle           string             `json:"storeBundle,omitempty" mapstructure:"storeBundle"`
	Logging               LoggingSettings    `json:"logging" mapstructure:"logging"`
	Completion            CompletionSettings `json:"completion" mapstructure:"completion"`
	Watch                 WatchSettings      `json:"watch" mapstructure:"watch"`
	MaxConcurrentRequests int                `json:"maxConcurrentRequests" mapstructure:"maxConcurrentRequests"`
}

// LoggingSettings contains logging configuration
type LoggingSettings struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
	// File redirects logs to a file. Empty means stderr.
	File string `json:"file,omitempty" mapstructure:"file"`
}

// CompletionSettings tunes the completion cache.
type CompletionSettings struct {
	CacheSize int `json:"cacheSize" mapstructure:"cacheSize"`
}

// WatchSettings controls reloading on config file changes.
type WatchSettings struct {
	Enabled    bool `json:"enabled" mapstructure:"enabled"`
	DebounceMs int  `json:"debounceMs" mapstructure:"debounceMs"`
}

// DefaultSettings returns the default settings
func DefaultSettings() *Settings {
	storeDir, err := paths.GetStoreDir()
	if err != nil {
		storeDir = paths.StoresDirName
	}
	return &Settings{
		StoreDir: storeDir,
		Logging: LoggingSettings{
			Format: string(logging.HumanFormat),
			Level:  "info",
		},
		Completion: CompletionSettings{
			CacheSize: 256,
		},
		Watch: WatchSettings{
			Enabled:    true,
			DebounceMs: 200,
		},
		MaxConcurrentRequests: 4,
	}
}

func setDefaults(v *viper.Viper, d *Settings) {
	v.SetDefault("storeDir", d.StoreDir)
	v.SetDefault("storeBundle", d.StoreBundle)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("completion.cacheSize", d.Completion.CacheSize)
	v.SetDefault("watch.enabled", d.Watch.Enabled)
	v.SetDefault("watch.debounceMs", d.Watch.DebounceMs)
	v.SetDefault("maxConcurrentRequests", d.MaxConcurrentRequests)
}

// LoadSettings loads settings from path, or from asmlsp.{json,toml,yaml} in
// the asmlsp home directory when path is empty. A missing home settings file
// yields defaults. ASMLSP_* environment variables override both.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v, DefaultSettings())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(SettingsFileName)
		if home, err := paths.GetHome(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes the settings as JSON to path.
func (s *Settings) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Validate checks if the settings are valid
func (s *Settings) Validate() error {
	if s.StoreDir == "" && s.StoreBundle == "" {
		return &SettingsError{Field: "storeDir", Message: "either storeDir or storeBundle must be set"}
	}
	switch logging.Format(strings.ToLower(s.Logging.Format)) {
	case logging.JSONFormat, logging.HumanFormat:
	default:
		return &SettingsError{Field: "logging.format", Message: "must be 'json' or 'human'"}
	}
	switch strings.ToLower(s.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &SettingsError{Field: "logging.level", Message: "unknown level " + s.Logging.Level}
	}
	if s.Completion.CacheSize < 0 {
		return &SettingsError{Field: "completion.cacheSize", Message: "must not be negative"}
	}
	if s.Watch.DebounceMs < 0 {
		return &SettingsError{Field: "watch.debounceMs", Message: "must not be negative"}
	}
	if s.MaxConcurrentRequests < 1 {
		return &SettingsError{Field: "maxConcurrentRequests", Message: "must be at least 1"}
	}
	return nil
}

// StorePath returns the bundle when one is configured, else the store
// directory.
func (s *Settings) StorePath() string {
	if s.StoreBundle != "" {
		return s.StoreBundle
	}
	return s.StoreDir
}

// SettingsError represents a settings validation error
type SettingsError struct {
	Field   string
	Message string
}

func (e *SettingsError) Error() string {
	return "settings error in field '" + e.Field + "': " + e.Message
}
