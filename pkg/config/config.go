// Package config loads kgraph's application configuration via viper,
// searching the working directory, the user's config directory, and the
// system config directory, with defaults for every field so the tool
// runs with zero configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/openclaw/kgraph/internal/nudge"
)

// Config is the complete application configuration.
type Config struct {
	Profile     string            `mapstructure:"profile"`
	Database    DatabaseConfig    `mapstructure:"database"`
	RestAPI     RestAPIConfig     `mapstructure:"rest_api"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	EventSink   EventSinkConfig   `mapstructure:"event_sink"`
	Nudge       nudge.Config      `mapstructure:"nudge"`
}

// DatabaseConfig locates the two SQLite databases the service owns: the
// knowledge graph and the semantic memory store. They are kept as
// separate files, matching the prototype's separate kg.db / memory.db
// skill databases, rather than merged into one schema.
type DatabaseConfig struct {
	KGPath             string `mapstructure:"kg_path"`
	SemanticMemoryPath string `mapstructure:"semantic_memory_path"`
}

// RestAPIConfig configures the optional read-only HTTP inspection
// surface.
type RestAPIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	CORS    bool   `mapstructure:"cors"`
}

// LoggingConfig holds structured-logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
	Output string `mapstructure:"output"` // stderr, stdout, or a file path
}

// EventSinkConfig locates the append-only event log and metrics
// directories. Both default to paths derived from the config directory.
// No code in this module passes these fields to internal/eventsink,
// which reads OPENCLAW_LOG_FILE / OPENCLAW_METRICS_DIR itself, matching
// the environment variables structured_logging.py and metrics.py read in
// the prototype.
type EventSinkConfig struct {
	LogFile    string `mapstructure:"log_file"`
	MetricsDir string `mapstructure:"metrics_dir"`
}

// DefaultConfig returns configuration with built-in default values.
func DefaultConfig() *Config {
	configDir := ConfigPath()

	return &Config{
		Profile: "default",
		Database: DatabaseConfig{
			KGPath:             filepath.Join(configDir, "kg.db"),
			SemanticMemoryPath: filepath.Join(configDir, "memory.db"),
		},
		RestAPI: RestAPIConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    3002,
			CORS:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		EventSink: EventSinkConfig{
			LogFile:    filepath.Join(configDir, "events.jsonl"),
			MetricsDir: filepath.Join(configDir, "metrics"),
		},
		Nudge: nudge.DefaultConfig(),
	}
}

// Load loads configuration from a YAML file with fallback to defaults.
// Searches, in order: ./config.yaml, ~/.kgraph/config.yaml,
// /etc/kgraph/config.yaml.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	homeDir, _ := os.UserHomeDir()
	v.AddConfigPath(filepath.Join(homeDir, ".kgraph"))
	v.AddConfigPath("/etc/kgraph")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("profile", def.Profile)
	v.SetDefault("database.kg_path", def.Database.KGPath)
	v.SetDefault("database.semantic_memory_path", def.Database.SemanticMemoryPath)

	v.SetDefault("rest_api.enabled", def.RestAPI.Enabled)
	v.SetDefault("rest_api.host", def.RestAPI.Host)
	v.SetDefault("rest_api.port", def.RestAPI.Port)
	v.SetDefault("rest_api.cors", def.RestAPI.CORS)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.output", def.Logging.Output)

	v.SetDefault("event_sink.log_file", def.EventSink.LogFile)
	v.SetDefault("event_sink.metrics_dir", def.EventSink.MetricsDir)

	v.SetDefault("nudge.stale_thresholds_days.person", def.Nudge.StaleThresholds.Person)
	v.SetDefault("nudge.stale_thresholds_days.project", def.Nudge.StaleThresholds.Project)
	v.SetDefault("nudge.stale_thresholds_days.org", def.Nudge.StaleThresholds.Org)
	v.SetDefault("nudge.stale_thresholds_days.event", def.Nudge.StaleThresholds.Event)
	v.SetDefault("nudge.travel_alert_days", def.Nudge.TravelAlertDays)
	v.SetDefault("nudge.birthday_alert_days", def.Nudge.BirthdayAlertDays)
	v.SetDefault("nudge.quiet_hours.start", def.Nudge.QuietHours.Start)
	v.SetDefault("nudge.quiet_hours.end", def.Nudge.QuietHours.End)
	v.SetDefault("nudge.max_nudges_per_day", def.Nudge.MaxNudgesPerDay)
	v.SetDefault("nudge.min_strength_for_followup", def.Nudge.MinStrengthForFollowup)
	v.SetDefault("nudge.owner_name", def.Nudge.OwnerName)
	v.SetDefault("nudge.timezone", def.Nudge.Timezone)
}

// Validate checks the configuration for obviously invalid values.
func (c *Config) Validate() error {
	if c.Database.KGPath == "" {
		return fmt.Errorf("database.kg_path is required")
	}
	if c.Database.SemanticMemoryPath == "" {
		return fmt.Errorf("database.semantic_memory_path is required")
	}

	if c.RestAPI.Enabled {
		if c.RestAPI.Port < 1 || c.RestAPI.Port > 65535 {
			return fmt.Errorf("rest_api.port must be between 1 and 65535")
		}
		if c.RestAPI.Host == "" {
			return fmt.Errorf("rest_api.host is required when REST API is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}

	if c.Nudge.QuietHours.Start < 0 || c.Nudge.QuietHours.Start > 23 {
		return fmt.Errorf("nudge.quiet_hours.start must be between 0 and 23")
	}
	if c.Nudge.QuietHours.End < 0 || c.Nudge.QuietHours.End > 23 {
		return fmt.Errorf("nudge.quiet_hours.end must be between 0 and 23")
	}
	if c.Nudge.MaxNudgesPerDay < 0 {
		return fmt.Errorf("nudge.max_nudges_per_day must be >= 0")
	}

	return nil
}

// EnsureConfigDir creates the directories backing both databases if
// missing.
func (c *Config) EnsureConfigDir() error {
	for _, path := range []string{c.Database.KGPath, c.Database.SemanticMemoryPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return nil
}

// ConfigPath returns the path to the configuration directory.
func ConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".kgraph")
}
