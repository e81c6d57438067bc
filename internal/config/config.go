package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Host backends.
const (
	HostADB = "adb"
	HostX11 = "x11"
	HostSim = "sim"
)

const (
	DefaultPollInterval   = time.Second
	DefaultCommandTimeout = 5 * time.Second
	DefaultSimVersion     = 31
	DefaultMaxSizeMB      = 10
	DefaultMaxFiles       = 3
)

// ADBConfig configures the Android host.
type ADBConfig struct {
	Path           string        `yaml:"path" split_words:"true"`
	Serial         string        `yaml:"serial" split_words:"true"`
	CommandTimeout time.Duration `yaml:"command_timeout" split_words:"true"`
	// SDKOverride skips getprop detection when positive.
	SDKOverride int `yaml:"sdk_override" split_words:"true"`
}

// X11Config configures the X11 host.
type X11Config struct {
	Display string `yaml:"display" split_words:"true"`
}

// SimDisplay seeds one display of the simulated host.
type SimDisplay struct {
	ID       int    `yaml:"id"`
	Name     string `yaml:"name"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Rotation int    `yaml:"rotation"` // quarter turns, 0-3
}

// SimConfig configures the in-memory host.
type SimConfig struct {
	Version  int          `yaml:"version" split_words:"true"`
	Displays []SimDisplay `yaml:"displays" ignored:"true"`
}

// LoggingConfig controls the daemon log sinks.
type LoggingConfig struct {
	Level     string `yaml:"level" split_words:"true"`
	File      string `yaml:"file" split_words:"true"` // empty disables the file sink
	MaxSizeMB int    `yaml:"max_size_mb" split_words:"true"`
	MaxFiles  int    `yaml:"max_files" split_words:"true"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen" split_words:"true"` // empty disables the endpoint
}

// Config is the effective taskmirror configuration. Every scalar field can
// be overridden from the environment as TASKMIRROR_<SECTION>_<FIELD>, for
// example TASKMIRROR_ADB_SERIAL or TASKMIRROR_POLL_INTERVAL.
type Config struct {
	Host         string        `yaml:"host" split_words:"true"`
	DisplayID    int           `yaml:"display_id" split_words:"true"`
	PollInterval time.Duration `yaml:"poll_interval" split_words:"true"`

	ADB     ADBConfig     `yaml:"adb" split_words:"true"`
	X11     X11Config     `yaml:"x11" split_words:"true"`
	Sim     SimConfig     `yaml:"sim" split_words:"true"`
	Logging LoggingConfig `yaml:"logging" split_words:"true"`
	Metrics MetricsConfig `yaml:"metrics" split_words:"true"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Host:         HostADB,
		DisplayID:    0,
		PollInterval: DefaultPollInterval,
		ADB: ADBConfig{
			CommandTimeout: DefaultCommandTimeout,
		},
		Sim: SimConfig{
			Version: DefaultSimVersion,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: DefaultMaxSizeMB,
			MaxFiles:  DefaultMaxFiles,
		},
	}
}

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Host {
	case HostADB, HostX11, HostSim:
	default:
		return &ValidationError{Path: "host", Err: fmt.Errorf("host must be one of: adb, x11, sim")}
	}
	if c.DisplayID < 0 {
		return &ValidationError{Path: "display_id", Err: fmt.Errorf("display_id must be >= 0")}
	}
	if c.PollInterval <= 0 {
		return &ValidationError{Path: "poll_interval", Err: fmt.Errorf("poll_interval must be > 0")}
	}
	if c.ADB.CommandTimeout < 0 {
		return &ValidationError{Path: "adb.command_timeout", Err: fmt.Errorf("command_timeout must be >= 0")}
	}
	if c.ADB.SDKOverride < 0 {
		return &ValidationError{Path: "adb.sdk_override", Err: fmt.Errorf("sdk_override must be >= 0")}
	}
	if c.Sim.Version <= 0 {
		return &ValidationError{Path: "sim.version", Err: fmt.Errorf("version must be > 0")}
	}
	seen := make(map[int]bool, len(c.Sim.Displays))
	for i, d := range c.Sim.Displays {
		path := fmt.Sprintf("sim.displays.%d", i)
		if seen[d.ID] {
			return &ValidationError{Path: path + ".id", Err: fmt.Errorf("duplicate display id %d", d.ID)}
		}
		seen[d.ID] = true
		if d.Width <= 0 || d.Height <= 0 {
			return &ValidationError{Path: path, Err: fmt.Errorf("display %d must have a positive size", d.ID)}
		}
		if d.Rotation < 0 || d.Rotation > 3 {
			return &ValidationError{Path: path + ".rotation", Err: fmt.Errorf("display %d rotation must be 0-3", d.ID)}
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "logging.level", Err: fmt.Errorf("level must be one of: debug, info, warn, error")}
	}
	if c.Logging.MaxSizeMB < 0 {
		return &ValidationError{Path: "logging.max_size_mb", Err: fmt.Errorf("max_size_mb must be >= 0")}
	}
	if c.Logging.MaxFiles < 0 {
		return &ValidationError{Path: "logging.max_files", Err: fmt.Errorf("max_files must be >= 0")}
	}
	return nil
}

// GetLoggingConfig returns the logging configuration with defaults applied.
func (c *Config) GetLoggingConfig() LoggingConfig {
	if c == nil {
		return DefaultConfig().Logging
	}
	cfg := c.Logging
	if cfg.File != "" {
		cfg.File = expandHome(cfg.File)
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = DefaultMaxSizeMB
	}
	if cfg.MaxFiles == 0 {
		cfg.MaxFiles = DefaultMaxFiles
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	return cfg
}

// Marshal renders the effective configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
