package config

import (
	"log/slog"
	"slices"
)

// Config represents the complete semantic-pages configuration
type Config struct {
	BaseDir  string         `yaml:"-"` // Directory containing config file, for resolving relative paths
	Server   ServerConfig   `yaml:"server"`
	Pages    PagesConfig    `yaml:"pages"`
	UI       UIConfig       `yaml:"ui"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MetricsPath string `yaml:"metrics_path"` // Path of the Prometheus endpoint, empty disables it (default: "/metrics")
}

// PagesConfig holds page template settings
type PagesConfig struct {
	Dir       string `yaml:"dir"`        // Directory with *.html page templates (default: "./pages")
	ErrorPage string `yaml:"error_page"` // Page rendered when a page fails, relative to dir
	Live      bool   `yaml:"live"`       // Accept websocket connections for live re-rendering
}

// UIConfig holds settings of the component pipeline
type UIConfig struct {
	// EnableComponentSecurity turns on the permission check of every component tag.
	EnableComponentSecurity bool `yaml:"enable_ui_component_based_security"`

	// NativeElements lists custom elements implemented by browser scripts.
	NativeElements StringOrSlice `yaml:"native_elements"`
}

// SecurityConfig holds the rights granted to page viewers
type SecurityConfig struct {
	Permissions StringOrSlice `yaml:"permissions"` // e.g. "ui:component:view:*" or "ui:component:view:semantic:map"
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: "info")
	Format string `yaml:"format"` // text or json (default: "text")
}

// EnableUIComponentBasedSecurity reports whether component tags are permission checked.
func (c *Config) EnableUIComponentBasedSecurity() bool {
	return c != nil && c.UI.EnableComponentSecurity
}

// SlogLevel returns the configured log level.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StringOrSlice supports YAML fields that can be either a string or a slice of strings
type StringOrSlice []string

// UnmarshalYAML implements yaml.Unmarshaler to handle both string and []string
func (s *StringOrSlice) UnmarshalYAML(unmarshal func(any) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*s = []string{single}
		return nil
	}

	var slice []string
	if err := unmarshal(&slice); err != nil {
		return err
	}
	*s = slice
	return nil
}

// Contains checks if the slice contains the given string
func (s StringOrSlice) Contains(str string) bool {
	return slices.Contains(s, str)
}

// Defaults returns a configuration with default values
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "localhost",
			Port:        8080,
			MetricsPath: "/metrics",
		},
		Pages: PagesConfig{
			Dir: "./pages",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
