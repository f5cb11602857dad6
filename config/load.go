package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a file with ENV interpolation. An empty configPath yields the
// defaults.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	cfg := Defaults()
	if configPath == "" {
		return cfg, Validate(cfg)
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err = Parse(interpolateEnv(data, getenv))
	if err != nil {
		return nil, err
	}

	cfg.BaseDir = filepath.Dir(absPath)
	if cfg.Pages.Dir != "" && !filepath.IsAbs(cfg.Pages.Dir) {
		cfg.Pages.Dir = filepath.Join(cfg.BaseDir, cfg.Pages.Dir)
	}
	return cfg, nil
}

// Parse decodes YAML configuration over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port: %d (must be 1-65535)", cfg.Server.Port))
	}
	if cfg.Server.MetricsPath != "" && !strings.HasPrefix(cfg.Server.MetricsPath, "/") {
		errs = append(errs, fmt.Sprintf("invalid metrics_path: %q (must start with /)", cfg.Server.MetricsPath))
	}
	if cfg.Pages.Dir == "" {
		errs = append(errs, "pages.dir is required")
	}

	for i, name := range cfg.UI.NativeElements {
		if name != strings.ToLower(name) || !strings.Contains(name, "-") {
			errs = append(errs, fmt.Sprintf("ui.native_elements[%d]: %q is not a valid custom element name", i, name))
		}
	}

	for i, p := range cfg.Security.Permissions {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Sprintf("security.permissions[%d]: empty permission", i))
		}
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid logging.level: %q (must be debug, info, warn or error)", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid logging.format: %q (must be text or json)", cfg.Logging.Format))
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		value := getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}
