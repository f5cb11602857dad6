package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  port: 9090
pages:
  dir: ./site
  error_page: error.html
  live: true
ui:
  enable_ui_component_based_security: true
  native_elements:
    - ace-editor
    - mp-tree
security:
  permissions: "ui:component:view:*"
logging:
  level: debug
  format: json
`))
	require.NoError(t, err)

	want := &Config{
		Server:   ServerConfig{Host: "localhost", Port: 9090, MetricsPath: "/metrics"},
		Pages:    PagesConfig{Dir: "./site", ErrorPage: "error.html", Live: true},
		UI:       UIConfig{EnableComponentSecurity: true, NativeElements: StringOrSlice{"ace-editor", "mp-tree"}},
		Security: SecurityConfig{Permissions: StringOrSlice{"ui:component:view:*"}},
		Logging:  LoggingConfig{Level: "debug", Format: "json"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
	require.True(t, cfg.EnableUIComponentBasedSecurity())
	require.Equal(t, slog.LevelDebug, cfg.Logging.SlogLevel())
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
	require.False(t, cfg.EnableUIComponentBasedSecurity())

	var nilCfg *Config
	require.False(t, nilCfg.EnableUIComponentBasedSecurity())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("server: ["))
	require.ErrorContains(t, err, "failed to parse config")
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 0
	cfg.Server.MetricsPath = "metrics"
	cfg.Pages.Dir = ""
	cfg.UI.NativeElements = StringOrSlice{"ok-name", "Bad-Name", "nodash"}
	cfg.Security.Permissions = StringOrSlice{" "}
	cfg.Logging.Level = "trace"
	cfg.Logging.Format = "xml"

	err := Validate(cfg)
	require.Error(t, err)

	msg := err.Error()
	require.True(t, strings.HasPrefix(msg, "configuration errors:\n  - "))
	for _, want := range []string{
		"invalid port: 0",
		`invalid metrics_path: "metrics"`,
		"pages.dir is required",
		`ui.native_elements[1]: "Bad-Name"`,
		`ui.native_elements[2]: "nodash"`,
		"security.permissions[0]: empty permission",
		`invalid logging.level: "trace"`,
		`invalid logging.format: "xml"`,
	} {
		require.Contains(t, msg, want)
	}
	require.NotContains(t, msg, "ok-name")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  host: ${HOST:-0.0.0.0}
  port: ${PORT}
pages:
  dir: pages
security:
  permissions: ${GRANT:-ui:component:view:*}
`), 0o644))

	env := map[string]string{"PORT": "8181"}
	cfg, err := Load(path, func(k string) string { return env[k] })
	require.NoError(t, err)

	require.Equal(t, dir, cfg.BaseDir)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 8181, cfg.Server.Port)
	require.Equal(t, filepath.Join(dir, "pages"), cfg.Pages.Dir)
	require.Equal(t, StringOrSlice{"ui:component:view:*"}, cfg.Security.Permissions)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("", os.Getenv)
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), os.Getenv)
	require.ErrorContains(t, err, "failed to read config")
}

func TestInterpolateEnv(t *testing.T) {
	env := map[string]string{"A": "1", "EMPTY": ""}
	getenv := func(k string) string { return env[k] }

	tests := []struct {
		in   string
		want string
	}{
		{"${A}", "1"},
		{"${A:-2}", "1"},
		{"${EMPTY:-fallback}", "fallback"},
		{"${MISSING}", ""},
		{"x-${A}-${MISSING:-y}", "x-1-y"},
		{"$A and {A}", "$A and {A}"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, string(interpolateEnv([]byte(tt.in), getenv)))
		})
	}
}

func TestStringOrSlice(t *testing.T) {
	var v struct {
		One  StringOrSlice `yaml:"one"`
		Many StringOrSlice `yaml:"many"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("one: a\nmany: [b, c]\n"), &v))
	require.Equal(t, StringOrSlice{"a"}, v.One)
	require.Equal(t, StringOrSlice{"b", "c"}, v.Many)
	require.True(t, v.Many.Contains("c"))
	require.False(t, v.Many.Contains("a"))

	require.Error(t, yaml.Unmarshal([]byte("one: {a: b}\n"), &v))
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for level, want := range tests {
		require.Equal(t, want, LoggingConfig{Level: level}.SlogLevel())
	}
}
