package config

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/dshills/linthost/internal/logging"
)

// MemFS is an in-memory file system for testing.
type MemFS struct {
	files map[string][]byte
}

func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

func (m *MemFS) AddFile(path string, content string) {
	m.files[path] = []byte(content)
}

func (m *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (m *MemFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m.files[path]; ok {
		return &memFileInfo{name: path}, nil
	}
	return nil, fs.ErrNotExist
}

type memFileInfo struct {
	name string
}

func (f *memFileInfo) Name() string       { return f.name }
func (f *memFileInfo) Size() int64        { return 0 }
func (f *memFileInfo) Mode() fs.FileMode  { return 0644 }
func (f *memFileInfo) ModTime() time.Time { return time.Now() }
func (f *memFileInfo) IsDir() bool        { return false }
func (f *memFileInfo) Sys() any           { return nil }

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.LogLevel() != logging.LevelInfo {
		t.Errorf("LogLevel() = %v, want info", cfg.LogLevel())
	}
	if cfg.LintTimeout() != 0 {
		t.Errorf("LintTimeout() = %v, want 0", cfg.LintTimeout())
	}
	if cfg.ShutdownTimeout() != 5*time.Second {
		t.Errorf("ShutdownTimeout() = %v, want 5s", cfg.ShutdownTimeout())
	}
	if cfg.WatchDebounce() != 200*time.Millisecond {
		t.Errorf("WatchDebounce() = %v, want 200ms", cfg.WatchDebounce())
	}
	if !cfg.Lint.CaptureStderr {
		t.Error("CaptureStderr should default to true")
	}

	tools := cfg.LintTools()
	if len(tools) != 3 {
		t.Fatalf("len(LintTools()) = %d, want 3", len(tools))
	}
	want := []string{"phpmd", "phpcs", "php"}
	for i, name := range want {
		if tools[i].Name != name {
			t.Errorf("tools[%d].Name = %q, want %q", i, tools[i].Name, name)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	l := NewLoaderWith(NewMemFS(), nil)
	cfg, err := l.Load("/nope.toml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != "" {
		t.Errorf("Source = %q, want empty", cfg.Source)
	}
	if len(cfg.Tools) != 3 {
		t.Errorf("len(Tools) = %d, want defaults", len(cfg.Tools))
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := NewLoaderWith(NewMemFS(), nil).Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoad_File(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/config.toml", `
[log]
level = "debug"

[lint]
timeout = "30s"
shell = "/bin/sh"

[watch]
debounce = "1s"

[metrics]
addr = ":9100"
`)

	cfg, err := NewLoaderWith(memfs, nil).Load("/config.toml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != "/config.toml" {
		t.Errorf("Source = %q", cfg.Source)
	}
	if cfg.LogLevel() != logging.LevelDebug {
		t.Errorf("LogLevel() = %v, want debug", cfg.LogLevel())
	}
	if cfg.LintTimeout() != 30*time.Second {
		t.Errorf("LintTimeout() = %v, want 30s", cfg.LintTimeout())
	}
	if cfg.Lint.Shell != "/bin/sh" {
		t.Errorf("Lint.Shell = %q", cfg.Lint.Shell)
	}
	if cfg.WatchDebounce() != time.Second {
		t.Errorf("WatchDebounce() = %v, want 1s", cfg.WatchDebounce())
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q", cfg.Metrics.Addr)
	}

	// Unset values keep their defaults.
	if !cfg.Lint.CaptureStderr {
		t.Error("CaptureStderr lost its default")
	}
	if len(cfg.Lint.Extensions) != 1 || cfg.Lint.Extensions[0] != ".php" {
		t.Errorf("Extensions = %v, want [.php]", cfg.Lint.Extensions)
	}
	if len(cfg.Watch.Ignore) != 3 {
		t.Errorf("Watch.Ignore = %v, want defaults", cfg.Watch.Ignore)
	}
	if len(cfg.Tools) != 3 {
		t.Errorf("len(Tools) = %d, want defaults", len(cfg.Tools))
	}
}

func TestLoad_ToolsReplaceDefaults(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/config.toml", `
[[tools]]
name = "php"
executable = "/usr/bin/php8.3"
args = ["-l"]

[[tools]]
name = "phpstan"
executable = "phpstan"
args = ["analyse", "--error-format=checkstyle"]
trailing_args = ["--no-progress"]
`)

	cfg, err := NewLoaderWith(memfs, nil).Load("/config.toml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	tools := cfg.LintTools()
	if len(tools) != 2 {
		t.Fatalf("len(LintTools()) = %d, want 2", len(tools))
	}
	if tools[0].Executable != "/usr/bin/php8.3" {
		t.Errorf("tools[0].Executable = %q", tools[0].Executable)
	}
	if tools[1].Name != "phpstan" || len(tools[1].Args) != 2 || len(tools[1].TrailingArgs) != 1 {
		t.Errorf("tools[1] = %+v", tools[1])
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/config.toml", "[log]\nlevel = \"debug\"\ncolour = true\n")

	_, err := NewLoaderWith(memfs, nil).Load("/config.toml")
	if err == nil {
		t.Fatal("Load() should reject unknown keys")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %T %v, want *ParseError", err, err)
	}
	if pe.Line != 3 {
		t.Errorf("Line = %d, want 3", pe.Line)
	}
	if !strings.Contains(pe.Message, "colour") {
		t.Errorf("Message = %q, want the key name", pe.Message)
	}
	if !strings.Contains(pe.Error(), "/config.toml") {
		t.Errorf("Error() = %q, want the path", pe.Error())
	}
}

func TestLoad_SyntaxError(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/config.toml", "[log]\nlevel = \n")

	_, err := NewLoaderWith(memfs, nil).Load("/config.toml")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if pe.Line == 0 {
		t.Error("Line should be set for syntax errors")
	}
	if pe.Unwrap() == nil {
		t.Error("Unwrap() should return the decoder error")
	}
}

func TestLoad_Env(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/config.toml", "[log]\nlevel = \"debug\"\n")

	l := NewLoaderWith(memfs, env(map[string]string{
		"LINTHOST_LOG_LEVEL":           "warn",
		"LINTHOST_LINT_TIMEOUT":        "10s",
		"LINTHOST_LINT_SHELL":          "/bin/bash",
		"LINTHOST_LINT_CAPTURE_STDERR": "false",
		"LINTHOST_LINT_EXTENSIONS":     "php, phtml ,",
		"LINTHOST_SCRIPT_PATH":         "/etc/linthost/filter.lua",
		"LINTHOST_METRICS_ADDR":        "127.0.0.1:9100",
		"LINTHOST_WATCH_DEBOUNCE":      "50ms",
	}))
	cfg, err := l.Load("/config.toml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel() != logging.LevelWarn {
		t.Errorf("LogLevel() = %v, env should win over the file", cfg.LogLevel())
	}
	if cfg.LintTimeout() != 10*time.Second {
		t.Errorf("LintTimeout() = %v", cfg.LintTimeout())
	}
	if cfg.Lint.Shell != "/bin/bash" {
		t.Errorf("Lint.Shell = %q", cfg.Lint.Shell)
	}
	if cfg.Lint.CaptureStderr {
		t.Error("CaptureStderr should be false")
	}
	exts := cfg.Extensions()
	if len(exts) != 2 || exts[0] != ".php" || exts[1] != ".phtml" {
		t.Errorf("Extensions() = %v, want [.php .phtml]", exts)
	}
	if cfg.Script.Path != "/etc/linthost/filter.lua" {
		t.Errorf("Script.Path = %q", cfg.Script.Path)
	}
	if cfg.Metrics.Addr != "127.0.0.1:9100" {
		t.Errorf("Metrics.Addr = %q", cfg.Metrics.Addr)
	}
	if cfg.WatchDebounce() != 50*time.Millisecond {
		t.Errorf("WatchDebounce() = %v", cfg.WatchDebounce())
	}
}

func TestLoad_EnvInvalidBool(t *testing.T) {
	l := NewLoaderWith(NewMemFS(), env(map[string]string{
		"LINTHOST_LINT_CAPTURE_STDERR": "sometimes",
	}))
	_, err := l.Load("")
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoad_EnvInvalidDuration(t *testing.T) {
	l := NewLoaderWith(NewMemFS(), env(map[string]string{
		"LINTHOST_LINT_TIMEOUT": "soon",
	}))
	_, err := l.Load("")
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
	if !strings.Contains(err.Error(), "lint.timeout") {
		t.Errorf("error = %q, want the field name", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad timeout", func(c *Config) { c.Lint.Timeout = "forever" }, "lint.timeout"},
		{"negative timeout", func(c *Config) { c.Lint.Timeout = "-1s" }, "lint.timeout"},
		{"bad debounce", func(c *Config) { c.Watch.Debounce = "x" }, "watch.debounce"},
		{"bad script timeout", func(c *Config) { c.Script.Timeout = "1y" }, "script.timeout"},
		{"empty extension", func(c *Config) { c.Lint.Extensions = []string{" "} }, "lint.extensions[0]"},
		{"no tools", func(c *Config) { c.Tools = nil }, "tools"},
		{"unnamed tool", func(c *Config) { c.Tools[1].Name = "" }, "tools[1].name"},
		{"duplicate tool", func(c *Config) { c.Tools[2].Name = "phpmd" }, "tools[2].name"},
		{"no executable", func(c *Config) { c.Tools[0].Executable = "" }, "tools[0].executable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("Validate() = %v, want *FieldError", err)
			}
			if fe.Field != tt.field {
				t.Errorf("Field = %q, want %q", fe.Field, tt.field)
			}
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.Lint.Timeout = "never"
	cfg.Tools[0].Executable = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	msg := err.Error()
	for _, field := range []string{"log.level", "lint.timeout", "tools[0].executable"} {
		if !strings.Contains(msg, field) {
			t.Errorf("error %q does not mention %s", msg, field)
		}
	}
}

func TestExtensions(t *testing.T) {
	cfg := Default()
	cfg.Lint.Extensions = []string{"php", ".inc", "", " phtml "}
	got := cfg.Extensions()
	want := []string{".php", ".inc", ".phtml"}
	if len(got) != len(want) {
		t.Fatalf("Extensions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Extensions()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLintTools_Copies(t *testing.T) {
	cfg := Default()
	tools := cfg.LintTools()
	tools[1].Args[0] = "changed"
	if cfg.Tools[1].Args[0] != "--report=xml" {
		t.Error("LintTools() should not alias the configuration")
	}
}

func TestEnvVars(t *testing.T) {
	vars := EnvVars()
	if len(vars) != len(envSetters) {
		t.Fatalf("len(EnvVars()) = %d", len(vars))
	}
	for _, v := range vars {
		if !strings.HasPrefix(v, EnvPrefix) {
			t.Errorf("%q lacks prefix", v)
		}
	}
}
