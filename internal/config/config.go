package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/linthost/internal/lint"
	"github.com/dshills/linthost/internal/logging"
)

// Config is the complete linthost configuration.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Lint    LintConfig    `toml:"lint"`
	Tools   []ToolConfig  `toml:"tools"`
	Watch   WatchConfig   `toml:"watch"`
	Script  ScriptConfig  `toml:"script"`
	Metrics MetricsConfig `toml:"metrics"`

	// Source is the file the configuration was read from, if any.
	Source string `toml:"-"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// LintConfig configures tool execution.
type LintConfig struct {
	// Extensions selects the files that are checked.
	Extensions []string `toml:"extensions"`

	// Timeout kills a tool that runs longer. Empty or "0" means no limit.
	Timeout string `toml:"timeout"`

	// Shell runs tools through `shell -c` when set.
	Shell string `toml:"shell"`

	// CaptureStderr includes standard error in the parsed output.
	CaptureStderr bool `toml:"capture_stderr"`

	// ShutdownTimeout bounds the wait for a running tool on exit.
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// ToolConfig describes one external lint tool.
type ToolConfig struct {
	Name         string   `toml:"name"`
	Executable   string   `toml:"executable"`
	Args         []string `toml:"args"`
	TrailingArgs []string `toml:"trailing_args"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	Debounce string   `toml:"debounce"`
	Ignore   []string `toml:"ignore"`
}

// ScriptConfig configures the Lua diagnostic filter.
type ScriptConfig struct {
	Path    string `toml:"path"`
	Timeout string `toml:"timeout"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Log: LogConfig{Level: "info"},
		Lint: LintConfig{
			Extensions:      []string{".php"},
			Timeout:         "0",
			CaptureStderr:   true,
			ShutdownTimeout: "5s",
		},
		Watch: WatchConfig{
			Debounce: "200ms",
			Ignore:   []string{".git", "vendor", "node_modules"},
		},
		Script: ScriptConfig{Timeout: "1s"},
	}
	cfg.Tools = defaultToolConfigs()
	return cfg
}

func defaultToolConfigs() []ToolConfig {
	tools := lint.DefaultTools()
	out := make([]ToolConfig, len(tools))
	for i, t := range tools {
		out[i] = ToolConfig{
			Name:         t.Name,
			Executable:   t.Executable,
			Args:         append([]string(nil), t.Args...),
			TrailingArgs: append([]string(nil), t.TrailingArgs...),
		}
	}
	return out
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, &FieldError{Field: "log.level", Value: c.Log.Level, Message: "must be debug, info, warn or error"})
	}

	errs = append(errs, checkDuration("lint.timeout", c.Lint.Timeout))
	errs = append(errs, checkDuration("lint.shutdown_timeout", c.Lint.ShutdownTimeout))
	errs = append(errs, checkDuration("watch.debounce", c.Watch.Debounce))
	errs = append(errs, checkDuration("script.timeout", c.Script.Timeout))

	for i, ext := range c.Lint.Extensions {
		if strings.TrimSpace(ext) == "" {
			errs = append(errs, &FieldError{Field: fmt.Sprintf("lint.extensions[%d]", i), Value: ext, Message: "must not be empty"})
		}
	}

	if len(c.Tools) == 0 {
		errs = append(errs, &FieldError{Field: "tools", Value: 0, Message: "at least one tool is required"})
	}
	seen := make(map[string]bool, len(c.Tools))
	for i, t := range c.Tools {
		field := fmt.Sprintf("tools[%d]", i)
		if t.Name == "" {
			errs = append(errs, &FieldError{Field: field + ".name", Value: `""`, Message: "must not be empty"})
		} else if seen[t.Name] {
			errs = append(errs, &FieldError{Field: field + ".name", Value: t.Name, Message: "duplicate tool name"})
		}
		seen[t.Name] = true
		if t.Executable == "" {
			errs = append(errs, &FieldError{Field: field + ".executable", Value: `""`, Message: "must not be empty"})
		}
	}

	return errors.Join(errs...)
}

func checkDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return &FieldError{Field: field, Value: value, Message: "must be a duration such as 500ms or 30s"}
	}
	if d < 0 {
		return &FieldError{Field: field, Value: value, Message: "must not be negative"}
	}
	return nil
}

// parseDuration returns the duration of a validated field.
func parseDuration(value string) time.Duration {
	if value == "" {
		return 0
	}
	d, _ := time.ParseDuration(value)
	return d
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() logging.Level {
	level, _ := logging.ParseLevel(c.Log.Level)
	return level
}

// LintTimeout returns the per-tool time limit, 0 for none.
func (c *Config) LintTimeout() time.Duration {
	return parseDuration(c.Lint.Timeout)
}

// ShutdownTimeout returns the time allowed for running tools on exit.
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDuration(c.Lint.ShutdownTimeout)
}

// WatchDebounce returns the watcher debounce delay.
func (c *Config) WatchDebounce() time.Duration {
	return parseDuration(c.Watch.Debounce)
}

// ScriptTimeout returns the time limit of one filter call.
func (c *Config) ScriptTimeout() time.Duration {
	return parseDuration(c.Script.Timeout)
}

// LintTools converts the tool table into the orchestrator's sequence.
func (c *Config) LintTools() []lint.Tool {
	tools := make([]lint.Tool, len(c.Tools))
	for i, t := range c.Tools {
		tools[i] = lint.Tool{
			Name:         t.Name,
			Executable:   t.Executable,
			Args:         append([]string(nil), t.Args...),
			TrailingArgs: append([]string(nil), t.TrailingArgs...),
		}
	}
	return tools
}

// Extensions returns the checked extensions, each with a leading dot.
func (c *Config) Extensions() []string {
	out := make([]string, 0, len(c.Lint.Extensions))
	for _, ext := range c.Lint.Extensions {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
