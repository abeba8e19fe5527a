package config

import (
	"strconv"
	"strings"
)

// envSetters maps LINTHOST_* variables to the fields they override.
var envSetters = map[string]func(*Config, string) error{
	"LOG_LEVEL": func(c *Config, v string) error {
		c.Log.Level = v
		return nil
	},
	"LINT_TIMEOUT": func(c *Config, v string) error {
		c.Lint.Timeout = v
		return nil
	},
	"LINT_SHELL": func(c *Config, v string) error {
		c.Lint.Shell = v
		return nil
	},
	"LINT_CAPTURE_STDERR": func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &FieldError{Field: EnvPrefix + "LINT_CAPTURE_STDERR", Value: v, Message: "must be a boolean"}
		}
		c.Lint.CaptureStderr = b
		return nil
	},
	"LINT_EXTENSIONS": func(c *Config, v string) error {
		c.Lint.Extensions = splitList(v)
		return nil
	},
	"WATCH_DEBOUNCE": func(c *Config, v string) error {
		c.Watch.Debounce = v
		return nil
	},
	"SCRIPT_PATH": func(c *Config, v string) error {
		c.Script.Path = v
		return nil
	},
	"METRICS_ADDR": func(c *Config, v string) error {
		c.Metrics.Addr = v
		return nil
	},
}

// EnvVars returns the names of the supported environment overrides.
func EnvVars() []string {
	names := make([]string, 0, len(envSetters))
	for k := range envSetters {
		names = append(names, EnvPrefix+k)
	}
	return names
}

// applyEnv overlays environment variables. Empty values are treated as set.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for key, set := range envSetters {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		if err := set(cfg, v); err != nil {
			return err
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
