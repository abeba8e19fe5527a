package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "LINTHOST_"

// DefaultPath returns the user configuration file path.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "linthost", "config.toml")
}

// Loader reads configuration layers.
type Loader struct {
	fs     FileSystem
	lookup func(string) (string, bool)
}

// NewLoader creates a loader reading the OS file system and environment.
func NewLoader() *Loader {
	return &Loader{fs: OSFS{}, lookup: os.LookupEnv}
}

// NewLoaderWith creates a loader with a custom file system and environment
// lookup.
func NewLoaderWith(fsys FileSystem, lookup func(string) (string, bool)) *Loader {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	return &Loader{fs: fsys, lookup: lookup}
}

// Load merges defaults, the file at path and the environment, then
// validates the result. A missing file is not an error.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := l.fs.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := decode(cfg, path, data); err != nil {
				return nil, err
			}
			cfg.Source = path
		}
	}

	if err := applyEnv(cfg, l.lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays TOML data onto cfg. List values in the file replace the
// defaults.
func decode(cfg *Config, path string, data []byte) error {
	defaults := *cfg
	cfg.Tools = nil
	cfg.Lint.Extensions = nil
	cfg.Watch.Ignore = nil

	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return parseError(path, err)
	}

	if cfg.Tools == nil {
		cfg.Tools = defaults.Tools
	}
	if cfg.Lint.Extensions == nil {
		cfg.Lint.Extensions = defaults.Lint.Extensions
	}
	if cfg.Watch.Ignore == nil {
		cfg.Watch.Ignore = defaults.Watch.Ignore
	}
	return nil
}

func parseError(path string, err error) error {
	pe := &ParseError{Path: path, Message: err.Error(), Err: err}

	var decErr *toml.DecodeError
	if errors.As(err, &decErr) {
		pe.Line, pe.Column = decErr.Position()
	}
	var strictErr *toml.StrictMissingError
	if errors.As(err, &strictErr) && len(strictErr.Errors) > 0 {
		pe.Line, pe.Column = strictErr.Errors[0].Position()
		pe.Message = "unknown key " + strings.Join(strictErr.Errors[0].Key(), ".")
	}
	return pe
}
