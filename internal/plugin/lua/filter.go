package lua

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/linthost/internal/lint"
	"github.com/dshills/linthost/internal/logging"
)

const filterFunction = "filter"

// Filter is a lint.Filter backed by a Lua script.
type Filter struct {
	state *State
	name  string
	log   *logging.Logger
}

// FilterOption configures a Filter.
type FilterOption func(*filterConfig)

type filterConfig struct {
	log     *logging.Logger
	timeout time.Duration
}

// WithFilterLogger sets the logger used for script errors and print.
func WithFilterLogger(log *logging.Logger) FilterOption {
	return func(c *filterConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// WithFilterTimeout bounds each filter call.
func WithFilterTimeout(d time.Duration) FilterOption {
	return func(c *filterConfig) {
		c.timeout = d
	}
}

// LoadFilter loads a filter script from path.
func LoadFilter(path string, opts ...FilterOption) (*Filter, error) {
	return newFilter(path, func(s *State) error { return s.DoFile(path) }, opts)
}

// NewFilter compiles a filter script from source. name identifies the
// script in log messages.
func NewFilter(name, source string, opts ...FilterOption) (*Filter, error) {
	return newFilter(name, func(s *State) error { return s.DoString(source) }, opts)
}

func newFilter(name string, load func(*State) error, opts []FilterOption) (*Filter, error) {
	cfg := filterConfig{log: logging.Nop(), timeout: DefaultExecutionTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.log.WithComponent("script").With("script", name)

	state := NewState(
		WithExecutionTimeout(cfg.timeout),
		WithPrint(func(msg string) { log.Info(msg) }),
	)
	if err := load(state); err != nil {
		state.Close()
		return nil, fmt.Errorf("load script %s: %w", name, err)
	}
	if !state.HasFunction(filterFunction) {
		state.Close()
		return nil, fmt.Errorf("load script %s: %w", name, ErrNoFilterFunction)
	}

	return &Filter{state: state, name: name, log: log}, nil
}

// Filter calls the script's filter function for d.
func (f *Filter) Filter(path string, d lint.Diagnostic) (lint.Diagnostic, bool) {
	ret, err := f.state.Call(filterFunction, func(L *lua.LState) lua.LValue {
		return diagnosticTable(L, path, d)
	})
	if err != nil {
		f.log.Warn("filter failed, keeping diagnostic", "path", path, "line", d.Line+1, "error", err)
		return d, true
	}
	return applyResult(ret, d)
}

// Close releases the script state.
func (f *Filter) Close() error {
	return f.state.Close()
}

func diagnosticTable(L *lua.LState, path string, d lint.Diagnostic) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("file", lua.LString(path))
	t.RawSetString("line", lua.LNumber(d.Line+1))
	t.RawSetString("message", lua.LString(d.Message))
	t.RawSetString("severity", lua.LString(d.Severity.String()))
	t.RawSetString("tool", lua.LString(d.Tool))
	return t
}

// applyResult interprets the filter's return value.
func applyResult(ret lua.LValue, d lint.Diagnostic) (lint.Diagnostic, bool) {
	switch v := ret.(type) {
	case *lua.LNilType:
		return d, false
	case lua.LBool:
		return d, bool(v)
	case *lua.LTable:
		if msg, ok := v.RawGetString("message").(lua.LString); ok {
			d.Message = string(msg)
		}
		if sev, ok := v.RawGetString("severity").(lua.LString); ok {
			d.Severity = lint.ParseSeverity(string(sev))
		}
		return d, true
	default:
		return d, true
	}
}
