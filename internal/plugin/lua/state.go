package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds a single script call.
const DefaultExecutionTimeout = time.Second

// State wraps a sandboxed gopher-lua state.
//
// gopher-lua's LState is not goroutine-safe; State serialises every call
// with a mutex.
type State struct {
	mu     sync.Mutex
	L      *lua.LState
	closed bool

	executionTimeout time.Duration
	print            func(string)
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout sets the time limit of each call. Zero disables it.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.executionTimeout = d
	}
}

// WithPrint redirects the script's print function.
func WithPrint(fn func(string)) StateOption {
	return func(s *State) {
		s.print = fn
	}
}

// NewState creates a sandboxed Lua state.
func NewState(opts ...StateOption) *State {
	s := &State{executionTimeout: DefaultExecutionTimeout}
	for _, opt := range opts {
		opt(s)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	installSandbox(L, s.print)
	s.L = L
	return s
}

// DoString executes a chunk of Lua code.
func (s *State) DoString(code string) error {
	return s.do(func() error { return s.L.DoString(code) })
}

// DoFile executes a Lua file.
func (s *State) DoFile(path string) error {
	return s.do(func() error { return s.L.DoFile(path) })
}

func (s *State) do(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	ctx, cancel := s.withDeadline()
	defer cancel()
	return timeoutError(ctx, recoverCall(fn))
}

// HasFunction reports whether a global function named name exists.
func (s *State) HasFunction(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	return s.L.GetGlobal(name).Type() == lua.LTFunction
}

// Call calls a global function with one argument built by arg and returns
// its first result.
func (s *State) Call(name string, arg func(L *lua.LState) lua.LValue) (lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil, ErrStateClosed
	}

	fn := s.L.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return lua.LNil, fmt.Errorf("%q is not a function (got %s)", name, fn.Type())
	}

	ctx, cancel := s.withDeadline()
	defer cancel()

	err := recoverCall(func() error {
		return s.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, arg(s.L))
	})
	if err != nil {
		return lua.LNil, timeoutError(ctx, err)
	}

	ret := s.L.Get(-1)
	s.L.Pop(1)
	return ret, nil
}

// withDeadline installs a context that aborts the running chunk once the
// execution timeout elapses.
func (s *State) withDeadline() (context.Context, context.CancelFunc) {
	if s.executionTimeout <= 0 {
		return context.Background(), func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.executionTimeout)
	s.L.SetContext(ctx)
	return ctx, func() {
		s.L.RemoveContext()
		cancel()
	}
}

// timeoutError maps an error raised by an expired deadline to
// ErrExecutionTimeout.
func timeoutError(ctx context.Context, err error) error {
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
	}
	return err
}

func recoverCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Close releases the Lua state. It is safe to call more than once.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
