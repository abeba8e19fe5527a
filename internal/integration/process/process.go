package process

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// State is the lifecycle stage of a tool process.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateExited
	// StateKilled means the process ended on a signal, usually a timeout
	// or cancellation kill.
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Command is an external program invocation.
type Command struct {
	// Name identifies the command in logs and tracking.
	Name string

	// Argv is the executable followed by its arguments.
	Argv []string

	// Line is the shell-quoted form of Argv, used when running through a shell.
	Line string
}

// Process is one supervised run of a Command.
type Process struct {
	// ID is unique for the lifetime of the supervisor.
	ID string

	// Command is what was launched.
	Command Command

	cmd  *exec.Cmd
	done chan struct{}

	state    atomic.Int32
	exitCode atomic.Int32

	mu      sync.Mutex
	started time.Time
	ended   time.Time

	// onExit runs after Wait returns and before done is closed.
	onExit func(p *Process)
}

func newProcess(id string, command Command, cmd *exec.Cmd) *Process {
	p := &Process{
		ID:      id,
		Command: command,
		cmd:     cmd,
		done:    make(chan struct{}),
	}
	p.state.Store(int32(StateCreated))
	p.exitCode.Store(-1)
	return p
}

// State returns the current state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// ExitCode returns the exit status. It is -1 before exit and for a
// process that could not be waited on.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// Done is closed once the process has exited and been untracked.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// PID returns the OS process id, or -1 before start.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// Duration returns the run time so far, or the total once exited.
func (p *Process) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.started.IsZero():
		return 0
	case p.ended.IsZero():
		return time.Since(p.started)
	default:
		return p.ended.Sub(p.started)
	}
}

// Kill sends SIGKILL to the process group.
func (p *Process) Kill() error {
	return p.signal(syscall.SIGKILL)
}

func (p *Process) terminate() error {
	return p.signal(syscall.SIGTERM)
}

// signal reaches the whole group when the process leads one, so a tool
// wrapper script cannot leave its interpreter running.
func (p *Process) signal(sig syscall.Signal) error {
	if p.State() != StateRunning || p.cmd.Process == nil {
		return ErrProcessNotStarted
	}
	if attr := p.cmd.SysProcAttr; attr != nil && attr.Setpgid {
		if err := syscall.Kill(-p.cmd.Process.Pid, sig); err == nil {
			return nil
		}
	}
	return p.cmd.Process.Signal(sig)
}

func (p *Process) start() error {
	if p.State() != StateCreated {
		return ErrProcessAlreadyStarted
	}
	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.Command.Name, err)
	}

	p.mu.Lock()
	p.started = time.Now()
	p.mu.Unlock()
	p.state.Store(int32(StateRunning))

	go p.wait()
	return nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()

	code, state := 0, StateExited
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		code = exitErr.ExitCode()
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			state = StateKilled
		}
	default:
		code = -1
	}

	p.mu.Lock()
	p.ended = time.Now()
	p.mu.Unlock()
	p.exitCode.Store(int32(code))
	p.state.Store(int32(state))

	if p.onExit != nil {
		p.onExit(p)
	}
	close(p.done)
}

var (
	// ErrProcessNotStarted is returned when signalling a process that is
	// not running.
	ErrProcessNotStarted = errors.New("process not started")

	// ErrProcessAlreadyStarted is returned when a process is started twice.
	ErrProcessAlreadyStarted = errors.New("process already started")

	// ErrProcessLimit is returned when the supervisor is at its process limit.
	ErrProcessLimit = errors.New("process limit reached")

	// ErrEmptyCommand is returned when a command has no executable.
	ErrEmptyCommand = errors.New("empty command")
)
