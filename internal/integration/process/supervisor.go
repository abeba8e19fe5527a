package process

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/linthost/internal/logging"
)

var (
	// ErrProcessNotFound is returned when a process ID is not tracked.
	ErrProcessNotFound = errors.New("process not found")

	// ErrSupervisorShutdown is returned by Start after Shutdown.
	ErrSupervisorShutdown = errors.New("supervisor is shutting down")
)

// Supervisor tracks live tool processes and bounds how many run at once.
// It is safe for concurrent use.
type Supervisor struct {
	mu        sync.Mutex
	processes map[string]*Process
	closed    atomic.Bool

	maxProcesses int
	onExit       func(p *Process)
	log          *logging.Logger
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithMaxProcesses limits the number of live processes (0 = unlimited).
func WithMaxProcesses(max int) SupervisorOption {
	return func(s *Supervisor) {
		s.maxProcesses = max
	}
}

// WithExitHandler sets a function called for every process that exits,
// after it is untracked and before its Done channel closes.
func WithExitHandler(fn func(p *Process)) SupervisorOption {
	return func(s *Supervisor) {
		s.onExit = fn
	}
}

// WithSupervisorLogger logs process starts and exits at debug level.
func WithSupervisorLogger(log *logging.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if log != nil {
			s.log = log.WithComponent("process")
		}
	}
}

// NewSupervisor creates a supervisor.
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		processes: make(map[string]*Process),
		log:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts c as a run of command under a fresh ID. The caller sets up
// the command's I/O.
func (s *Supervisor) Start(command Command, c *exec.Cmd) (*Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, ErrSupervisorShutdown
	}
	if s.maxProcesses > 0 && len(s.processes) >= s.maxProcesses {
		return nil, fmt.Errorf("%w: %d", ErrProcessLimit, s.maxProcesses)
	}

	proc := newProcess(uuid.NewString(), command, c)
	proc.onExit = s.untrack
	if err := proc.start(); err != nil {
		return nil, err
	}
	s.processes[proc.ID] = proc

	s.log.Debug("tool started", "tool", command.Name, "pid", proc.PID(), "id", proc.ID)
	return proc, nil
}

// untrack runs on the wait goroutine before Done is closed.
func (s *Supervisor) untrack(proc *Process) {
	s.mu.Lock()
	delete(s.processes, proc.ID)
	s.mu.Unlock()

	s.log.Debug("tool exited",
		"tool", proc.Command.Name,
		"exit_code", proc.ExitCode(),
		"state", proc.State(),
		"duration", proc.Duration(),
	)

	if s.onExit == nil {
		return
	}
	defer func() {
		// A panicking handler must not leave Done open.
		if r := recover(); r != nil {
			s.log.Error("exit handler panicked", "tool", proc.Command.Name, "panic", r)
		}
	}()
	s.onExit(proc)
}

// Get returns a live process by ID, or nil.
func (s *Supervisor) Get(id string) *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processes[id]
}

// Count returns the number of live processes.
func (s *Supervisor) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processes)
}

// Kill kills a live process by ID.
func (s *Supervisor) Kill(id string) error {
	proc := s.Get(id)
	if proc == nil {
		return ErrProcessNotFound
	}
	if proc.State() != StateRunning {
		return nil
	}
	return proc.Kill()
}

// Shutdown refuses new processes and stops the live ones: SIGTERM, then
// SIGKILL for whatever is still running after timeout. It returns once
// every process has exited.
func (s *Supervisor) Shutdown(timeout time.Duration) {
	if s.closed.Swap(true) {
		return
	}

	procs := s.live()
	if len(procs) == 0 {
		return
	}
	s.log.Debug("stopping tools", "count", len(procs), "timeout", timeout)

	for _, p := range procs {
		_ = p.terminate()
	}

	done := make(chan struct{})
	go func() {
		for _, p := range procs {
			<-p.Done()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		for _, p := range procs {
			_ = p.Kill()
		}
		<-done
	}
}

// IsShuttingDown reports whether Shutdown has been called.
func (s *Supervisor) IsShuttingDown() bool {
	return s.closed.Load()
}

func (s *Supervisor) live() []*Process {
	s.mu.Lock()
	defer s.mu.Unlock()

	procs := make([]*Process, 0, len(s.processes))
	for _, p := range s.processes {
		procs = append(procs, p)
	}
	return procs
}
