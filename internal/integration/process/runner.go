package process

import (
	"context"
	"io"
	"os/exec"
	"syscall"
	"time"
)

// Listener receives the events of a launched process.
type Listener interface {
	// OnProcessOutput is called for each chunk of output, in order.
	OnProcessOutput(id string, chunk []byte)

	// OnProcessTerminated is called once, after the last chunk.
	OnProcessTerminated(id string, exitCode int)
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Shell runs commands as `Shell ShellArgs... Command.Line` when set.
	// When empty, Command.Argv is executed directly.
	Shell string

	// ShellArgs are passed to Shell before the command line.
	ShellArgs []string

	// Dir is the working directory for launched processes.
	Dir string

	// CaptureStderr merges standard error into the captured output.
	CaptureStderr bool

	// Timeout kills a process that runs longer (0 = no limit).
	Timeout time.Duration

	// ChunkSize is the read buffer size.
	ChunkSize int
}

// DefaultRunnerConfig returns sensible defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		ShellArgs:     []string{"-c"},
		CaptureStderr: true,
		ChunkSize:     32 * 1024,
	}
}

// Runner launches commands under a Supervisor and streams their output.
type Runner struct {
	supervisor *Supervisor
	config     RunnerConfig
}

// NewRunner creates a runner on top of supervisor.
func NewRunner(supervisor *Supervisor, config RunnerConfig) *Runner {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 32 * 1024
	}
	if config.Shell != "" && len(config.ShellArgs) == 0 {
		config.ShellArgs = []string{"-c"}
	}
	return &Runner{
		supervisor: supervisor,
		config:     config,
	}
}

// Supervisor returns the underlying supervisor.
func (r *Runner) Supervisor() *Supervisor {
	return r.supervisor
}

// Launch starts cmd and returns its process ID immediately.
//
// A non-nil error means the process could not be spawned and no listener
// events will be delivered. Otherwise the listener receives zero or more
// OnProcessOutput calls followed by exactly one OnProcessTerminated.
// Cancelling ctx kills the process; the kill is reported as a normal
// termination.
func (r *Runner) Launch(ctx context.Context, cmd Command, l Listener) (string, error) {
	c, err := r.buildCmd(cmd)
	if err != nil {
		return "", err
	}

	pr, pw := io.Pipe()
	c.Stdout = pw
	if r.config.CaptureStderr {
		c.Stderr = pw
	}

	proc, err := r.supervisor.Start(cmd, c)
	if err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return "", err
	}

	go r.pump(ctx, proc, pr, pw, l)

	return proc.ID, nil
}

func (r *Runner) buildCmd(cmd Command) (*exec.Cmd, error) {
	var c *exec.Cmd

	if r.config.Shell != "" {
		if cmd.Line == "" {
			return nil, ErrEmptyCommand
		}
		args := append(append([]string{}, r.config.ShellArgs...), cmd.Line)
		c = exec.Command(r.config.Shell, args...)
	} else {
		if len(cmd.Argv) == 0 || cmd.Argv[0] == "" {
			return nil, ErrEmptyCommand
		}
		c = exec.Command(cmd.Argv[0], cmd.Argv[1:]...)
	}

	c.Dir = r.config.Dir

	// Own process group so a kill reaches interpreter children too.
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	return c, nil
}

// pump forwards output and then reports termination.
func (r *Runner) pump(ctx context.Context, proc *Process, pr *io.PipeReader, pw *io.PipeWriter, l Listener) {
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		buf := make([]byte, r.config.ChunkSize)
		for {
			n, err := pr.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				l.OnProcessOutput(proc.ID, chunk)
			}
			if err != nil {
				return
			}
		}
	}()

	var timeout <-chan time.Time
	if r.config.Timeout > 0 {
		timer := time.NewTimer(r.config.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-proc.Done():
	case <-ctx.Done():
		_ = proc.Kill()
		<-proc.Done()
	case <-timeout:
		_ = proc.Kill()
		<-proc.Done()
	}

	// Wait has returned, so every byte the child wrote is in the pipe.
	_ = pw.Close()
	<-readDone

	l.OnProcessTerminated(proc.ID, proc.ExitCode())
}
