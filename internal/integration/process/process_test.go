package process

import (
	"errors"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateCreated, "created"},
		{StateRunning, "running"},
		{StateExited, "exited"},
		{StateKilled, "killed"},
		{State(99), "unknown(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func shCommand(script string) (Command, *exec.Cmd) {
	argv := []string{"sh", "-c", script}
	return Command{Name: "sh", Argv: argv}, exec.Command(argv[0], argv[1:]...)
}

func TestNewProcess(t *testing.T) {
	cmd, c := shCommand("exit 0")
	p := newProcess("id-1", cmd, c)

	if p.State() != StateCreated {
		t.Errorf("State() = %v, want created", p.State())
	}
	if p.ExitCode() != -1 {
		t.Errorf("ExitCode() = %d, want -1", p.ExitCode())
	}
	if p.PID() != -1 {
		t.Errorf("PID() = %d, want -1", p.PID())
	}
	if p.Duration() != 0 {
		t.Errorf("Duration() = %v, want 0", p.Duration())
	}
	if p.Command.Name != "sh" {
		t.Errorf("Command.Name = %q", p.Command.Name)
	}
}

func TestProcess_StartAndExit(t *testing.T) {
	cmd, c := shCommand("exit 0")
	p := newProcess("id-1", cmd, c)
	if err := p.start(); err != nil {
		t.Fatalf("start() error = %v", err)
	}

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	if p.State() != StateExited {
		t.Errorf("State() = %v, want exited", p.State())
	}
	if p.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, want 0", p.ExitCode())
	}

	// Duration is frozen after exit.
	d := p.Duration()
	time.Sleep(10 * time.Millisecond)
	if p.Duration() != d {
		t.Error("Duration() kept growing after exit")
	}
}

func TestProcess_NonZeroExit(t *testing.T) {
	cmd, c := shCommand("exit 3")
	p := newProcess("id-1", cmd, c)
	if err := p.start(); err != nil {
		t.Fatalf("start() error = %v", err)
	}
	<-p.Done()

	if p.ExitCode() != 3 {
		t.Errorf("ExitCode() = %d, want 3", p.ExitCode())
	}
	if p.State() != StateExited {
		t.Errorf("State() = %v, want exited", p.State())
	}
}

func TestProcess_StartTwice(t *testing.T) {
	cmd, c := shCommand("exit 0")
	p := newProcess("id-1", cmd, c)
	if err := p.start(); err != nil {
		t.Fatalf("start() error = %v", err)
	}
	<-p.Done()

	if err := p.start(); !errors.Is(err, ErrProcessAlreadyStarted) {
		t.Errorf("second start() error = %v, want ErrProcessAlreadyStarted", err)
	}
}

func TestProcess_KillGroup(t *testing.T) {
	cmd, c := shCommand("sleep 30 & wait")
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	p := newProcess("id-1", cmd, c)
	if err := p.start(); err != nil {
		t.Fatalf("start() error = %v", err)
	}

	if err := p.Kill(); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after Kill")
	}

	if p.State() != StateKilled {
		t.Errorf("State() = %v, want killed", p.State())
	}
}

func TestProcess_KillNotRunning(t *testing.T) {
	cmd, c := shCommand("exit 0")
	p := newProcess("id-1", cmd, c)
	if err := p.Kill(); !errors.Is(err, ErrProcessNotStarted) {
		t.Errorf("Kill() error = %v, want ErrProcessNotStarted", err)
	}
}
