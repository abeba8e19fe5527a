package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/tidwall/gjson"

	"github.com/dshills/linthost/internal/diagnostics"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func writeConfig(t *testing.T, dir, tools string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[log]\nlevel = \"error\"\n"+tools), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "linthost dev\n") {
		t.Errorf("output = %q", out)
	}
}

func TestCheckCmd_ReportsErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.php")
	if err := os.WriteFile(file, []byte("<?php\nif (\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := writeConfig(t, dir, `
[[tools]]
name = "syntax"
executable = "sh"
args = ["-c", "echo \"PHP Parse error:  syntax error, unexpected end of file in $0 on line 3\""]
`)

	out, err := execute(t, "check", "--config", cfg, "--no-color", file)
	if !errors.Is(err, errFoundErrors) {
		t.Fatalf("check error = %v, want errFoundErrors", err)
	}
	want := file + ":3: error: PHP Parse error:  syntax error, unexpected end of file"
	if !strings.Contains(out, want) {
		t.Errorf("output %q does not contain %q", out, want)
	}
	if !strings.Contains(out, "1 file(s) checked: 1 error(s), 0 warning(s)") {
		t.Errorf("missing summary in %q", out)
	}
}

func TestCheckCmd_Clean(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.php")
	if err := os.WriteFile(file, []byte("<?php\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := writeConfig(t, dir, `
[[tools]]
name = "noop"
executable = "true"
`)

	out, err := execute(t, "check", "--config", cfg, "--no-color", file, file)
	if err != nil {
		t.Fatalf("check error = %v", err)
	}
	if !strings.Contains(out, "2 file(s) checked: 0 error(s), 0 warning(s)") {
		t.Errorf("output = %q", out)
	}
}

func TestCheckCmd_SkipsOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(file, []byte("if (\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := writeConfig(t, dir, `
[[tools]]
name = "syntax"
executable = "sh"
args = ["-c", "echo \"PHP Parse error:  syntax error in $0 on line 1\""]
`)

	out, err := execute(t, "check", "--config", cfg, "--no-color", file)
	if err != nil {
		t.Fatalf("check error = %v", err)
	}
	if !strings.Contains(out, "0 file(s) checked: 0 error(s), 0 warning(s)") {
		t.Errorf("output = %q", out)
	}
}

func TestCheckCmd_JSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.php")
	if err := os.WriteFile(file, []byte("<?php\nif (\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := writeConfig(t, dir, `
[[tools]]
name = "syntax"
executable = "sh"
args = ["-c", "echo \"PHP Parse error:  syntax error in $0 on line 2\""]
`)

	out, err := execute(t, "check", "--config", cfg, "--format", "json", file)
	if !errors.Is(err, errFoundErrors) {
		t.Fatalf("check error = %v, want errFoundErrors", err)
	}
	record := strings.TrimSpace(out)
	if got := gjson.Get(record, "line").Int(); got != 2 {
		t.Errorf("line = %d in %q", got, record)
	}
	if got := gjson.Get(record, "file").String(); got != file {
		t.Errorf("file = %q", got)
	}
}

func TestCheckCmd_UnknownFormat(t *testing.T) {
	if _, err := execute(t, "check", "--format", "yaml", "a.php"); err == nil {
		t.Error("an unknown format should fail")
	}
}

func TestCheckCmd_Args(t *testing.T) {
	if _, err := execute(t, "check"); err == nil {
		t.Error("check without files should fail")
	}
}

func TestCheckCmd_BadLogLevel(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "")
	if _, err := execute(t, "check", "--config", cfg, "--log-level", "loud", "a.php"); err == nil {
		t.Error("an unknown log level should fail")
	}
}

func TestViewCmd_MissingFile(t *testing.T) {
	if _, err := execute(t, "view", filepath.Join(t.TempDir(), "nope.php")); err == nil {
		t.Error("view of a missing file should fail")
	}
}

func TestRunView_QuitStopsCheck(t *testing.T) {
	sim := tcell.NewSimulationScreen("")
	if err := sim.Init(); err != nil {
		t.Fatal(err)
	}
	defer sim.Fini()
	sim.SetSize(40, 10)

	view := diagnostics.NewScreen(sim, "/src/a.php", []byte("<?php\n"))
	checkStopped := make(chan struct{})
	check := func(ctx context.Context) error {
		defer close(checkStopped)
		<-ctx.Done()
		return ctx.Err()
	}

	sim.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	done := make(chan error, 1)
	go func() {
		done <- runView(context.Background(), view, check)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runView() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runView() did not return after q")
	}
	select {
	case <-checkStopped:
	default:
		t.Error("check should be stopped when the view closes")
	}
}

func TestRunView_CheckErrorCloses(t *testing.T) {
	sim := tcell.NewSimulationScreen("")
	if err := sim.Init(); err != nil {
		t.Fatal(err)
	}
	defer sim.Fini()

	view := diagnostics.NewScreen(sim, "/src/a.php", []byte("<?php\n"))
	boom := errors.New("boom")

	err := runView(context.Background(), view, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("runView() error = %v, want boom", err)
	}
}
