package lua

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/linthost/internal/lint"
)

// Compile-time interface check.
var _ lint.Filter = (*Filter)(nil)

const sampleFilter = `
function filter(d)
    if d.tool == "phpmd" and d.severity == "warning" then
        return false
    end
    if d.message:find("^Missing") then
        return { severity = "warning", message = d.message .. " (line " .. d.line .. ")" }
    end
    if d.file:find("vendor/") then
        return nil
    end
    return true
end
`

func TestFilter(t *testing.T) {
	f, err := NewFilter("sample", sampleFilter)
	if err != nil {
		t.Fatalf("NewFilter() error = %v", err)
	}
	defer f.Close()

	tests := []struct {
		name     string
		path     string
		in       lint.Diagnostic
		wantKeep bool
		want     lint.Diagnostic
	}{
		{
			name:     "drop phpmd warning",
			path:     "/src/a.php",
			in:       lint.Diagnostic{Line: 3, Message: "short name", Severity: lint.SeverityWarning, Tool: "phpmd"},
			wantKeep: false,
		},
		{
			name:     "rewrite",
			path:     "/src/a.php",
			in:       lint.Diagnostic{Line: 0, Message: "Missing doc", Severity: lint.SeverityError, Tool: "phpcs"},
			wantKeep: true,
			want:     lint.Diagnostic{Line: 0, Message: "Missing doc (line 1)", Severity: lint.SeverityWarning, Tool: "phpcs"},
		},
		{
			name:     "nil drops",
			path:     "/src/vendor/x.php",
			in:       lint.Diagnostic{Line: 1, Message: "x", Severity: lint.SeverityError, Tool: "php"},
			wantKeep: false,
		},
		{
			name:     "keep unchanged",
			path:     "/src/a.php",
			in:       lint.Diagnostic{Line: 9, Message: "unused", Severity: lint.SeverityError, Tool: "phpmd"},
			wantKeep: true,
			want:     lint.Diagnostic{Line: 9, Message: "unused", Severity: lint.SeverityError, Tool: "phpmd"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, keep := f.Filter(tt.path, tt.in)
			if keep != tt.wantKeep {
				t.Fatalf("keep = %v, want %v", keep, tt.wantKeep)
			}
			if keep && got != tt.want {
				t.Errorf("Filter() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFilter_ScriptErrorKeepsDiagnostic(t *testing.T) {
	f, err := NewFilter("broken", `function filter(d) error("boom") end`)
	if err != nil {
		t.Fatalf("NewFilter() error = %v", err)
	}
	defer f.Close()

	in := lint.Diagnostic{Line: 2, Message: "m", Severity: lint.SeverityError, Tool: "php"}
	got, keep := f.Filter("/a.php", in)
	if !keep || got != in {
		t.Errorf("Filter() = %+v, %v; want unchanged and kept", got, keep)
	}
}

func TestFilter_NonBooleanResultKeeps(t *testing.T) {
	f, err := NewFilter("number", `function filter(d) return 1 end`)
	if err != nil {
		t.Fatalf("NewFilter() error = %v", err)
	}
	defer f.Close()

	if _, keep := f.Filter("/a.php", lint.Diagnostic{}); !keep {
		t.Error("numeric result dropped the diagnostic")
	}
}

func TestFilter_MissingFunction(t *testing.T) {
	_, err := NewFilter("empty", `x = 1`)
	if !errors.Is(err, ErrNoFilterFunction) {
		t.Errorf("NewFilter() error = %v, want ErrNoFilterFunction", err)
	}
}

func TestFilter_SyntaxError(t *testing.T) {
	if _, err := NewFilter("bad", `function filter(`); err == nil {
		t.Error("NewFilter() expected error")
	}
}

func TestLoadFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.lua")
	if err := os.WriteFile(path, []byte(`function filter(d) return d.severity == "error" end`), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadFilter(path)
	if err != nil {
		t.Fatalf("LoadFilter() error = %v", err)
	}
	defer f.Close()

	if _, keep := f.Filter("/a.php", lint.Diagnostic{Severity: lint.SeverityWarning}); keep {
		t.Error("warning kept")
	}
	if _, keep := f.Filter("/a.php", lint.Diagnostic{Severity: lint.SeverityError}); !keep {
		t.Error("error dropped")
	}

	if _, err := LoadFilter(filepath.Join(t.TempDir(), "missing.lua")); err == nil {
		t.Error("LoadFilter() of missing file expected error")
	}
}
