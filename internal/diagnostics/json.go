package diagnostics

import (
	"io"
	"sync"

	"github.com/tidwall/sjson"

	"github.com/dshills/linthost/internal/lint"
)

// JSONLines writes one JSON object per annotation:
//
//	{"file":"a.php","line":3,"severity":"error","message":"..."}
//
// Lines are 1-based.
type JSONLines struct {
	mu  sync.Mutex
	out io.Writer

	errors   int
	warnings int
}

// NewJSONLines creates a JSON lines sink writing to out.
func NewJSONLines(out io.Writer) *JSONLines {
	return &JSONLines{out: out}
}

// ClearAnnotations does nothing: written records cannot be withdrawn.
func (j *JSONLines) ClearAnnotations(string) {}

// AddAnnotation writes one record.
func (j *JSONLines) AddAnnotation(path string, line int, message string, severity lint.Severity) {
	doc, err := annotationJSON(path, line, message, severity)
	if err != nil {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if severity == lint.SeverityWarning {
		j.warnings++
	} else {
		j.errors++
	}
	_, _ = j.out.Write(append(doc, '\n'))
}

// Counts returns the number of errors and warnings written.
func (j *JSONLines) Counts() (errors, warnings int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.errors, j.warnings
}

func annotationJSON(path string, line int, message string, severity lint.Severity) ([]byte, error) {
	fields := []struct {
		key   string
		value any
	}{
		{"file", path},
		{"line", line + 1},
		{"severity", severity.String()},
		{"message", message},
	}

	doc := []byte("{}")
	for _, f := range fields {
		var err error
		if doc, err = sjson.SetBytes(doc, f.key, f.value); err != nil {
			return nil, err
		}
	}
	return doc, nil
}
