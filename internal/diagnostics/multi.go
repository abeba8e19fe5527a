package diagnostics

import "github.com/dshills/linthost/internal/lint"

// Multi forwards every call to each sink in order.
type Multi []lint.Sink

// ClearAnnotations clears path in every sink.
func (m Multi) ClearAnnotations(path string) {
	for _, s := range m {
		s.ClearAnnotations(path)
	}
}

// AddAnnotation adds the annotation to every sink.
func (m Multi) AddAnnotation(path string, line int, message string, severity lint.Severity) {
	for _, s := range m {
		s.AddAnnotation(path, line, message, severity)
	}
}
