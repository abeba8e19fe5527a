package lint

import "fmt"

// Severity is the annotation severity reported to a sink.
type Severity int

const (
	// SeverityError marks an error annotation.
	SeverityError Severity = iota
	// SeverityWarning marks a warning annotation.
	SeverityWarning
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ParseSeverity parses a severity name. Anything other than a warning
// spelling is an error.
func ParseSeverity(s string) Severity {
	switch s {
	case "warning", "Warning", "WARNING", "warn", "Warn", "WARN":
		return SeverityWarning
	default:
		return SeverityError
	}
}

// Diagnostic is a single finding extracted from tool output.
type Diagnostic struct {
	// Line is the 0-based line number.
	Line int

	// Message is the trimmed finding text.
	Message string

	// Severity is error or warning.
	Severity Severity

	// Tool is the name of the tool that produced the output.
	Tool string
}

// Sink receives annotations for files. It is implemented by the editor
// side of the host. Calls for files that are no longer open must be
// tolerated as no-ops.
type Sink interface {
	// ClearAnnotations removes every annotation for the file.
	ClearAnnotations(path string)

	// AddAnnotation adds one annotation at a 0-based line.
	AddAnnotation(path string, line int, message string, severity Severity)
}

// Filter can rewrite or drop diagnostics before they reach the sink.
// Returning false drops the diagnostic.
type Filter interface {
	Filter(path string, d Diagnostic) (Diagnostic, bool)
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(path string, d Diagnostic) (Diagnostic, bool)

// Filter calls f(path, d).
func (f FilterFunc) Filter(path string, d Diagnostic) (Diagnostic, bool) {
	return f(path, d)
}
