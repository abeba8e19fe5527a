package diagnostics

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/dshills/linthost/internal/lint"
)

// Console prints annotations as "path:line: severity: message" with a
// 1-based line.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	pathColor    *color.Color
	errorColor   *color.Color
	warningColor *color.Color
	okColor      *color.Color

	errors   int
	warnings int
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithColor forces colour output on or off. By default fatih/color
// decides from the terminal.
func WithColor(enabled bool) ConsoleOption {
	return func(c *Console) {
		for _, col := range []*color.Color{c.pathColor, c.errorColor, c.warningColor, c.okColor} {
			if enabled {
				col.EnableColor()
			} else {
				col.DisableColor()
			}
		}
	}
}

// NewConsole creates a console sink writing to out.
func NewConsole(out io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{
		out:          out,
		pathColor:    color.New(color.Bold),
		errorColor:   color.New(color.FgRed, color.Bold),
		warningColor: color.New(color.FgYellow),
		okColor:      color.New(color.FgGreen),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClearAnnotations does nothing: printed lines cannot be withdrawn.
func (c *Console) ClearAnnotations(string) {}

// AddAnnotation prints one annotation.
func (c *Console) AddAnnotation(path string, line int, message string, severity lint.Severity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sev := c.errorColor
	if severity == lint.SeverityWarning {
		sev = c.warningColor
		c.warnings++
	} else {
		c.errors++
	}

	fmt.Fprintf(c.out, "%s: %s: %s\n",
		c.pathColor.Sprintf("%s:%d", path, line+1),
		sev.Sprint(severity.String()),
		message,
	)
}

// Counts returns the number of errors and warnings printed.
func (c *Console) Counts() (errors, warnings int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors, c.warnings
}

// PrintSummary writes a one-line total.
func (c *Console) PrintSummary(files int) {
	errs, warns := c.Counts()

	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.okColor
	if errs > 0 {
		status = c.errorColor
	}
	fmt.Fprintf(c.out, "%s\n", status.Sprintf("%d file(s) checked: %d error(s), %d warning(s)", files, errs, warns))
}
