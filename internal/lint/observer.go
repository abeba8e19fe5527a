package lint

import "time"

// CheckResult summarises one completed check cycle.
type CheckResult struct {
	// Path is the checked file.
	Path string

	// Errors is the number of error annotations sent to the sink.
	Errors int

	// Warnings is the number of warning annotations sent to the sink.
	Warnings int

	// Dropped is the number of diagnostics removed by the filter.
	Dropped int

	// ToolRuns is the number of tools that ran to termination.
	ToolRuns int

	// SpawnFailures is the number of tools that could not be started.
	SpawnFailures int

	// Duration is the wall time from dispatch to the last termination.
	Duration time.Duration
}

// Annotations returns the total number of annotations sent to the sink.
func (r CheckResult) Annotations() int {
	return r.Errors + r.Warnings
}

// Observer receives orchestrator events. Methods are called from the
// Run loop goroutine and must not block.
type Observer interface {
	// CheckStarted is called when a check cycle is dispatched.
	CheckStarted(path string)

	// ToolCompleted is called when a tool process terminates.
	ToolCompleted(tool string, exitCode int)

	// SpawnFailed is called when a tool process could not be started.
	SpawnFailed(tool string, err error)

	// DiagnosticEmitted is called for each annotation sent to the sink.
	DiagnosticEmitted(d Diagnostic)

	// CheckCompleted is called when every tool of a cycle has finished.
	CheckCompleted(result CheckResult)

	// QueueDepth is called whenever the number of waiting requests changes.
	QueueDepth(depth int)
}

type nopObserver struct{}

func (nopObserver) CheckStarted(string)          {}
func (nopObserver) ToolCompleted(string, int)    {}
func (nopObserver) SpawnFailed(string, error)    {}
func (nopObserver) DiagnosticEmitted(Diagnostic) {}
func (nopObserver) CheckCompleted(CheckResult)   {}
func (nopObserver) QueueDepth(int)               {}
