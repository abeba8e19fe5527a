package lint

import "errors"

// Errors returned by the orchestrator.
var (
	// ErrAlreadyRunning is returned when Run is called while another Run
	// loop is active.
	ErrAlreadyRunning = errors.New("orchestrator already running")

	// ErrNoTools is returned when an orchestrator is created without tools.
	ErrNoTools = errors.New("no lint tools configured")
)
