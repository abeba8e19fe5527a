// Package lint runs external lint tools against source files and turns their
// output into line annotations.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                    Orchestrator                                 │
//	│  - Queues check requests (FIFO, no de-duplication)              │
//	│  - Runs one external process at a time                          │
//	│  - Fans one request out into the configured tool sequence       │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│                    Classifier                                   │
//	│  - Single PHP parse error, or                                   │
//	│  - XML violation report (phpmd, phpcs, checkstyle-like)         │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│                    Sink                                         │
//	│  - ClearAnnotations(path) once per check cycle                  │
//	│  - AddAnnotation(path, line, message, severity) per diagnostic  │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Usage
//
//	orch := lint.NewOrchestrator(runner, sink,
//	    lint.WithTools(lint.DefaultTools()),
//	)
//	go orch.Run(ctx)
//
//	orch.RequestCheck("/path/to/file.php")
//
// # Event Loop
//
// The orchestrator never blocks on a child process. RequestCheck and the
// process callbacks only append a message to a mailbox; the Run loop is the
// single goroutine that mutates queue and accumulator state. Output chunks
// for a process are always handled before its termination message.
//
// # Line Numbers
//
// Tools report 1-based lines. Every Diagnostic produced by this package
// carries a 0-based line.
package lint
