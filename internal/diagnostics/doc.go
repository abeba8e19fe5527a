// Package diagnostics provides lint.Sink implementations.
//
// Store is an in-memory editor model: it knows which files are open and
// keeps their markers. Console prints annotations for the command line.
// Screen draws a file with a gutter on a tcell screen. Multi fans
// annotations out to several sinks.
//
// Every sink tolerates calls for files it does not know about.
package diagnostics
