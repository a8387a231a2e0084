// Package log wraps the standard logger with a process-wide verbose switch.
package log

import (
	"log"
	"sync/atomic"
)

var verbose atomic.Bool

// EnableVerbose enables the printing of verbose logs, such as the plan chosen
// for every parallel operation.
func EnableVerbose() {
	verbose.Store(true)
}

// Verbose reports whether verbose logging is enabled. Callers can use it to
// skip building expensive log arguments.
func Verbose() bool {
	return verbose.Load()
}

// Printf prints to the standard logger provided by the log package regardless
// of whether verbose logging is enabled.
func Printf(format string, v ...any) {
	log.Printf(format, v...)
}

// Verbosef prints to the standard logger if verbose logging is enabled.
// Otherwise, it does nothing.
func Verbosef(format string, v ...any) {
	if verbose.Load() {
		log.Printf(format, v...)
	}
}
