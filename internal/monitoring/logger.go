// Package monitoring holds the daemon's diagnostic logging indirection.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Debugf logs verbose per-frame diagnostics. It is a no-op unless EnableDebug
// has been called; the main loop would otherwise flood the log at active FPS.
var Debugf func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// EnableDebug routes Debugf through the current Logf.
func EnableDebug() {
	Debugf = func(format string, v ...interface{}) { Logf(format, v...) }
}
