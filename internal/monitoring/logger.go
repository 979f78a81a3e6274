package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Verbose gates Debugf output. Set from the -verbose flag at startup.
var Verbose bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Debugf logs through Logf only when Verbose is enabled. Frame-level
// diagnostics (repeated increments, small gaps) go through here so normal
// operation stays quiet.
func Debugf(format string, v ...interface{}) {
	if Verbose {
		Logf(format, v...)
	}
}
