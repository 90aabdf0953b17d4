package monitoring

import "log"

// Logf is the package-level diagnostic logger used by the cube pipeline. It
// defaults to log.Printf but may be replaced by SetLogger so tests can capture
// or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs through Logf with a "[warn]" marker so degraded paths such as
// unit fallbacks stand out from routine progress lines.
func Warnf(format string, v ...interface{}) {
	Logf("[warn] "+format, v...)
}
