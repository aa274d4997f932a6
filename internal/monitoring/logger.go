// Package monitoring carries the engine's diagnostic logging indirection.
// Validation code logs screening drops, anchor churn and persistence
// failures through Logf rather than log directly, so tests exercising
// noisy paths can mute or capture the stream.
package monitoring

import "log"

// Logf emits one diagnostic line. Defaults to log.Printf.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces the diagnostic sink. nil installs a no-op, which is
// how tests silence expected-failure noise.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}
