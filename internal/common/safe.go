// -----------------------------------------------------------------------
// Panic-protected calls for code running on foreign goroutines
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ternarybob/arbor"
)

// SafeCall runs fn and recovers a panic, logging it with the stack.
// It reports whether fn returned normally. Use it around callbacks the
// subsystem does not own, such as event subscribers invoked from a
// browser listener, so a faulty callback cannot take the test run down.
func SafeCall(logger arbor.ILogger, name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			stackTrace := string(buf[:n])

			if logger != nil {
				logger.Error().
					Str("callback", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", stackTrace).
					Msg("Recovered from panic in callback")
			} else {
				fmt.Fprintf(os.Stderr, "PANIC in %s: %v\n%s\n", name, r, stackTrace)
			}
		}
	}()

	fn()
	return true
}

// SafeGo runs fn on a new goroutine under SafeCall
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go SafeCall(logger, name, fn)
}
