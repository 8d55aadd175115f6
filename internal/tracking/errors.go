package tracking

import "errors"

// ErrStaleSession means a position report arrived for a booking whose
// tracking session has stopped or never started. Logged by callers, not
// surfaced to the reporter.
var ErrStaleSession = errors.New("tracking session not active")
