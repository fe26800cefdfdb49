package observability

import "runtime/debug"

// RecoverPanic recovers from a panic and logs it with the stack trace.
// Call it deferred; the panic is not re-raised.
//
//	defer observability.RecoverPanic(logger, "view consumer")
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logger.OrDefault().
			WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", where).
			Error("PANIC recovered")
	}
}
