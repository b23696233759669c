// Package invariant provides contract assertions for the flow compiler.
//
// Construction-time usage errors and validation failures surface as error
// values; the assertions here are for the other category entirely: pipeline
// composition bugs and engine-state corruption. Those are programmer errors,
// so all functions panic on violation.
package invariant

import (
	"fmt"
	"runtime"
)

// Precondition checks an input contract at function entry.
// Panics with PRECONDITION VIOLATION if condition is false.
func Precondition(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("PRECONDITION", format, args...)
	}
}

// Invariant checks internal consistency during execution: stack shape in the
// construction engine, tree shape assumptions between passes.
func Invariant(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("INVARIANT", format, args...)
	}
}

// Unreachable marks a tree shape a pass can never legally receive, e.g. a
// raw relationship condition reaching the Condition pass after Relationship
// was supposed to run. Always panics.
func Unreachable(format string, args ...interface{}) {
	fail("UNREACHABLE", format, args...)
}

// NoError panics if err is non-nil. For operations that cannot fail on
// well-formed input (in-memory encoding, writes to bytes.Buffer).
func NoError(err error, msg string) {
	if err != nil {
		fail("POSTCONDITION", "%s must not fail: %v", msg, err)
	}
}

// fail panics with a formatted message including the violation site.
func fail(kind, format string, args ...interface{}) {
	msg := fmt.Sprintf("%s VIOLATION: "+format, append([]interface{}{kind}, args...)...)

	// Skip fail() and its wrapper to report the caller's frame.
	pc := make([]uintptr, 4)
	n := runtime.Callers(3, pc)
	if frame, ok := runtime.CallersFrames(pc[:n]).Next(); n > 0 && ok {
		msg += fmt.Sprintf("\n  at %s:%d", frame.File, frame.Line)
	}

	panic(msg)
}
