package adws

import (
	"errors"
	"fmt"
	"log"
	"os"
)

// Sentinel errors the scheduler reports. There is no sentinel for
// out-of-range container access: gvector's At and Set index the backing
// slice directly, so an out-of-range index panics with Go's runtime
// index error.
var (
	// ErrNotSPMD is wrapped into the fatal error CollExec reports through
	// Worker.fatalErr when called outside the SPMD region or the root
	// thread.
	ErrNotSPMD = errors.New("adws: operation requires the SPMD or root context")

	// ErrOutstandingThreads is returned by Fini when threads are still
	// live.
	ErrOutstandingThreads = errors.New("adws: fini called with outstanding threads")

	// ErrASLRMismatch names a failed uni-address consistency check across
	// ranks. Nothing in this binding returns it: every simulated rank
	// shares one address space and no such check is performed; the
	// sentinel exists so callers can errors.Is against it the same way a
	// real multi-process deployment would.
	ErrASLRMismatch = errors.New("adws: ASLR/uni-address consistency check failed across ranks")
)

// Logger is the minimal diagnostics surface the scheduler needs.
// NewLogger adapts the standard library's *log.Logger to it; tests
// substitute a recording logger to assert on fatal paths without calling
// onFatal.
type Logger interface {
	Fatalf(format string, args ...any)
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

// stdLogger adapts *log.Logger to the Logger interface. Fatalf here only
// formats and logs; fatalErr (below) is what actually invokes onFatal, so
// that the fatal hook stays test-replaceable independent of the logger.
type stdLogger struct {
	l *log.Logger
}

func (s stdLogger) Fatalf(format string, args ...any) { s.l.Printf("FATAL: "+format, args...) }
func (s stdLogger) Warnf(format string, args ...any)  { s.l.Printf("WARN: "+format, args...) }
func (s stdLogger) Debugf(format string, args ...any) { s.l.Printf("DEBUG: "+format, args...) }

// NewLogger wraps a standard library logger as an adws.Logger.
func NewLogger(l *log.Logger) Logger { return stdLogger{l: l} }

// defaultStdLog builds the *log.Logger NewOptions falls back to when the
// caller supplies none.
func defaultStdLog() *log.Logger {
	return log.New(os.Stderr, "adws: ", log.LstdFlags|log.Lmicroseconds)
}

// fatalErr logs the formatted error and hands it to the onFatal hook
// (which panics by default). Its one caller is CollExec's out-of-context
// check; deque capacity exhaustion and dtree depth overflow panic
// directly inside the wsqueue and dtree packages instead. User
// exceptions are never propagated across fork/join; a fatalErr from
// inside a forked task simply unwinds through the goroutine it runs on,
// same as any other panic.
func (w *Worker) fatalErr(format string, args ...any) {
	err := fmt.Errorf(format, args...)
	w.logger.Fatalf("%s", err)
	w.onFatal(err)
}

// defaultOnFatal is the process-fatal hook Options defaults to: it panics
// rather than calling os.Exit so a single misbehaving worker goroutine
// does not kill a test binary silently; production callers that want a
// hard process exit should supply WithOnFatal(func(error) { os.Exit(2) }).
func defaultOnFatal(err error) {
	panic(err)
}
