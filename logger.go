package edgefriend

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

// loggerHooks are notified whenever the logger changes.
var (
	hooksMu     sync.RWMutex
	loggerHooks []func(*slog.Logger)
)

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for edgefriend and all its sub-packages.
// By default, edgefriend produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by edgefriend:
//   - [slog.LevelDebug]: internal diagnostics (dispatch sizes, buffer layouts)
//   - [slog.LevelInfo]: lifecycle events (GPU adapter selected, run summary)
//   - [slog.LevelWarn]: non-fatal issues (extra shapes ignored, release errors)
//
// Example:
//
//	// Enable debug-level logging for full diagnostics:
//	edgefriend.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	hooksMu.RLock()
	hooks := loggerHooks
	hooksMu.RUnlock()
	for _, hook := range hooks {
		hook(l)
	}
}

// Logger returns the current logger used by edgefriend.
// Sub-packages (meshio, backend/native) call this to share the same
// logger configuration without introducing import cycles.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// OnLoggerChange registers fn to be called with the new logger every time
// SetLogger runs. fn is also called once immediately with the current
// logger. Packages that keep their own atomic logger (internal/gpu) use it
// to stay in sync.
func OnLoggerChange(fn func(*slog.Logger)) {
	hooksMu.Lock()
	loggerHooks = append(loggerHooks[:len(loggerHooks):len(loggerHooks)], fn)
	hooksMu.Unlock()
	fn(Logger())
}
