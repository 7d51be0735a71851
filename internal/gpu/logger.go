package gpu

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/edgefriend"
)

// engineLog mirrors the edgefriend logger. edgefriend.SetLogger refreshes
// it, so the dispatch loop reads a single pointer per record.
var engineLog atomic.Pointer[slog.Logger]

func init() {
	edgefriend.OnLoggerChange(func(l *slog.Logger) { engineLog.Store(l) })
}

// slogger returns the logger for engine records. Pipeline setup, set
// allocation and every dispatch log at Debug; the run summary logs at
// Info and releasing with work still in flight at Warn.
func slogger() *slog.Logger { return engineLog.Load() }
