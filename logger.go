package docview

import (
	"log/slog"

	"github.com/gogpu/docview/internal/logging"
)

// SetLogger configures the logger for docview and all its sub-packages.
// By default, docview produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by docview:
//   - [slog.LevelDebug]: per-task decisions (dropped or discarded tiles,
//     evictions)
//   - [slog.LevelInfo]: lifecycle events (document opened, viewer closed)
//   - [slog.LevelWarn]: non-fatal issues (page open failure, allocation
//     failure, double release of a bitmap)
//
// Example:
//
//	docview.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by docview.
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.L()
}
