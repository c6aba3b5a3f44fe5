package bindcore

import (
	"log/slog"

	"github.com/gogpu/bindcore/internal/logging"
)

// SetLogger configures the logger for bindcore and all its sub-packages.
// By default, bindcore produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by bindcore:
//   - [slog.LevelDebug]: cache hits and misses, layout packing, pass results
//   - [slog.LevelInfo]: device lifecycle
//   - [slog.LevelWarn]: objects released too often, use of a destroyed device
//
// Example:
//
//	bindcore.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.SetLogger(l)
}

// Logger returns the current logger used by bindcore.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.Logger()
}
