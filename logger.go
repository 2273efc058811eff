package vkboot

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/andewx/vkboot/gpu"
	"github.com/andewx/vkboot/shadercache"
)

// nopHandler discards every record. Enabled returns false so callers skip
// formatting altogether.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for vkboot and the shadercache package.
// By default nothing is logged. Pass nil to restore silence.
//
// Levels:
//   - [slog.LevelDebug]: object creation and per-frame events
//   - [slog.LevelInfo]: lifecycle, device selection, shader compiles
//   - [slog.LevelWarn]: missing optional layers, dropped frames, validation warnings
//   - [slog.LevelError]: fatal errors and validation errors
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	shadercache.SetLogger(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// debugLogger routes validation layer messages into log.
func debugLogger(log *slog.Logger) gpu.DebugFunc {
	return func(sev gpu.Severity, prefix, msg string) {
		level := slog.LevelInfo
		switch sev {
		case gpu.SeverityDebug:
			level = slog.LevelDebug
		case gpu.SeverityWarning, gpu.SeverityPerformance:
			level = slog.LevelWarn
		case gpu.SeverityError:
			level = slog.LevelError
		}
		attrs := []any{"layer", prefix}
		if sev == gpu.SeverityPerformance {
			attrs = append(attrs, "performance", true)
		}
		log.Log(context.Background(), level, msg, attrs...)
	}
}
