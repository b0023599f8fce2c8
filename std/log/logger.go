package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Log is the package-wide structured logger, in the style of the
// call-site pattern `log.Log.Warn(component, msg, "key", val, ...)`
// used throughout the forwarder: the first argument identifies the
// component (anything with a String method, typically the struct the
// log call is a method receiver on).
//
// This lives in std/log rather than core so that every layer — core,
// face, table — can log without creating an import cycle: core's
// Forwarder aggregate imports face and table, so neither of those may
// import back up to core for something as small as a logger.
var Log = &Logger{handler: slog.NewTextHandler(os.Stderr, nil)}

// Logger wraps slog with the forwarder's own Level scale (level.go
// adds TRACE below slog's Debug and FATAL above slog's Error).
type Logger struct {
	handler slog.Handler
	level   Level
}

// SetLevel changes the minimum level that is actually emitted.
func (l *Logger) SetLevel(level Level) { l.level = level }

// SetOutput redirects log output to w.
func (l *Logger) SetOutput(w interface{ Write([]byte) (int, error) }) {
	l.handler = slog.NewTextHandler(w, nil)
}

func componentTag(component any) string {
	if s, ok := component.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", component)
}

func (l *Logger) log(level Level, slogLevel slog.Level, component any, msg string, args ...any) {
	if level < l.level {
		return
	}
	r := slog.NewRecord(time.Now(), slogLevel, msg, 0)
	r.AddAttrs(slog.String("component", componentTag(component)))
	r.Add(args...)
	_ = l.handler.Handle(context.Background(), r)
}

// Trace logs at the lowest, highest-volume level.
func (l *Logger) Trace(component any, msg string, args ...any) {
	l.log(LevelTrace, slog.LevelDebug-4, component, msg, args...)
}

// Debug logs diagnostic detail not needed in normal operation.
func (l *Logger) Debug(component any, msg string, args ...any) {
	l.log(LevelDebug, slog.LevelDebug, component, msg, args...)
}

// Info logs routine, expected events.
func (l *Logger) Info(component any, msg string, args ...any) {
	l.log(LevelInfo, slog.LevelInfo, component, msg, args...)
}

// Warn logs a recoverable anomaly.
func (l *Logger) Warn(component any, msg string, args ...any) {
	l.log(LevelWarn, slog.LevelWarn, component, msg, args...)
}

// Error logs a failure that did not require terminating the process.
func (l *Logger) Error(component any, msg string, args ...any) {
	l.log(LevelError, slog.LevelError, component, msg, args...)
}

// Fatal logs and then terminates the process, in the rare cases where
// continuing would leave the forwarder in an inconsistent state.
func (l *Logger) Fatal(component any, msg string, args ...any) {
	l.log(LevelFatal, slog.LevelError+4, component, msg, args...)
	os.Exit(1)
}
