// Package logger provides leveled, structured logging for every VikingBot
// component. All components log through here rather than fmt.Println or the
// bare standard library logger, so operators get one consistent stream.
package logger

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	handler slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	base                 = slog.New(handler)
)

// SetLevel adjusts the minimum logged level at runtime.
func SetLevel(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	base = slog.New(handler)
}

// SetJSON switches to JSON-formatted output, useful under process
// supervisors that parse structured logs.
func SetJSON(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	base = slog.New(handler)
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Debug(msg string, args ...any) { current().Debug(msg, args...) }
func Info(msg string, args ...any)  { current().Info(msg, args...) }
func Warn(msg string, args ...any)  { current().Warn(msg, args...) }
func Error(msg string, args ...any) { current().Error(msg, args...) }

// fieldsToArgs flattens a field map into slog key/value pairs. Order is not
// guaranteed across calls since Go map iteration is randomized; callers that
// need stable ordering should log small field sets.
func fieldsToArgs(fields map[string]interface{}) []any {
	args := make([]any, 0, len(fields)*2+2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

// DebugCF logs a debug message tagged with a component name and structured
// fields, e.g. logger.DebugCF("agent", "system prompt built", map[string]interface{}{"total_chars": n}).
func DebugCF(component, msg string, fields map[string]interface{}) {
	args := append([]any{"component", component}, fieldsToArgs(fields)...)
	current().Debug(msg, args...)
}

// InfoCF is the info-level counterpart of DebugCF.
func InfoCF(component, msg string, fields map[string]interface{}) {
	args := append([]any{"component", component}, fieldsToArgs(fields)...)
	current().Info(msg, args...)
}

// WarnCF is the warn-level counterpart of DebugCF.
func WarnCF(component, msg string, fields map[string]interface{}) {
	args := append([]any{"component", component}, fieldsToArgs(fields)...)
	current().Warn(msg, args...)
}

// ErrorCF is the error-level counterpart of DebugCF.
func ErrorCF(component, msg string, fields map[string]interface{}) {
	args := append([]any{"component", component}, fieldsToArgs(fields)...)
	current().Error(msg, args...)
}

// WithContext returns a logger enriched with values pulled from ctx, reserved
// for future request-scoped correlation IDs; currently a passthrough.
func WithContext(ctx context.Context) *slog.Logger {
	return current()
}
