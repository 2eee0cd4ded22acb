// Package rtlog wires charmbracelet/log into the kernel's runtime logging,
// adapted from the teacher's internal/infrastructure/logging adapter:
// component/layer fields, a context-carried correlation ID, and a level
// string parsed straight from CLI flags. It drops the teacher's
// ports.Logger interface indirection and event-buffering flush stage, since
// the kernel has a single process-lifetime logger and no deferred-startup
// buffering requirement (see DESIGN.md, "Dropped/adapted teacher modules").
package rtlog

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	cblog "github.com/charmbracelet/log"
	"github.com/google/uuid"
)

type correlationIDKey struct{}

// WithCorrelationID returns a context carrying id, read back by Logger.log
// to tag every entry emitted through that context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationID retrieves the correlation ID stored in ctx, or "" if none.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// NewCorrelationID mints a fresh run identifier (spec §9 ambient stack: one
// correlation ID per kernel run, attached to every log line it emits).
func NewCorrelationID() string {
	return uuid.NewString()
}

// Options configures a Logger.
type Options struct {
	Writer    io.Writer
	Level     string // trace, debug, info, warn, error, silent
	Component string
}

// Logger is a structured, leveled logger built on charmbracelet/log.
type Logger struct {
	base   *cblog.Logger
	fields []any
}

// New builds a Logger from Options.
func New(opts Options) (*Logger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	level := cblog.InfoLevel
	switch strings.ToLower(opts.Level) {
	case "", "info":
		level = cblog.InfoLevel
	case "trace", "debug":
		level = cblog.DebugLevel
	case "warn", "warning":
		level = cblog.WarnLevel
	case "error":
		level = cblog.ErrorLevel
	case "silent":
		level = cblog.FatalLevel + 1
	default:
		return nil, fmt.Errorf("rtlog: unknown log level %q", opts.Level)
	}

	base := cblog.NewWithOptions(writer, cblog.Options{
		Level:           level,
		ReportTimestamp: true,
	})

	var fields []any
	if opts.Component != "" {
		fields = append(fields, "component", opts.Component)
	}

	return &Logger{base: base, fields: fields}, nil
}

// With returns a derived Logger that always attaches the given key/value
// pairs, the way the kernel attaches "plugin" and "step" around a call.
func (l *Logger) With(kv ...any) *Logger {
	if l == nil {
		return nil
	}
	next := make([]any, 0, len(l.fields)+len(kv))
	next = append(next, l.fields...)
	next = append(next, kv...)
	return &Logger{base: l.base, fields: next}
}

func (l *Logger) Debug(ctx context.Context, msg string, kv ...any) { l.log(ctx, cblog.DebugLevel, msg, kv...) }
func (l *Logger) Info(ctx context.Context, msg string, kv ...any)  { l.log(ctx, cblog.InfoLevel, msg, kv...) }
func (l *Logger) Warn(ctx context.Context, msg string, kv ...any)  { l.log(ctx, cblog.WarnLevel, msg, kv...) }
func (l *Logger) Error(ctx context.Context, msg string, kv ...any) { l.log(ctx, cblog.ErrorLevel, msg, kv...) }

func (l *Logger) log(ctx context.Context, level cblog.Level, msg string, kv ...any) {
	if l == nil || l.base == nil {
		return
	}
	payload := mergeFields(l.fields, kv)
	if id := CorrelationID(ctx); id != "" {
		payload = append(payload, "correlation_id", id)
	}
	switch level {
	case cblog.DebugLevel:
		l.base.Debug(msg, payload...)
	case cblog.WarnLevel:
		l.base.Warn(msg, payload...)
	case cblog.ErrorLevel:
		l.base.Error(msg, payload...)
	default:
		l.base.Info(msg, payload...)
	}
}

// mergeFields flattens base then additions into one ordered key/value
// slice, later keys winning on collision (mirrors the teacher's
// mergeFields in internal/infrastructure/logging/logger.go, without the
// context-derived extras map since rtlog folds the correlation ID in
// separately).
func mergeFields(base, additions []any) []any {
	store := make(map[string]any)
	var order []string
	add := func(k string, v any) {
		if _, ok := store[k]; !ok {
			order = append(order, k)
		}
		store[k] = v
	}
	process := func(values []any) {
		for i := 0; i+1 < len(values); i += 2 {
			k, ok := values[i].(string)
			if !ok {
				continue
			}
			add(k, values[i+1])
		}
	}
	process(base)
	process(additions)
	out := make([]any, 0, len(order)*2)
	for _, k := range order {
		out = append(out, k, store[k])
	}
	return out
}
