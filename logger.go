package vecforest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger is the structured logger an Index reports lifecycle events to.
// Successful adds, searches and saves log at Debug; builds and loads at
// Info; every failure at Error with an "error" attribute.
type Logger struct {
	*slog.Logger
}

// NewLogger wraps handler. A nil handler logs text to stderr at Info.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	return &Logger{Logger: slog.New(handler)}
}

func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NoopLogger drops everything. It is the default.
func NoopLogger() *Logger { return NewLogger(slog.DiscardHandler) }

// WithID scopes l to one item.
func (l *Logger) WithID(id uint32) *Logger { return &Logger{Logger: l.With("id", id)} }

// WithK scopes l to one neighbor count.
func (l *Logger) WithK(k int) *Logger { return &Logger{Logger: l.With("k", k)} }

// outcome logs "<op> completed" at level, or "<op> failed" at Error when
// err is set. Attributes after the first failAttrs are success-only.
func (l *Logger) outcome(ctx context.Context, op string, level slog.Level, err error, failAttrs int, attrs ...slog.Attr) {
	if err != nil {
		attrs = append(attrs[:failAttrs:failAttrs], slog.Any("error", err))
		l.LogAttrs(ctx, slog.LevelError, op+" failed", attrs...)
		return
	}
	l.LogAttrs(ctx, level, op+" completed", attrs...)
}

// quiet reports whether a successful op at level would be dropped.
func (l *Logger) quiet(ctx context.Context, level slog.Level, err error) bool {
	return err == nil && !l.Enabled(ctx, level)
}

func (l *Logger) LogAdd(ctx context.Context, id uint32, tags int, err error) {
	if l.quiet(ctx, slog.LevelDebug, err) {
		return
	}
	l.WithID(id).outcome(ctx, "add", slog.LevelDebug, err, 0,
		slog.Int("tags", tags))
}

func (l *Logger) LogBuild(ctx context.Context, buildID string, trees, items int, took time.Duration, err error) {
	l.outcome(ctx, "build", slog.LevelInfo, err, 2,
		slog.Int("trees", trees),
		slog.Int("items", items),
		slog.String("build_id", buildID),
		slog.Duration("duration", took))
}

func (l *Logger) LogSearch(ctx context.Context, k, results int, filtered bool, err error) {
	if l.quiet(ctx, slog.LevelDebug, err) {
		return
	}
	l.WithK(k).outcome(ctx, "search", slog.LevelDebug, err, 1,
		slog.Bool("filtered", filtered),
		slog.Int("results", results))
}

func (l *Logger) LogSave(ctx context.Context, name string, bytes int64, err error) {
	l.outcome(ctx, "save", slog.LevelDebug, err, 1,
		slog.String("name", name),
		slog.Int64("bytes", bytes))
}

func (l *Logger) LogLoad(ctx context.Context, name string, items int, err error) {
	l.outcome(ctx, "load", slog.LevelInfo, err, 1,
		slog.String("name", name),
		slog.Int("items", items))
}
