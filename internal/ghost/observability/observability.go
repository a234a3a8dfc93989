// Package observability configures structured logging for Ghost.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bdobrica/Ghost/common/trace"
)

// ParseLevel maps "debug", "info", "warn" or "error" to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("observability: unknown log level %q", level)
}

// Setup installs the global slog logger writing to w in the given format,
// "text" or "json".
func Setup(w io.Writer, level, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("observability: unknown log format %q", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// WithTrace returns a logger that includes the trace id carried by ctx.
func WithTrace(ctx context.Context) *slog.Logger {
	id := trace.FromContext(ctx)
	if id == "" {
		return slog.Default()
	}
	return slog.With("trace", id)
}
