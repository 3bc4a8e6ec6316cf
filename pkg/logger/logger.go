// Package logger builds the structured slog loggers used across Planboard and
// provides typed attribute helpers for the fields the services log most often.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Format selects the handler encoding.
type Format string

const (
	// FormatJSON is used in production (log aggregators parse it).
	FormatJSON Format = "json"
	// FormatText is used in development.
	FormatText Format = "text"
)

// ParseLevel parses a string into a slog.Level. Unknown values yield Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "FATAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat parses a string into a Format. Unknown values yield FormatText.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}

// Options configures the logger.
type Options struct {
	Output    io.Writer
	Level     slog.Level
	Format    Format
	AddSource bool
}

// DefaultOptions returns sensible defaults for the logger.
func DefaultOptions() Options {
	return Options{
		Output: os.Stdout,
		Level:  slog.LevelInfo,
		Format: FormatText,
	}
}

// New creates a new slog.Logger with the given options.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     opts.Level,
		AddSource: opts.AddSource,
	}

	var handler slog.Handler
	if opts.Format == FormatJSON {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	}
	return slog.New(handler)
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}

// OrDefault returns l, or slog.Default() when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// Context key for logger.
type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or returns slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// RequestIDKey is a common field key for request tracing.
const RequestIDKey = "request_id"

// Err creates an error attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Planboard logging helpers.
func RequestID(id string) slog.Attr       { return slog.String(RequestIDKey, id) }
func ProjectID(id string) slog.Attr       { return slog.String("project_id", id) }
func MemberID(id string) slog.Attr        { return slog.String("member_id", id) }
func Token(token uint64) slog.Attr        { return slog.Uint64("token", token) }
func ProjectCount(n int) slog.Attr        { return slog.Int("project_count", n) }
func RankingMode(mode string) slog.Attr   { return slog.String("ranking_mode", mode) }
func Fingerprint(fp string) slog.Attr     { return slog.String("fingerprint", fp) }
func Component(name string) slog.Attr     { return slog.String("component", name) }
func Operation(name string) slog.Attr     { return slog.String("operation", name) }
func Latency(d time.Duration) slog.Attr   { return slog.Duration("latency", d) }
func JobName(name string) slog.Attr       { return slog.String("job", name) }
func BreakerState(state string) slog.Attr { return slog.String("breaker_state", state) }
