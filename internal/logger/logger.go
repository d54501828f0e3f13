// Package logger builds the application's slog logger.
package logger

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
)

// Options configures New.
type Options struct {
	Level       string
	Format      string
	SentryDSN   string
	Environment string
	Release     string
}

// New creates a logger writing to w in JSON or text. When a Sentry DSN is
// set, error records are also sent to Sentry. The returned flush func
// drains buffered Sentry events and must be called before exit.
func New(w io.Writer, opts Options) (*slog.Logger, func(), error) {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var base slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		base = slog.NewJSONHandler(w, handlerOpts)
	} else {
		base = slog.NewTextHandler(w, handlerOpts)
	}

	flush := func() {}
	if opts.SentryDSN == "" {
		return slog.New(base), flush, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         opts.SentryDSN,
		Environment: opts.Environment,
		Release:     opts.Release,
	})
	if err != nil {
		return slog.New(base), flush, err
	}

	handler := slogmulti.Fanout(
		base,
		slogsentry.Option{Level: slog.LevelError}.NewSentryHandler(),
	)
	flush = func() { sentry.Flush(2 * time.Second) }

	return slog.New(handler), flush, nil
}

// ParseLevel converts a string log level to slog.Level. Unknown values
// fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
