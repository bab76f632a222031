// Package logger configures structured logging for every component using
// github.com/charmbracelet/log, with level/format selection and
// context-scoped propagation.
package logger

import (
	"context"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Level is one of the four supported verbosity levels.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

func (l Level) toCharmLevel() charmlog.Level {
	switch l {
	case DebugLevel:
		return charmlog.DebugLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// Config configures a Logger.
type Config struct {
	Level      Level
	Output     io.Writer
	JSON       bool
	TimeFormat string
}

// DefaultConfig logs at info level to stdout in text format.
func DefaultConfig() Config {
	return Config{Level: InfoLevel, Output: os.Stdout, TimeFormat: "15:04:05"}
}

// New builds a *charmlog.Logger configured per cfg.
func New(cfg Config) *charmlog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	l := charmlog.NewWithOptions(cfg.Output, charmlog.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           cfg.Level.toCharmLevel(),
	})
	if cfg.JSON {
		l.SetFormatter(charmlog.JSONFormatter)
	} else {
		l.SetFormatter(charmlog.TextFormatter)
	}
	return l
}

type contextKey struct{}

// WithContext attaches l to ctx for retrieval by FromContext.
func WithContext(ctx context.Context, l *charmlog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger attached to ctx, or a default stdout
// logger if none was attached.
func FromContext(ctx context.Context) *charmlog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*charmlog.Logger); ok && l != nil {
		return l
	}
	return New(DefaultConfig())
}
