// Package monitoring constructs the structured loggers used across the
// engine. Every logger is scoped to one engine instance via an engine_id
// field so concurrent instances stay distinguishable without any global
// counters.
package monitoring

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewRootLogger builds the base logger for an engine instance. Pass a nil
// writer to log to stderr. An empty engineID omits the field, for callers
// that scope the logger later. Unknown level strings fall back to info.
func NewRootLogger(w io.Writer, level, engineID string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	ctx := zerolog.New(w).Level(lvl).With().Timestamp()
	if engineID != "" {
		ctx = ctx.Str("engine_id", engineID)
	}
	return ctx.Logger()
}

// Component derives a child logger tagged with a component name.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

// Nop returns a disabled logger for tests and optional dependencies.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
