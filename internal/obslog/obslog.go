// Package obslog provides the runtime's own internal structured logging.
//
// This is distinct from the hostable Logger component in package logger:
// obslog is the plumbing the demo command uses to describe its own
// wiring (container assembly, start and shutdown) and is never itself
// reachable by name from a Container. The worker pool and scheduler do
// not use it; they report through an optional Diag instead. It follows the
// same rule the hostable Logger does not get to break: logging is
// dependency-injected, never global. No subsystem in this module calls
// slog.SetDefault or reaches for a package-level logger.
package obslog

import (
	"context"
	"log/slog"
)

// discardHandler discards every record it receives.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that drops everything written to it.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns logger if non-nil, otherwise a discard logger. The demo
// command runs its optional *slog.Logger through Default before scoping
// it with .With(...).
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}
