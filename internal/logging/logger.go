// Package logging defines the structured-logging interface the relay is
// written against. The server wires in the slog implementation; tests use
// it with a discard handler.
package logging

import "context"

// Logger is a context-aware structured logger. Variadic args are key-value
// pairs, e.g. log.Info(ctx, "starting server", "addr", addr).
type Logger interface {
	// Debug logs fine-grained detail, off by default.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value pairs.
	With(args ...any) Logger
}
