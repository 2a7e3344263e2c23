// Package logging defines the structured, context-aware logger used by every
// server component.
package logging

import "context"

// Logger takes variadic key-value pairs after the message:
//
//	log.Info(ctx, "sample added", "primary_key", key, "email", email)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}
