package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// New returns a logger with a text handler writing to STDERR, tagged with
// the device identity. STDOUT stays free for sample output and the TUI.
func New(deviceID string) *slog.Logger {
	return NewWithWriter(os.Stderr, deviceID)
}

// NewWithWriter returns a logger writing to w, tagged with the device
// identity.
func NewWithWriter(w io.Writer, deviceID string) *slog.Logger {
	l := slog.New(slog.NewTextHandler(w, nil))
	if deviceID != "" {
		l = l.With("device", deviceID)
	}
	return l
}

type ctxKey struct{}

// NewContext returns a copy of ctx with the logger stored.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves a logger from ctx or returns slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
