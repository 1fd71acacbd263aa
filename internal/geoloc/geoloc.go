// Package geoloc abstracts position providers behind one-shot and
// continuous-watch queries with typed failures.
package geoloc

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sample is a single position fix. Immutable once produced.
type Sample struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	AccuracyM  float64   `json:"accuracy_m"`
	CapturedAt time.Time `json:"captured_at"`
}

// Options configure a single provider query or a continuous watch.
type Options struct {
	HighAccuracy bool
	// Timeout bounds how long the provider may take to deliver a fix.
	Timeout time.Duration
	// MaxAge is the oldest cached fix the caller accepts. Zero means
	// only fixes produced after the request started are accepted.
	MaxAge time.Duration
}

// Kind classifies provider failures.
type Kind string

const (
	KindPermissionDenied Kind = "permission_denied"
	KindUnavailable      Kind = "unavailable"
	KindTimeout          Kind = "timeout"
)

// Error is a typed provider failure.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// KindOf extracts the failure kind from err, or "" for untyped errors.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// Subscription is a handle on a continuous watch. Cancel is idempotent.
type Subscription interface {
	Cancel()
}

// Provider is a platform position capability offering one-shot and
// continuous subscription queries.
type Provider interface {
	Current(ctx context.Context, opts Options) (Sample, error)
	Watch(ctx context.Context, opts Options, onSample func(Sample), onError func(error)) (Subscription, error)
}
