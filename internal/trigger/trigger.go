// Package trigger produces capture requests, either on a fixed period or from
// debounced rising edges on a GPIO pin.
package trigger

import (
	"context"
	"time"
)

// Trigger reasons.
const (
	ReasonPeriodic = "periodic"
	ReasonEdge     = "edge"
	ReasonRemote   = "remote"
	ReasonManual   = "manual"
)

// Request asks for one capture.
type Request struct {
	Reason string
	At     time.Time
}

// Sink accepts capture requests. Submit must not block; it reports whether
// the request was queued rather than merged into one already pending.
type Sink interface {
	Submit(req Request) bool
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Request) bool

func (f SinkFunc) Submit(req Request) bool { return f(req) }

// Source emits requests into a Sink until ctx is done.
type Source interface {
	Run(ctx context.Context, sink Sink) error
}
