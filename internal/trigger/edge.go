package trigger

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// edgePoll bounds each wait so cancellation is noticed promptly.
const edgePoll = 250 * time.Millisecond

// EdgeDetector blocks until a rising edge or timeout. periph.io's gpio.PinIn
// satisfies it.
type EdgeDetector interface {
	WaitForEdge(timeout time.Duration) bool
}

// Edge turns debounced rising edges into capture requests. Only the
// non-blocking Sink.Submit is called from the detection goroutine.
type Edge struct {
	detector  EdgeDetector
	debouncer *Debouncer
	log       *zap.Logger
	now       func() time.Time
}

func NewEdge(detector EdgeDetector, debouncer *Debouncer, log *zap.Logger) *Edge {
	return &Edge{detector: detector, debouncer: debouncer, log: log, now: time.Now}
}

func (e *Edge) Run(ctx context.Context, sink Sink) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if !e.detector.WaitForEdge(edgePoll) {
			continue
		}
		at := e.now()
		if !e.debouncer.Accept(at) {
			e.log.Debug("edge debounced", zap.Time("at", at))
			continue
		}
		if !sink.Submit(Request{Reason: ReasonEdge, At: at}) {
			e.log.Debug("edge coalesced into pending capture", zap.Time("at", at))
		}
	}
}
