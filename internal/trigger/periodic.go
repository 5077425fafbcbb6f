package trigger

import (
	"context"
	"errors"
	"time"
)

var ErrBadInterval = errors.New("interval must be positive")

// Periodic submits one request immediately and then once per interval.
// Ticks missed while the sink is busy are dropped by the ticker, so there is
// no catch-up burst.
type Periodic struct {
	interval time.Duration
	now      func() time.Time
}

func NewPeriodic(interval time.Duration) (*Periodic, error) {
	if interval <= 0 {
		return nil, ErrBadInterval
	}
	return &Periodic{interval: interval, now: time.Now}, nil
}

func (p *Periodic) Run(ctx context.Context, sink Sink) error {
	sink.Submit(Request{Reason: ReasonPeriodic, At: p.now()})

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			sink.Submit(Request{Reason: ReasonPeriodic, At: t})
		}
	}
}
