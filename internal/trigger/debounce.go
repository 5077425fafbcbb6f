package trigger

import (
	"sync"
	"time"
)

// Debouncer accepts an event only if no accepted event happened within window
// before it. Rejected events do not extend the window. Safe for concurrent use.
type Debouncer struct {
	window time.Duration

	mu       sync.Mutex
	last     time.Time
	accepted bool
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Accept reports whether an event at t passes the debounce window.
// A nil Debouncer accepts everything.
func (d *Debouncer) Accept(t time.Time) bool {
	if d == nil {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.accepted && t.Sub(d.last) < d.window {
		return false
	}
	d.last = t
	d.accepted = true
	return true
}
