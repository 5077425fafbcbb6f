package trigger

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Pin is a GPIO input configured for rising-edge detection.
type Pin struct {
	pin gpio.PinIO
}

// OpenPin initialises the host drivers and arms name (e.g. "GPIO17") as a
// pulled-down input that reports rising edges.
func OpenPin(name string) (*Pin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init gpio host: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	if err := p.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return nil, fmt.Errorf("configure pin %s: %w", name, err)
	}
	return &Pin{pin: p}, nil
}

func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	return p.pin.WaitForEdge(timeout)
}

// Close stops edge detection.
func (p *Pin) Close() error {
	return p.pin.Halt()
}
