package device

import (
	"context"
	"sync"
	"time"

	"snapapi/internal/model"
)

// Sim is a camera without hardware. It returns a minimal JPEG-framed payload
// and plausible readings, which is enough to run the pipeline on a laptop.
type Sim struct {
	// Delay is how long each capture takes.
	Delay time.Duration

	mu    sync.Mutex
	open  bool
	shots int64
}

func NewSim() *Sim {
	return &Sim{Delay: 50 * time.Millisecond}
}

func (s *Sim) Open(context.Context) error {
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()
	return nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
	return nil
}

func (s *Sim) Focus(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	return nil
}

func (s *Sim) Capture(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil, ErrNotOpen
	}
	s.shots++
	n := s.shots
	s.mu.Unlock()

	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	// SOI, a comment segment carrying the shot number, EOI.
	data := []byte{0xFF, 0xD8, 0xFF, 0xFE, 0x00, 0x0A}
	data = append(data, []byte{byte(n >> 56), byte(n >> 48), byte(n >> 40), byte(n >> 32), byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}...)
	data = append(data, 0xFF, 0xD9)

	return &Frame{
		Data:     data,
		MimeType: model.MimeJPEG,
		Metadata: map[string]any{
			"Lux":               100.0 + float64(n%50),
			"ExposureTime":      int64(10000),
			"ColourTemperature": int64(5000),
		},
	}, nil
}
