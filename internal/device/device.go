// Package device owns the camera. A Device is not reentrant: callers must
// serialize Focus and Capture, which the capture coordinator does.
package device

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"snapapi/internal/config"
)

var (
	ErrNotOpen    = errors.New("device not open")
	ErrEmptyFrame = errors.New("device returned an empty frame")
)

// Frame is one capture: the encoded image plus the driver's raw metadata.
type Frame struct {
	Data     []byte
	MimeType string
	Metadata map[string]any
}

// Device is a single camera with an explicit lifecycle.
type Device interface {
	Open(ctx context.Context) error
	Close() error
	// Focus runs an auxiliary focus step before the next Capture.
	Focus(ctx context.Context) error
	// Capture takes one frame. Implementations must return when ctx is done.
	Capture(ctx context.Context) (*Frame, error)
}

// New returns the driver selected by cfg.Driver. The device is not opened.
func New(cfg config.CaptureConfig, log *zap.Logger) (Device, error) {
	switch cfg.Driver {
	case config.DriverRPiCam:
		return NewRPiCam(cfg, log), nil
	case config.DriverSim:
		return NewSim(), nil
	default:
		return nil, fmt.Errorf("%w: unknown camera driver %q", config.ErrInvalid, cfg.Driver)
	}
}
