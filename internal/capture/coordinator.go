// Package capture turns trigger requests into device captures and store writes.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"snapapi/internal/device"
	"snapapi/internal/model"
	"snapapi/internal/repository"
	"snapapi/internal/trigger"
)

var (
	// ErrCaptureFailed means the device produced no usable frame. The trigger is dropped.
	ErrCaptureFailed = errors.New("capture failed")
	// ErrCaptureTimeout is a capture failure caused by the device call bound.
	ErrCaptureTimeout = fmt.Errorf("%w: device timed out", ErrCaptureFailed)
)

const defaultTimeout = 30 * time.Second

// Notifier is told about every stored record. Failures are logged only.
type Notifier interface {
	Announce(ctx context.Context, s model.Summary) error
}

// Options tune a Coordinator.
type Options struct {
	TTL       time.Duration
	Timeout   time.Duration
	Autofocus bool
	Metrics   *Metrics
	Notifier  Notifier
	// Now defaults to time.Now.
	Now func() time.Time
}

// Coordinator owns the device. Requests are submitted to a single-slot inbox;
// a request arriving while one is already pending is merged into it, so at
// most one capture runs and at most one waits. HandleTrigger holds the
// capture lock for the whole device access.
type Coordinator struct {
	dev  device.Device
	repo repository.RecordRepository
	log  *zap.Logger
	opts Options

	inbox chan trigger.Request
	mu    sync.Mutex
}

var _ trigger.Sink = (*Coordinator)(nil)

func New(dev device.Device, repo repository.RecordRepository, log *zap.Logger, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Coordinator{
		dev:   dev,
		repo:  repo,
		log:   log,
		opts:  opts,
		inbox: make(chan trigger.Request, 1),
	}
}

// Submit queues req without blocking. It returns false when a request is
// already pending; req is then coalesced into that one.
func (c *Coordinator) Submit(req trigger.Request) bool {
	select {
	case c.inbox <- req:
		return true
	default:
		c.opts.Metrics.coalesce()
		c.log.Debug("trigger coalesced", zap.String("reason", req.Reason))
		return false
	}
}

// Run consumes the inbox until ctx is done. Capture failures are logged and
// never stop the loop.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-c.inbox:
			_, _ = c.HandleTrigger(ctx, req)
		}
	}
}

// HandleTrigger performs one capture and one store write. It returns the
// stored record, or an error after logging it.
func (c *Coordinator) HandleTrigger(ctx context.Context, req trigger.Request) (*model.CaptureRecord, error) {
	ctx, span := otel.Tracer("snapapi/capture").Start(ctx, "capture.HandleTrigger")
	defer span.End()
	span.SetAttributes(attribute.String("trigger.reason", req.Reason))

	rec, err := c.capture(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("record.id", rec.ID))

	if err := c.repo.Write(ctx, rec); err != nil {
		c.opts.Metrics.result(resultStore)
		c.log.Error("store capture failed",
			zap.String("id", rec.ID),
			zap.String("reason", req.Reason),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("store capture %s: %w", rec.ID, err)
	}
	c.opts.Metrics.result(resultStored)
	c.log.Info("capture stored",
		zap.String("id", rec.ID),
		zap.String("reason", req.Reason),
		zap.Int("bytes", len(rec.ImageData)),
	)

	if c.opts.Notifier != nil {
		if err := c.opts.Notifier.Announce(ctx, rec.Summary()); err != nil {
			c.log.Warn("capture announcement failed", zap.String("id", rec.ID), zap.Error(err))
		}
	}
	return rec, nil
}

// capture holds the device for focus and capture and builds the record.
func (c *Coordinator) capture(ctx context.Context) (*model.CaptureRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	devCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	if c.opts.Autofocus {
		if err := c.dev.Focus(devCtx); err != nil {
			c.log.Warn("autofocus failed, capturing anyway", zap.Error(err))
		}
	}

	start := time.Now()
	frame, err := c.dev.Capture(devCtx)
	if err == nil && (frame == nil || len(frame.Data) == 0) {
		err = device.ErrEmptyFrame
	}
	if err != nil {
		if errors.Is(devCtx.Err(), context.DeadlineExceeded) {
			c.opts.Metrics.result(resultTimeout)
			c.log.Error("capture timed out", zap.Duration("timeout", c.opts.Timeout), zap.Error(err))
			return nil, fmt.Errorf("%w after %s: %v", ErrCaptureTimeout, c.opts.Timeout, err)
		}
		c.opts.Metrics.result(resultDevice)
		c.log.Error("capture failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	c.opts.Metrics.observe(time.Since(start).Seconds())

	mime := frame.MimeType
	if mime == "" {
		mime = model.MimeJPEG
	}
	return model.NewCaptureRecord(c.opts.Now(), frame.Data, mime, ShapeMetadata(frame.Metadata), c.opts.TTL), nil
}
