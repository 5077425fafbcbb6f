package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"snapapi/internal/capture"
	"snapapi/internal/config"
	"snapapi/internal/device"
	"snapapi/internal/mqtt"
	"snapapi/internal/otel"
	"snapapi/internal/trigger"
)

type captureOptions struct {
	*rootOptions
	Once        bool
	MetricsAddr string
}

func newCaptureCommand(root *rootOptions) *cobra.Command {
	opts := &captureOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Run the trigger and capture pipeline",
		Long: `Open the camera and capture a still image on every trigger. The trigger
comes from TRIGGER_MODE: a fixed interval, debounced rising edges on a GPIO
pin, or messages on an MQTT topic. Each capture is stored with IMAGE_TTL_SECONDS.

Example:
  snapapi capture --config snapapi.yaml
  snapapi capture --once`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "capture a single image and exit")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve capture metrics on this address (e.g. :9102)")

	return cmd
}

func runCapture(ctx context.Context, opts *captureOptions) error {
	cfg, log := opts.cfg, opts.log.With(zap.String("component", "capture"))
	if err := cfg.ValidateCapture(); err != nil {
		return err
	}

	shutdownTracing, err := otel.Init(ctx, "snapapi-capture", log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	repo, closeStore, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer closeStore()

	dev, err := device.New(cfg.Capture, log)
	if err != nil {
		return err
	}
	if err := dev.Open(ctx); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer dev.Close()

	reg := prometheus.NewRegistry()
	metrics, err := capture.NewMetrics(reg)
	if err != nil {
		return err
	}

	var client paho.Client
	if cfg.MQTT.Broker != "" {
		client, err = mqtt.Connect(cfg.MQTT, log)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
	}

	var notifier capture.Notifier
	if client != nil && cfg.MQTT.EventTopic != "" {
		notifier = mqtt.NewAnnouncer(client, cfg.MQTT.EventTopic)
	}

	coord := capture.New(dev, repo, log, capture.Options{
		TTL:       cfg.TTL(),
		Timeout:   cfg.CaptureTimeout(),
		Autofocus: cfg.Capture.AutofocusEnabled,
		Metrics:   metrics,
		Notifier:  notifier,
	})

	if opts.Once {
		_, err := coord.HandleTrigger(ctx, trigger.Request{Reason: trigger.ReasonManual, At: time.Now()})
		return err
	}

	src, closeSource, err := newSource(cfg, client, log)
	if err != nil {
		return err
	}
	defer closeSource()

	if opts.MetricsAddr != "" {
		app := fiber.New(fiber.Config{DisableStartupMessage: true})
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
		go func() {
			if err := app.Listen(opts.MetricsAddr); err != nil {
				log.Error("metrics listener stopped", zap.Error(err))
			}
		}()
		defer func() { _ = app.ShutdownWithTimeout(shutdownTimeout) }()
	}

	log.Info("capture pipeline started",
		zap.String("trigger_mode", cfg.Trigger.Mode),
		zap.String("driver", cfg.Capture.Driver),
		zap.Duration("ttl", cfg.TTL()),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- coord.Run(ctx) }()

	srcErr := src.Run(ctx, coord)
	cancel()
	runErr := <-done

	if srcErr != nil && !errors.Is(srcErr, context.Canceled) {
		return fmt.Errorf("trigger source: %w", srcErr)
	}
	log.Info("capture pipeline stopped")
	return runErr
}

// newSource builds the trigger source for cfg.Trigger.Mode.
func newSource(cfg *config.AppConfig, client paho.Client, log *zap.Logger) (trigger.Source, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Trigger.Mode {
	case config.TriggerPeriodic:
		p, err := trigger.NewPeriodic(cfg.Interval())
		if err != nil {
			return nil, nil, err
		}
		return p, noop, nil

	case config.TriggerEdge:
		pin, err := trigger.OpenPin(cfg.Trigger.Pin)
		if err != nil {
			return nil, nil, err
		}
		return trigger.NewEdge(pin, trigger.NewDebouncer(cfg.Debounce()), log), pin.Close, nil

	case config.TriggerMQTT:
		if client == nil {
			return nil, nil, fmt.Errorf("%w: mqtt trigger mode needs MQTT_BROKER", config.ErrInvalid)
		}
		return mqtt.NewSource(client, cfg.MQTT.TriggerTopic, trigger.NewDebouncer(cfg.Debounce()), log), noop, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown trigger mode %q", config.ErrInvalid, cfg.Trigger.Mode)
	}
}
