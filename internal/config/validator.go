package config

import (
	"errors"
	"fmt"
	"net/url"
)

// ValidateCapture checks everything the capture pipeline needs.
func (c *AppConfig) ValidateCapture() error {
	var errs []error

	if c.Capture.TTLSeconds <= 0 {
		errs = append(errs, fmt.Errorf("IMAGE_TTL_SECONDS must be > 0"))
	}
	if c.Capture.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("CAPTURE_TIMEOUT_SECONDS must be > 0"))
	}

	switch c.Capture.Driver {
	case DriverRPiCam:
		if c.Capture.Command == "" {
			errs = append(errs, fmt.Errorf("CAMERA_COMMAND is required for the rpicam driver"))
		}
		if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
			errs = append(errs, fmt.Errorf("CAMERA_WIDTH and CAMERA_HEIGHT must be > 0"))
		}
		if c.Capture.Quality < 1 || c.Capture.Quality > 100 {
			errs = append(errs, fmt.Errorf("CAMERA_QUALITY must be within 1..100"))
		}
	case DriverSim:
	default:
		errs = append(errs, fmt.Errorf("CAMERA_DRIVER %q must be %q or %q", c.Capture.Driver, DriverRPiCam, DriverSim))
	}

	switch c.Trigger.Mode {
	case TriggerPeriodic:
		if c.Trigger.IntervalSeconds <= 0 {
			errs = append(errs, fmt.Errorf("CAPTURE_INTERVAL_SECONDS must be > 0 in periodic mode"))
		}
	case TriggerEdge:
		if c.Trigger.DebounceMillis <= 0 {
			errs = append(errs, fmt.Errorf("DEBOUNCE_MS must be > 0 in edge mode"))
		}
		if c.Trigger.Pin == "" {
			errs = append(errs, fmt.Errorf("TRIGGER_PIN is required in edge mode"))
		}
	case TriggerMQTT:
		if c.MQTT.Broker == "" || c.MQTT.TriggerTopic == "" {
			errs = append(errs, fmt.Errorf("MQTT_BROKER and MQTT_TRIGGER_TOPIC are required in mqtt mode"))
		}
		if c.Trigger.DebounceMillis < 0 {
			errs = append(errs, fmt.Errorf("DEBOUNCE_MS must not be negative"))
		}
	default:
		errs = append(errs, fmt.Errorf("TRIGGER_MODE %q must be one of %q, %q, %q", c.Trigger.Mode, TriggerPeriodic, TriggerEdge, TriggerMQTT))
	}

	errs = append(errs, c.validateStore()...)
	return joinInvalid(errs)
}

// ValidateServe checks everything the query service needs.
func (c *AppConfig) ValidateServe() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, fmt.Errorf("PORT is required"))
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be > 0"))
	}
	if c.Store.PurgeIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("PURGE_INTERVAL_SECONDS must be > 0"))
	}
	errs = append(errs, c.validateStore()...)
	return joinInvalid(errs)
}

func (c *AppConfig) validateStore() []error {
	if c.Store.URL == "" {
		return []error{fmt.Errorf("STORE_URL is required")}
	}
	u, err := url.Parse(c.Store.URL)
	if err != nil {
		return []error{fmt.Errorf("STORE_URL is not a valid URL: %v", err)}
	}
	switch u.Scheme {
	case "redis", "rediss", "postgres", "postgresql", "s3":
	default:
		return []error{fmt.Errorf("STORE_URL scheme %q is not supported", u.Scheme)}
	}
	if u.Host == "" {
		return []error{fmt.Errorf("STORE_URL must name a host")}
	}
	return nil
}

func joinInvalid(errs []error) error {
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
