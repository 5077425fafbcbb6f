package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration that cannot be used. It is fatal at startup.
var ErrInvalid = errors.New("invalid configuration")

// Trigger modes.
const (
	TriggerPeriodic = "periodic"
	TriggerEdge     = "edge"
	TriggerMQTT     = "mqtt"
)

// Camera drivers.
const (
	DriverRPiCam = "rpicam"
	DriverSim    = "sim"
)

// CaptureConfig holds camera and capture pipeline settings.
type CaptureConfig struct {
	Driver           string `yaml:"driver"`
	Command          string `yaml:"command"`
	Width            int    `yaml:"width"`
	Height           int    `yaml:"height"`
	Quality          int    `yaml:"quality"`
	AutofocusEnabled bool   `yaml:"autofocus_enabled"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
	TTLSeconds       int    `yaml:"ttl_seconds"`
}

// TriggerConfig selects and tunes the trigger source.
type TriggerConfig struct {
	Mode            string `yaml:"mode"`
	IntervalSeconds int    `yaml:"interval_seconds"`
	DebounceMillis  int    `yaml:"debounce_ms"`
	Pin             string `yaml:"pin"`
}

// StoreConfig holds record store connection settings. The URL scheme picks
// the backend: redis, rediss, postgres, postgresql or s3.
type StoreConfig struct {
	URL                  string `yaml:"url"`
	MaxOpenConns         int    `yaml:"max_open_conns"`
	MaxIdleConns         int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec   int    `yaml:"conn_max_lifetime_sec"`
	PurgeIntervalSeconds int    `yaml:"purge_interval_seconds"`
}

// LogConfig controls the zap logger and its rolling file sink.
type LogConfig struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MQTTConfig enables remote triggers and capture announcements when Broker is set.
type MQTTConfig struct {
	Broker       string `yaml:"broker"`
	ClientID     string `yaml:"client_id"`
	TriggerTopic string `yaml:"trigger_topic"`
	EventTopic   string `yaml:"event_topic"`
}

// AppConfig is the centralized configuration struct for the application.
// It is built once at startup and passed explicitly to each component.
type AppConfig struct {
	Port               string        `yaml:"port"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	Capture            CaptureConfig `yaml:"capture"`
	Trigger            TriggerConfig `yaml:"trigger"`
	Store              StoreConfig   `yaml:"store"`
	Log                LogConfig     `yaml:"log"`
	MQTT               MQTTConfig    `yaml:"mqtt"`
}

// Defaults returns the configuration used before any file or environment is applied.
// Required values (TTL, interval, debounce window, pin) have no default.
func Defaults() *AppConfig {
	return &AppConfig{
		Port:               "8080",
		RateLimitPerMinute: 600,
		Capture: CaptureConfig{
			Driver:         DriverRPiCam,
			Command:        "rpicam-still",
			Width:          1920,
			Height:         1080,
			Quality:        85,
			TimeoutSeconds: 30,
		},
		Trigger: TriggerConfig{
			Mode: TriggerPeriodic,
		},
		Store: StoreConfig{
			URL:                  "redis://localhost:6379",
			MaxOpenConns:         10,
			MaxIdleConns:         5,
			ConnMaxLifetimeSec:   300,
			PurgeIntervalSeconds: 60,
		},
		Log: LogConfig{
			Level: "info",
		},
		MQTT: MQTTConfig{
			ClientID:     "snapapi",
			TriggerTopic: "snapapi/capture",
			EventTopic:   "snapapi/images",
		},
	}
}

// Load builds the configuration: defaults, then the optional YAML file at path,
// then environment variable overrides. A .env file can be auto-loaded by importing
// _ "github.com/joho/godotenv/autoload". Unparsable values are reported, not defaulted.
func Load(path string) (*AppConfig, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	var env envLoader
	env.str(&cfg.Port, "PORT")
	env.int(&cfg.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE")

	env.str(&cfg.Capture.Driver, "CAMERA_DRIVER")
	env.str(&cfg.Capture.Command, "CAMERA_COMMAND")
	env.int(&cfg.Capture.Width, "CAMERA_WIDTH")
	env.int(&cfg.Capture.Height, "CAMERA_HEIGHT")
	env.int(&cfg.Capture.Quality, "CAMERA_QUALITY")
	env.bool(&cfg.Capture.AutofocusEnabled, "AUTOFOCUS_ENABLED")
	env.int(&cfg.Capture.TimeoutSeconds, "CAPTURE_TIMEOUT_SECONDS")
	env.int(&cfg.Capture.TTLSeconds, "IMAGE_TTL_SECONDS")

	env.str(&cfg.Trigger.Mode, "TRIGGER_MODE")
	env.int(&cfg.Trigger.IntervalSeconds, "CAPTURE_INTERVAL_SECONDS")
	env.int(&cfg.Trigger.DebounceMillis, "DEBOUNCE_MS")
	env.str(&cfg.Trigger.Pin, "TRIGGER_PIN")

	env.str(&cfg.Store.URL, "STORE_URL")
	env.int(&cfg.Store.MaxOpenConns, "DB_MAX_OPEN_CONNS")
	env.int(&cfg.Store.MaxIdleConns, "DB_MAX_IDLE_CONNS")
	env.int(&cfg.Store.ConnMaxLifetimeSec, "DB_CONN_MAX_LIFETIME_SEC")
	env.int(&cfg.Store.PurgeIntervalSeconds, "PURGE_INTERVAL_SECONDS")

	env.str(&cfg.Log.Level, "LOG_LEVEL")
	env.str(&cfg.Log.Path, "LOG_PATH")
	env.int(&cfg.Log.MaxSizeMB, "LOG_MAX_SIZE_MB")
	env.int(&cfg.Log.MaxBackups, "LOG_MAX_BACKUPS")
	env.int(&cfg.Log.MaxAgeDays, "LOG_MAX_AGE_DAYS")
	env.bool(&cfg.Log.Compress, "LOG_COMPRESS")

	env.str(&cfg.MQTT.Broker, "MQTT_BROKER")
	env.str(&cfg.MQTT.ClientID, "MQTT_CLIENT_ID")
	env.str(&cfg.MQTT.TriggerTopic, "MQTT_TRIGGER_TOPIC")
	env.str(&cfg.MQTT.EventTopic, "MQTT_EVENT_TOPIC")

	if err := errors.Join(env.errs...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.Trigger.Mode = strings.ToLower(strings.TrimSpace(cfg.Trigger.Mode))
	cfg.Capture.Driver = strings.ToLower(strings.TrimSpace(cfg.Capture.Driver))
	return cfg, nil
}

// TTL returns the record time-to-live.
func (c *AppConfig) TTL() time.Duration {
	return time.Duration(c.Capture.TTLSeconds) * time.Second
}

// CaptureTimeout returns the bound on a single device call.
func (c *AppConfig) CaptureTimeout() time.Duration {
	return time.Duration(c.Capture.TimeoutSeconds) * time.Second
}

// Interval returns the periodic trigger interval.
func (c *AppConfig) Interval() time.Duration {
	return time.Duration(c.Trigger.IntervalSeconds) * time.Second
}

// Debounce returns the edge debounce window.
func (c *AppConfig) Debounce() time.Duration {
	return time.Duration(c.Trigger.DebounceMillis) * time.Millisecond
}

// PurgeInterval returns the store housekeeping period.
func (c *AppConfig) PurgeInterval() time.Duration {
	return time.Duration(c.Store.PurgeIntervalSeconds) * time.Second
}

func loadYAML(path string, out *AppConfig) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// envLoader applies environment overrides and collects parse errors.
type envLoader struct {
	errs []error
}

func (l *envLoader) str(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (l *envLoader) int(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return
	}
	*dst = i
}

func (l *envLoader) bool(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return
	}
	*dst = b
}
