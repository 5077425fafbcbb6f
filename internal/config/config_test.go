package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("IMAGE_TTL_SECONDS", "3600")
	t.Setenv("CAPTURE_INTERVAL_SECONDS", "10")
	t.Setenv("STORE_URL", "redis://cache:6379/2")
	t.Setenv("AUTOFOCUS_ENABLED", "true")
	t.Setenv("TRIGGER_MODE", " Periodic ")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3600*time.Second, cfg.TTL())
	assert.Equal(t, 10*time.Second, cfg.Interval())
	assert.Equal(t, "redis://cache:6379/2", cfg.Store.URL)
	assert.True(t, cfg.Capture.AutofocusEnabled)
	assert.Equal(t, TriggerPeriodic, cfg.Trigger.Mode)
	assert.Equal(t, "8080", cfg.Port)
	assert.NoError(t, cfg.ValidateCapture())
}

func TestLoad_InvalidNumbers(t *testing.T) {
	t.Setenv("IMAGE_TTL_SECONDS", "soon")
	t.Setenv("AUTOFOCUS_ENABLED", "maybe")

	cfg, err := Load("")
	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "IMAGE_TTL_SECONDS")
	assert.Contains(t, err.Error(), "AUTOFOCUS_ENABLED")
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapapi.yaml")
	body := `
port: "9090"
capture:
  ttl_seconds: 120
  driver: sim
trigger:
  mode: edge
  debounce_ms: 250
  pin: GPIO17
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("DEBOUNCE_MS", "500")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 120*time.Second, cfg.TTL())
	assert.Equal(t, TriggerEdge, cfg.Trigger.Mode)
	assert.Equal(t, 500*time.Millisecond, cfg.Debounce())
	assert.Equal(t, "GPIO17", cfg.Trigger.Pin)
	assert.NoError(t, cfg.ValidateCapture())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidateCapture(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr string
	}{
		{
			name:   "valid periodic",
			mutate: func(c *AppConfig) {},
		},
		{
			name:    "missing ttl",
			mutate:  func(c *AppConfig) { c.Capture.TTLSeconds = 0 },
			wantErr: "IMAGE_TTL_SECONDS",
		},
		{
			name:    "missing interval",
			mutate:  func(c *AppConfig) { c.Trigger.IntervalSeconds = 0 },
			wantErr: "CAPTURE_INTERVAL_SECONDS",
		},
		{
			name: "edge without debounce",
			mutate: func(c *AppConfig) {
				c.Trigger.Mode = TriggerEdge
				c.Trigger.Pin = "GPIO4"
			},
			wantErr: "DEBOUNCE_MS",
		},
		{
			name: "edge without pin",
			mutate: func(c *AppConfig) {
				c.Trigger.Mode = TriggerEdge
				c.Trigger.DebounceMillis = 200
			},
			wantErr: "TRIGGER_PIN",
		},
		{
			name:    "mqtt without broker",
			mutate:  func(c *AppConfig) { c.Trigger.Mode = TriggerMQTT },
			wantErr: "MQTT_BROKER",
		},
		{
			name:    "unknown mode",
			mutate:  func(c *AppConfig) { c.Trigger.Mode = "sometimes" },
			wantErr: "TRIGGER_MODE",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *AppConfig) { c.Capture.Driver = "webcam" },
			wantErr: "CAMERA_DRIVER",
		},
		{
			name:    "unsupported store",
			mutate:  func(c *AppConfig) { c.Store.URL = "mysql://db:3306/images" },
			wantErr: "scheme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Capture.TTLSeconds = 60
			cfg.Trigger.IntervalSeconds = 10
			tt.mutate(cfg)

			err := cfg.ValidateCapture()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateServe(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.ValidateServe())

	cfg.Store.URL = ""
	assert.ErrorIs(t, cfg.ValidateServe(), ErrInvalid)
}
