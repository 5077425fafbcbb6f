// Package model holds the capture record types shared by every layer.
package model

import (
	"strconv"
	"time"
)

// MimeJPEG is the MIME type produced by the camera drivers.
const MimeJPEG = "image/jpeg"

// Metadata is the fixed set of optional sensor readings stored with a capture.
// Nil fields were not reported by the device.
type Metadata struct {
	Lux               *int64 `json:"lux,omitempty"`
	ExposureTime      *int64 `json:"exposure_time,omitempty"`
	ColourTemperature *int64 `json:"colour_temperature,omitempty"`
}

// CaptureRecord is a single stored capture. It is never mutated after creation
// and disappears from every query once Timestamp+TTL has passed.
type CaptureRecord struct {
	ID        string        `json:"id"`
	ImageData []byte        `json:"-"`
	MimeType  string        `json:"mime_type"`
	Timestamp int64         `json:"timestamp"`
	Metadata  Metadata      `json:"metadata"`
	TTL       time.Duration `json:"-"`
}

// Summary is the list projection of a record. It never carries the image payload.
type Summary struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	MimeType  string `json:"mime_type"`
	Metadata
}

// IDFromTimestamp derives a record identifier from its capture second.
// Two captures within the same second share an identifier; the later write wins.
func IDFromTimestamp(ts int64) string {
	return strconv.FormatInt(ts, 10)
}

// NewCaptureRecord builds a record captured at t.
func NewCaptureRecord(t time.Time, data []byte, mimeType string, md Metadata, ttl time.Duration) *CaptureRecord {
	ts := t.Unix()
	return &CaptureRecord{
		ID:        IDFromTimestamp(ts),
		ImageData: data,
		MimeType:  mimeType,
		Timestamp: ts,
		Metadata:  md,
		TTL:       ttl,
	}
}

// ExpiresAt returns the instant the record stops being visible.
func (r *CaptureRecord) ExpiresAt() time.Time {
	return time.Unix(r.Timestamp, 0).Add(r.TTL)
}

// VisibleAt reports whether the record is visible at now.
func (r *CaptureRecord) VisibleAt(now time.Time) bool {
	return now.Before(r.ExpiresAt())
}

// Summary projects the record for listing.
func (r *CaptureRecord) Summary() Summary {
	return Summary{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		MimeType:  r.MimeType,
		Metadata:  r.Metadata,
	}
}

// Int64 returns a pointer to v, for filling Metadata fields.
func Int64(v int64) *int64 { return &v }
