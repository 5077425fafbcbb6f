// Package repository defines the record store contract. Backends live in subpackages.
package repository

import (
	"context"
	"errors"

	"snapapi/internal/model"
)

var (
	// ErrNotFound is returned when a record is absent or already expired.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable wraps any backend failure (connection refused, timeout, protocol error).
	ErrUnavailable = errors.New("record store unavailable")
)

// RecordRepository persists capture records with a time-to-live and serves the
// two query shapes of the API. Implementations must be safe for concurrent use.
type RecordRepository interface {
	// Write stores every field of the record and attaches its expiry.
	// A record with the same ID is replaced (last write wins).
	Write(ctx context.Context, rec *model.CaptureRecord) error

	// FindByID returns the full record, or ErrNotFound if absent or expired.
	FindByID(ctx context.Context, id string) (*model.CaptureRecord, error)

	// ListRecent returns at most limit visible records, newest first, without payloads.
	ListRecent(ctx context.Context, limit int) ([]model.Summary, error)

	// Purge removes expired leftovers (index members, rows, objects) and reports how many.
	Purge(ctx context.Context) (int, error)

	// Ping checks connectivity to the backend.
	Ping(ctx context.Context) error
}
