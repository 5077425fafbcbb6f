package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"snapapi/internal/model"
	"snapapi/internal/repository"
)

// RecordPostgres is a PostgreSQL implementation of repository.RecordRepository.
// Visibility is decided by the server clock through expires_at > now().
type RecordPostgres struct {
	db *sql.DB
}

// NewRecordPostgres creates a new RecordPostgres repository.
func NewRecordPostgres(db *sql.DB) *RecordPostgres {
	return &RecordPostgres{db: db}
}

var _ repository.RecordRepository = (*RecordPostgres)(nil)

// Write upserts the record in one statement; the row and its expiry land together.
func (r *RecordPostgres) Write(ctx context.Context, rec *model.CaptureRecord) error {
	const q = `
		INSERT INTO capture_records
			(id, image_data, mime_type, captured_at, ttl_seconds, lux, exposure_time, colour_temperature, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			image_data = EXCLUDED.image_data,
			mime_type = EXCLUDED.mime_type,
			captured_at = EXCLUDED.captured_at,
			ttl_seconds = EXCLUDED.ttl_seconds,
			lux = EXCLUDED.lux,
			exposure_time = EXCLUDED.exposure_time,
			colour_temperature = EXCLUDED.colour_temperature,
			expires_at = EXCLUDED.expires_at
	`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.ImageData,
		rec.MimeType,
		rec.Timestamp,
		int64(rec.TTL/time.Second),
		nullable(rec.Metadata.Lux),
		nullable(rec.Metadata.ExposureTime),
		nullable(rec.Metadata.ColourTemperature),
		rec.ExpiresAt().UTC(),
	)
	if err != nil {
		return unavailable("write "+rec.ID, err)
	}
	return nil
}

// FindByID fetches a single visible record by its ID.
func (r *RecordPostgres) FindByID(ctx context.Context, id string) (*model.CaptureRecord, error) {
	const q = `
		SELECT id, image_data, mime_type, captured_at, ttl_seconds, lux, exposure_time, colour_temperature
		FROM capture_records
		WHERE id = $1 AND expires_at > now()
	`
	var (
		rec               model.CaptureRecord
		ttl               int64
		lux, exp, colTemp sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&rec.ID,
		&rec.ImageData,
		&rec.MimeType,
		&rec.Timestamp,
		&ttl,
		&lux,
		&exp,
		&colTemp,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, unavailable("find "+id, err)
	}
	rec.TTL = time.Duration(ttl) * time.Second
	rec.Metadata = model.Metadata{
		Lux:               ptr(lux),
		ExposureTime:      ptr(exp),
		ColourTemperature: ptr(colTemp),
	}
	return &rec, nil
}

// ListRecent returns visible summaries newest first. image_data is never selected.
func (r *RecordPostgres) ListRecent(ctx context.Context, limit int) ([]model.Summary, error) {
	items := make([]model.Summary, 0, max(limit, 0))
	if limit <= 0 {
		return items, nil
	}

	const q = `
		SELECT id, captured_at, mime_type, lux, exposure_time, colour_temperature
		FROM capture_records
		WHERE expires_at > now()
		ORDER BY captured_at DESC, id DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, unavailable("list", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s                 model.Summary
			lux, exp, colTemp sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Timestamp, &s.MimeType, &lux, &exp, &colTemp); err != nil {
			return nil, unavailable("scan list", err)
		}
		s.Metadata = model.Metadata{
			Lux:               ptr(lux),
			ExposureTime:      ptr(exp),
			ColourTemperature: ptr(colTemp),
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	return items, nil
}

// Purge deletes expired rows.
func (r *RecordPostgres) Purge(ctx context.Context) (int, error) {
	const q = `DELETE FROM capture_records WHERE expires_at <= now()`
	res, err := r.db.ExecContext(ctx, q)
	if err != nil {
		return 0, unavailable("purge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("purge", err)
	}
	return int(n), nil
}

// Ping checks connectivity.
func (r *RecordPostgres) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func nullable(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: postgres %s: %v", repository.ErrUnavailable, op, err)
}
