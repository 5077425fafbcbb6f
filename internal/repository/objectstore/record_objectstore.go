// Package objectstore keeps capture records as objects in an S3-compatible bucket.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"snapapi/internal/model"
	"snapapi/internal/repository"
	"snapapi/internal/storage"
)

// Prefix is where record objects live in the bucket.
const Prefix = "captures/"

// User metadata keys, in the canonical form the S3 API returns them.
const (
	metaTimestamp         = "Timestamp"
	metaTTL               = "Ttl"
	metaExpiresAt         = "Expires-At"
	metaLux               = "Lux"
	metaExposureTime      = "Exposure-Time"
	metaColourTemperature = "Colour-Temperature"
)

// RecordObjectStore stores one object per record: the payload is the body and
// every other field is user metadata. Buckets have no native per-object TTL, so
// visibility is checked against Expires-At on every read.
type RecordObjectStore struct {
	store storage.Storage
	now   func() time.Time
}

// NewRecordObjectStore creates an object store backed repository.RecordRepository.
func NewRecordObjectStore(store storage.Storage) *RecordObjectStore {
	return &RecordObjectStore{store: store, now: time.Now}
}

var _ repository.RecordRepository = (*RecordObjectStore)(nil)

// ObjectKey maps a capture timestamp to its key. Zero padding keeps lexical
// order equal to capture order.
func ObjectKey(ts int64) string {
	return fmt.Sprintf("%s%020d", Prefix, ts)
}

// Write uploads the record in a single PutObject, so body and expiry appear together.
func (r *RecordObjectStore) Write(ctx context.Context, rec *model.CaptureRecord) error {
	meta := map[string]string{
		metaTimestamp: strconv.FormatInt(rec.Timestamp, 10),
		metaTTL:       strconv.FormatInt(int64(rec.TTL/time.Second), 10),
		metaExpiresAt: strconv.FormatInt(rec.ExpiresAt().Unix(), 10),
	}
	putOptional(meta, metaLux, rec.Metadata.Lux)
	putOptional(meta, metaExposureTime, rec.Metadata.ExposureTime)
	putOptional(meta, metaColourTemperature, rec.Metadata.ColourTemperature)

	key := ObjectKey(rec.Timestamp)
	_, err := r.store.Put(ctx, key, bytes.NewReader(rec.ImageData), storage.PutObjectOptions{
		Size:        int64(len(rec.ImageData)),
		ContentType: rec.MimeType,
		Metadata:    meta,
	})
	if err != nil {
		return unavailable("put "+key, err)
	}
	return nil
}

// FindByID downloads the record if it is still visible.
func (r *RecordObjectStore) FindByID(ctx context.Context, id string) (*model.CaptureRecord, error) {
	ts, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	key := ObjectKey(ts)

	body, info, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, unavailable("get "+key, err)
	}
	defer body.Close()

	sum, ok := decodeSummary(id, info, r.now())
	if !ok {
		return nil, repository.ErrNotFound
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, unavailable("read "+key, err)
	}
	ttl, _ := strconv.ParseInt(info.Metadata[metaTTL], 10, 64)

	return &model.CaptureRecord{
		ID:        sum.ID,
		ImageData: data,
		MimeType:  sum.MimeType,
		Timestamp: sum.Timestamp,
		Metadata:  sum.Metadata,
		TTL:       time.Duration(ttl) * time.Second,
	}, nil
}

// ListRecent walks keys newest first and stats each until limit visible records are found.
func (r *RecordObjectStore) ListRecent(ctx context.Context, limit int) ([]model.Summary, error) {
	out := make([]model.Summary, 0, max(limit, 0))
	if limit <= 0 {
		return out, nil
	}

	objs, err := r.store.List(ctx, Prefix)
	if err != nil {
		return nil, unavailable("list", err)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key > objs[j].Key })

	now := r.now()
	for _, obj := range objs {
		id, ok := idFromKey(obj.Key)
		if !ok {
			continue
		}
		info, err := r.store.Stat(ctx, obj.Key)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				continue
			}
			return nil, unavailable("stat "+obj.Key, err)
		}
		sum, ok := decodeSummary(id, info, now)
		if !ok {
			continue
		}
		out = append(out, sum)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Purge deletes objects whose expiry has passed.
func (r *RecordObjectStore) Purge(ctx context.Context) (int, error) {
	objs, err := r.store.List(ctx, Prefix)
	if err != nil {
		return 0, unavailable("list", err)
	}

	now := r.now()
	removed := 0
	for _, obj := range objs {
		info, err := r.store.Stat(ctx, obj.Key)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				continue
			}
			return removed, unavailable("stat "+obj.Key, err)
		}
		exp, err := strconv.ParseInt(info.Metadata[metaExpiresAt], 10, 64)
		if err == nil && now.Before(time.Unix(exp, 0)) {
			continue
		}
		if err := r.store.Delete(ctx, obj.Key); err != nil {
			return removed, unavailable("delete "+obj.Key, err)
		}
		removed++
	}
	return removed, nil
}

func (r *RecordObjectStore) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func idFromKey(key string) (string, bool) {
	ts, err := strconv.ParseInt(strings.TrimPrefix(key, Prefix), 10, 64)
	if err != nil {
		return "", false
	}
	return model.IDFromTimestamp(ts), true
}

// decodeSummary rebuilds the list projection and reports false for expired or foreign objects.
func decodeSummary(id string, info storage.ObjectInfo, now time.Time) (model.Summary, bool) {
	exp, err := strconv.ParseInt(info.Metadata[metaExpiresAt], 10, 64)
	if err != nil || !now.Before(time.Unix(exp, 0)) {
		return model.Summary{}, false
	}
	ts, err := strconv.ParseInt(info.Metadata[metaTimestamp], 10, 64)
	if err != nil {
		return model.Summary{}, false
	}
	return model.Summary{
		ID:        id,
		Timestamp: ts,
		MimeType:  info.ContentType,
		Metadata: model.Metadata{
			Lux:               parseOptional(info.Metadata[metaLux]),
			ExposureTime:      parseOptional(info.Metadata[metaExposureTime]),
			ColourTemperature: parseOptional(info.Metadata[metaColourTemperature]),
		},
	}, true
}

func putOptional(meta map[string]string, name string, v *int64) {
	if v != nil {
		meta[name] = strconv.FormatInt(*v, 10)
	}
}

func parseOptional(s string) *int64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: s3 %s: %v", repository.ErrUnavailable, op, err)
}
