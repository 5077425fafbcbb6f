package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"snapapi/internal/model"
	"snapapi/internal/repository"
)

// Key layout shared with the capture side and any external reader.
const (
	KeyPrefix = "image:"
	IndexKey  = "idx:images"

	fieldImageData         = "image_data"
	fieldMimeType          = "mime_type"
	fieldTimestamp         = "timestamp"
	fieldTTL               = "ttl"
	fieldLux               = "lux"
	fieldExposureTime      = "exposure_time"
	fieldColourTemperature = "colour_temperature"
)

// summaryFields are read for list entries; the payload is never fetched.
var summaryFields = []string{fieldTimestamp, fieldMimeType, fieldLux, fieldExposureTime, fieldColourTemperature}

const (
	listSlack  = 8
	purgeBatch = 256
)

// RecordRedis stores each record as a hash with an absolute expiry and keeps a
// sorted-set index scored by capture timestamp. Index members outlive their
// hashes; readers skip them and Purge removes them.
type RecordRedis struct {
	client goredis.UniversalClient
}

// NewRecordRedis creates a Redis backed repository.RecordRepository.
func NewRecordRedis(client goredis.UniversalClient) *RecordRedis {
	return &RecordRedis{client: client}
}

var _ repository.RecordRepository = (*RecordRedis)(nil)

func recordKey(id string) string { return KeyPrefix + id }

// Write replaces the record hash, attaches its expiry and updates the index in a
// single MULTI/EXEC transaction, so a record can never be left without a TTL.
func (r *RecordRedis) Write(ctx context.Context, rec *model.CaptureRecord) error {
	key := recordKey(rec.ID)
	fields := map[string]any{
		fieldImageData: rec.ImageData,
		fieldMimeType:  rec.MimeType,
		fieldTimestamp: rec.Timestamp,
		fieldTTL:       int64(rec.TTL / time.Second),
	}
	putOptional(fields, fieldLux, rec.Metadata.Lux)
	putOptional(fields, fieldExposureTime, rec.Metadata.ExposureTime)
	putOptional(fields, fieldColourTemperature, rec.Metadata.ColourTemperature)

	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.ExpireAt(ctx, key, rec.ExpiresAt())
		pipe.ZAdd(ctx, IndexKey, goredis.Z{Score: float64(rec.Timestamp), Member: rec.ID})
		return nil
	})
	if err != nil {
		return unavailable("write "+key, err)
	}
	return nil
}

// FindByID returns the full record while its hash is alive.
func (r *RecordRedis) FindByID(ctx context.Context, id string) (*model.CaptureRecord, error) {
	vals, err := r.client.HGetAll(ctx, recordKey(id)).Result()
	if err != nil {
		return nil, unavailable("get "+recordKey(id), err)
	}
	if len(vals) == 0 {
		return nil, repository.ErrNotFound
	}

	ts, err := strconv.ParseInt(vals[fieldTimestamp], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode %s timestamp: %w", recordKey(id), err)
	}
	ttl, _ := strconv.ParseInt(vals[fieldTTL], 10, 64)

	return &model.CaptureRecord{
		ID:        id,
		ImageData: []byte(vals[fieldImageData]),
		MimeType:  vals[fieldMimeType],
		Timestamp: ts,
		TTL:       time.Duration(ttl) * time.Second,
		Metadata: model.Metadata{
			Lux:               parseOptional(vals[fieldLux]),
			ExposureTime:      parseOptional(vals[fieldExposureTime]),
			ColourTemperature: parseOptional(vals[fieldColourTemperature]),
		},
	}, nil
}

// ListRecent walks the index newest first and returns summaries of records whose
// hash still exists. Members pointing at expired hashes are dropped from the index.
func (r *RecordRedis) ListRecent(ctx context.Context, limit int) ([]model.Summary, error) {
	out := make([]model.Summary, 0, max(limit, 0))
	if limit <= 0 {
		return out, nil
	}

	var stale []any
	seen := make(map[string]struct{}, limit)
	batch := int64(limit + listSlack)

	for start := int64(0); len(out) < limit; start += batch {
		ids, err := r.client.ZRevRange(ctx, IndexKey, start, start+batch-1).Result()
		if err != nil {
			return nil, unavailable("range "+IndexKey, err)
		}
		if len(ids) == 0 {
			break
		}

		cmds := make([]*goredis.SliceCmd, len(ids))
		_, err = r.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
			for i, id := range ids {
				cmds[i] = pipe.HMGet(ctx, recordKey(id), summaryFields...)
			}
			return nil
		})
		if err != nil {
			return nil, unavailable("read summaries", err)
		}

		for i, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			s, ok := decodeSummary(id, cmds[i].Val())
			if !ok {
				stale = append(stale, id)
				continue
			}
			seen[id] = struct{}{}
			out = append(out, s)
			if len(out) == limit {
				break
			}
		}
		if int64(len(ids)) < batch {
			break
		}
	}

	if len(stale) > 0 {
		// Best effort; Purge catches anything left behind.
		_ = r.client.ZRem(ctx, IndexKey, stale...).Err()
	}
	return out, nil
}

// Purge removes index members whose hash has expired, oldest first. It stops at
// the first batch without stale members.
func (r *RecordRedis) Purge(ctx context.Context) (int, error) {
	removed := 0
	start := int64(0)
	for {
		ids, err := r.client.ZRange(ctx, IndexKey, start, start+purgeBatch-1).Result()
		if err != nil {
			return removed, unavailable("range "+IndexKey, err)
		}
		if len(ids) == 0 {
			return removed, nil
		}

		cmds := make([]*goredis.IntCmd, len(ids))
		_, err = r.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
			for i, id := range ids {
				cmds[i] = pipe.Exists(ctx, recordKey(id))
			}
			return nil
		})
		if err != nil {
			return removed, unavailable("check index members", err)
		}

		var stale []any
		for i, id := range ids {
			if cmds[i].Val() == 0 {
				stale = append(stale, id)
			}
		}
		if len(stale) == 0 {
			return removed, nil
		}
		if err := r.client.ZRem(ctx, IndexKey, stale...).Err(); err != nil {
			return removed, unavailable("prune "+IndexKey, err)
		}
		removed += len(stale)
		start += int64(len(ids) - len(stale))
	}
}

// Ping checks connectivity.
func (r *RecordRedis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func decodeSummary(id string, vals []any) (model.Summary, bool) {
	if len(vals) != len(summaryFields) || vals[0] == nil {
		return model.Summary{}, false
	}
	ts, err := strconv.ParseInt(asString(vals[0]), 10, 64)
	if err != nil {
		return model.Summary{}, false
	}
	return model.Summary{
		ID:        id,
		Timestamp: ts,
		MimeType:  asString(vals[1]),
		Metadata: model.Metadata{
			Lux:               parseOptional(asString(vals[2])),
			ExposureTime:      parseOptional(asString(vals[3])),
			ColourTemperature: parseOptional(asString(vals[4])),
		},
	}, true
}

func putOptional(fields map[string]any, name string, v *int64) {
	if v != nil {
		fields[name] = *v
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

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %v", repository.ErrUnavailable, op, err)
}
