package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"testing"
	"time"

	"snapapi/internal/model"
	"snapapi/internal/repository"
	"snapapi/internal/storage"
	"snapapi/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRepo(now time.Time) (*RecordObjectStore, *mocks.MockStorage) {
	st := new(mocks.MockStorage)
	repo := NewRecordObjectStore(st)
	repo.now = func() time.Time { return now }
	return repo, st
}

func objectInfo(ts, ttl int64) storage.ObjectInfo {
	return storage.ObjectInfo{
		Key:         ObjectKey(ts),
		ContentType: model.MimeJPEG,
		Metadata: map[string]string{
			"Timestamp":  itoa(ts),
			"Ttl":        itoa(ttl),
			"Expires-At": itoa(ts + ttl),
			"Lux":        "42",
		},
	}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "captures/00000000001700000000", ObjectKey(1700000000))
	assert.Less(t, ObjectKey(999), ObjectKey(1000))
}

func TestRecordObjectStore_Write(t *testing.T) {
	ctx := context.Background()
	rec := model.NewCaptureRecord(time.Unix(1700000000, 0), []byte("jpeg"), model.MimeJPEG,
		model.Metadata{Lux: model.Int64(42)}, time.Minute)

	t.Run("single put with metadata", func(t *testing.T) {
		repo, st := newRepo(time.Unix(1700000000, 0))
		st.On("Put", ctx, "captures/00000000001700000000", mock.Anything, mock.MatchedBy(func(o storage.PutObjectOptions) bool {
			return o.Size == 4 &&
				o.ContentType == model.MimeJPEG &&
				o.Metadata["Timestamp"] == "1700000000" &&
				o.Metadata["Ttl"] == "60" &&
				o.Metadata["Expires-At"] == "1700000060" &&
				o.Metadata["Lux"] == "42" &&
				o.Metadata["Exposure-Time"] == ""
		})).Return(storage.ObjectInfo{}, nil).Once()

		require.NoError(t, repo.Write(ctx, rec))
		st.AssertExpectations(t)
	})

	t.Run("put failure", func(t *testing.T) {
		repo, st := newRepo(time.Unix(1700000000, 0))
		st.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{}, errors.New("connection refused")).Once()

		err := repo.Write(ctx, rec)
		assert.ErrorIs(t, err, repository.ErrUnavailable)
	})
}

func TestRecordObjectStore_FindByID(t *testing.T) {
	ctx := context.Background()
	key := ObjectKey(1700000000)

	t.Run("visible", func(t *testing.T) {
		repo, st := newRepo(time.Unix(1700000030, 0))
		st.On("Get", ctx, key).
			Return(io.NopCloser(bytes.NewReader([]byte("jpeg"))), objectInfo(1700000000, 60), nil).Once()

		rec, err := repo.FindByID(ctx, "1700000000")
		require.NoError(t, err)
		assert.Equal(t, "1700000000", rec.ID)
		assert.Equal(t, []byte("jpeg"), rec.ImageData)
		assert.Equal(t, model.MimeJPEG, rec.MimeType)
		assert.Equal(t, time.Minute, rec.TTL)
		require.NotNil(t, rec.Metadata.Lux)
		assert.Equal(t, int64(42), *rec.Metadata.Lux)
		st.AssertExpectations(t)
	})

	t.Run("expired", func(t *testing.T) {
		repo, st := newRepo(time.Unix(1700000060, 0))
		st.On("Get", ctx, key).
			Return(io.NopCloser(bytes.NewReader([]byte("jpeg"))), objectInfo(1700000000, 60), nil).Once()

		_, err := repo.FindByID(ctx, "1700000000")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("missing", func(t *testing.T) {
		repo, st := newRepo(time.Unix(1700000000, 0))
		st.On("Get", ctx, key).Return(nil, storage.ObjectInfo{}, storage.ErrObjectNotFound).Once()

		_, err := repo.FindByID(ctx, "1700000000")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("non numeric id", func(t *testing.T) {
		repo, st := newRepo(time.Unix(1700000000, 0))

		_, err := repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		st.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("store error", func(t *testing.T) {
		repo, st := newRepo(time.Unix(1700000000, 0))
		st.On("Get", ctx, key).Return(nil, storage.ObjectInfo{}, errors.New("timeout")).Once()

		_, err := repo.FindByID(ctx, "1700000000")
		assert.ErrorIs(t, err, repository.ErrUnavailable)
	})
}

func TestRecordObjectStore_ListRecent(t *testing.T) {
	ctx := context.Background()

	t.Run("newest first, expired skipped", func(t *testing.T) {
		repo, st := newRepo(time.Unix(100, 0))
		st.On("List", ctx, Prefix).Return([]storage.ObjectInfo{
			{Key: ObjectKey(10)}, {Key: ObjectKey(50)}, {Key: ObjectKey(90)}, {Key: ObjectKey(95)},
			{Key: Prefix + "README"},
		}, nil).Once()
		st.On("Stat", ctx, ObjectKey(95)).Return(objectInfo(95, 60), nil).Once()
		st.On("Stat", ctx, ObjectKey(90)).Return(objectInfo(90, 60), nil).Once()
		st.On("Stat", ctx, ObjectKey(50)).Return(objectInfo(50, 50), nil).Once()
		st.On("Stat", ctx, ObjectKey(10)).Return(objectInfo(10, 200), nil).Once()

		items, err := repo.ListRecent(ctx, 9)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "95", items[0].ID)
		assert.Equal(t, "90", items[1].ID)
		assert.Equal(t, "10", items[2].ID)
		st.AssertExpectations(t)
	})

	t.Run("stops at limit", func(t *testing.T) {
		repo, st := newRepo(time.Unix(100, 0))
		st.On("List", ctx, Prefix).Return([]storage.ObjectInfo{
			{Key: ObjectKey(97)}, {Key: ObjectKey(98)}, {Key: ObjectKey(99)},
		}, nil).Once()
		st.On("Stat", ctx, ObjectKey(99)).Return(objectInfo(99, 60), nil).Once()
		st.On("Stat", ctx, ObjectKey(98)).Return(objectInfo(98, 60), nil).Once()

		items, err := repo.ListRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "99", items[0].ID)
		st.AssertNotCalled(t, "Stat", ctx, ObjectKey(97))
	})

	t.Run("empty bucket", func(t *testing.T) {
		repo, st := newRepo(time.Unix(100, 0))
		st.On("List", ctx, Prefix).Return(nil, nil).Once()

		items, err := repo.ListRecent(ctx, 9)
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	t.Run("list error", func(t *testing.T) {
		repo, st := newRepo(time.Unix(100, 0))
		st.On("List", ctx, Prefix).Return(nil, errors.New("forbidden")).Once()

		_, err := repo.ListRecent(ctx, 9)
		assert.ErrorIs(t, err, repository.ErrUnavailable)
	})
}

func TestRecordObjectStore_Purge(t *testing.T) {
	ctx := context.Background()
	repo, st := newRepo(time.Unix(100, 0))

	st.On("List", ctx, Prefix).Return([]storage.ObjectInfo{
		{Key: ObjectKey(10)}, {Key: ObjectKey(50)}, {Key: ObjectKey(90)},
	}, nil).Once()
	st.On("Stat", ctx, ObjectKey(10)).Return(objectInfo(10, 60), nil).Once()
	st.On("Stat", ctx, ObjectKey(50)).Return(objectInfo(50, 50), nil).Once()
	st.On("Stat", ctx, ObjectKey(90)).Return(objectInfo(90, 60), nil).Once()
	st.On("Delete", ctx, ObjectKey(10)).Return(nil).Once()
	st.On("Delete", ctx, ObjectKey(50)).Return(nil).Once()

	n, err := repo.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	st.AssertExpectations(t)
	st.AssertNotCalled(t, "Delete", ctx, ObjectKey(90))
}

func TestRecordObjectStore_Ping(t *testing.T) {
	ctx := context.Background()
	repo, st := newRepo(time.Unix(0, 0))
	st.On("Ping", ctx).Return(nil).Once()
	st.On("Ping", ctx).Return(errors.New("no such bucket")).Once()

	assert.NoError(t, repo.Ping(ctx))
	assert.ErrorIs(t, repo.Ping(ctx), repository.ErrUnavailable)
}
