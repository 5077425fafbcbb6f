package main

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"snapapi/internal/config"
	"snapapi/internal/database"
	"snapapi/internal/database/migration"
	"snapapi/internal/repository"
	"snapapi/internal/repository/objectstore"
	"snapapi/internal/repository/postgres"
	"snapapi/internal/repository/redis"
	"snapapi/internal/storage"
)

// openStore picks the record store backend from the STORE_URL scheme. The
// returned close function releases the backend connection.
func openStore(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (repository.RecordRepository, func() error, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: STORE_URL: %v", config.ErrInvalid, err)
	}

	switch u.Scheme {
	case "redis", "rediss":
		client, err := database.NewRedis(ctx, cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("record store ready", zap.String("backend", "redis"), zap.String("addr", u.Host))
		return redis.NewRecordRedis(client), client.Close, nil

	case "postgres", "postgresql":
		db, err := database.NewPostgres(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := migration.EnsureMigrated(ctx, db, log); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info("record store ready", zap.String("backend", "postgres"), zap.String("addr", u.Host))
		return postgres.NewRecordPostgres(db), db.Close, nil

	case "s3":
		opts, err := storage.ParseS3URL(cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		st, err := storage.NewMinIO(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		log.Info("record store ready", zap.String("backend", "s3"), zap.String("addr", opts.Endpoint), zap.String("bucket", opts.Bucket))
		return objectstore.NewRecordObjectStore(st), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("%w: STORE_URL scheme %q is not supported", config.ErrInvalid, u.Scheme)
	}
}
