package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"snapapi/internal/repository"
)

// RunJanitor purges expired leftovers from the store every interval until
// ctx is done. Failures are logged and retried on the next tick.
func RunJanitor(ctx context.Context, repo repository.RecordRepository, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.Purge(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("purged expired entries", zap.Int("count", n))
			}
		}
	}
}
