package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_capture_records",
		SQL: `CREATE TABLE IF NOT EXISTS capture_records (
  id                 TEXT        PRIMARY KEY,
  image_data         BYTEA       NOT NULL,
  mime_type          TEXT        NOT NULL,
  captured_at        BIGINT      NOT NULL,
  ttl_seconds        BIGINT      NOT NULL CHECK (ttl_seconds > 0),
  lux                BIGINT,
  exposure_time      BIGINT,
  colour_temperature BIGINT,
  expires_at         TIMESTAMPTZ NOT NULL
);`,
	},
	{
		Name: "create_index_capture_records_captured_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_capture_records_captured_at ON capture_records (captured_at DESC);`,
	},
	{
		Name: "create_index_capture_records_expires_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_capture_records_expires_at ON capture_records (expires_at);`,
	},
}

// EnsureMigrated checks if the capture_records table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	start := time.Now()
	log = log.With(zap.String("component", "database"))
	log.Info("db_migration_check", zap.String("status", "starting"))

	var exists bool
	query := "SELECT to_regclass('public.capture_records') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			zap.String("status", "error"),
			zap.Error(err),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			zap.String("status", "success"),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	log.Info("db_migration_start", zap.String("status", "in_progress"))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				zap.String("status", "error"),
				zap.String("migration_step", step.Name),
				zap.Error(err),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			zap.String("status", "success"),
			zap.String("migration_step", step.Name),
			zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	log.Info("db_migration_success",
		zap.String("status", "success"),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
