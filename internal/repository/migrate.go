package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/unitflow/unitflow/db"
)

// Migrate applies the embedded schema. Every statement is IF NOT EXISTS, so
// this is safe to run on every startup.
func Migrate(ctx context.Context, sqldb *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for _, stmt := range strings.Split(db.Schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := sqldb.ExecContext(ctx, stmt); err != nil {
			logger.Error("migration statement failed", "error", err)
			return err
		}
	}
	return nil
}
