package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"mapform/internal/logger"
)

// Apply выполняет список DDL-стейтментов строго по порядку: основная таблица,
// затем история, триггеры, индексы. DDL ожидается идемпотентный
// (create ... if not exists / create or replace), поэтому duplicate_object не фатален.
func Apply(ctx context.Context, db *sql.DB, log *logger.Logger, stmts []string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	for _, stmt := range stmts {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			// pgx/stdlib возвращает *pgconn.PgError
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42710" {
				log.Warn("ddl skipped (already exists)", "object", pgErr.ConstraintName, "detail", strings.TrimSpace(pgErr.Message))
				continue
			}
			// подстраховка по фразе (на случай других объектов)
			e := strings.ToLower(err.Error())
			if strings.Contains(e, "already exists") || strings.Contains(e, "duplicate") {
				log.Warn("ddl skipped (already exists)", "error", err)
				continue
			}
			return fmt.Errorf("ddl apply failed: %w", err)
		}
	}
	return nil
}
