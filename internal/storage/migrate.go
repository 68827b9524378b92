package storage

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLockID is the pg_advisory_lock key every facegate process takes
// before touching goose_db_version.
const migrationLockID int64 = 0x66616365676174

var (
	gooseOnce sync.Once
	gooseErr  error
)

// Migrate applies all pending schema migrations. The api and the worker both
// call it at startup; a session advisory lock lets only one of them run goose
// at a time, and the other then finds nothing pending. The lock holds one pool
// connection while goose uses another, so the pool needs at least two.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrationsFS)
		gooseErr = goose.SetDialect("postgres")
	})
	if gooseErr != nil {
		return fmt.Errorf("set migration dialect: %w", gooseErr)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration lock connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrationLockID); err != nil {
		return fmt.Errorf("take migration lock: %w", err)
	}
	defer func() {
		// Released even when ctx is already done, or the session keeps the lock.
		if _, err := conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockID); err != nil {
			slog.Warn("release migration lock", "error", err)
		}
	}()

	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
