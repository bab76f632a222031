// Package migrations applies the embedded schema with goose, guarded by a
// Postgres advisory lock so concurrently booting replicas don't race.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ragdocs/docuqa/internal/logger"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

var gooseMu sync.Mutex

const advisoryLockTimeout = 45 * time.Second

// Apply opens dsn, acquires an advisory lock, and runs pending migrations.
func Apply(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("migrations: open db: %w", err)
	}
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("migrations: acquire connection: %w", err)
	}
	defer conn.Close()

	log := logger.FromContext(ctx)
	lockCtx, cancel := context.WithTimeout(ctx, advisoryLockTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "select pg_advisory_lock(hashtext($1), hashtext($2))", "docuqa", "migrations"); err != nil {
		return fmt.Errorf("migrations: acquire advisory lock: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(
			context.WithoutCancel(ctx),
			"select pg_advisory_unlock(hashtext($1), hashtext($2))", "docuqa", "migrations",
		); err != nil {
			log.Warn("failed to release migration advisory lock", "error", err)
		}
	}()

	return runMigrations(db)
}

func runMigrations(db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("migrations: set dialect: %w", err)
	}
	if err := goose.Up(db, "sql"); err != nil {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}
