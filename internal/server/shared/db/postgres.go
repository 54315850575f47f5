// Package db opens the PostgreSQL connection pool shared by the server and
// the admin commands.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/wbcms/internal/logging"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sethvargo/go-retry"
)

// DefaultBackoff retries the initial ping for roughly half a minute, which
// covers a database container that is still starting.
func DefaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(6, retry.WithCappedDuration(8*time.Second, retry.NewExponential(500*time.Millisecond)))
}

// Open creates a pgx-backed pool for dsn and waits until it answers a ping.
func Open(ctx context.Context, dsn string, l logging.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := Connect(ctx, db, DefaultBackoff(), l); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Connect pings db until it responds or b gives up.
func Connect(ctx context.Context, db *sql.DB, b retry.Backoff, l logging.Logger) error {
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := db.PingContext(ctx); err != nil {
			l.Warn(ctx, "database not reachable yet", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("db ping error after %d attempts: %w", attempt, err)
	}
	return nil
}
