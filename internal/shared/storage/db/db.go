package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver

	"filefolio-backend/internal/shared/telemetry"
)

// Options controls database pool and connectivity behavior.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	LockTimeout     time.Duration
}

// DefaultOptions returns defaults for long-running server processes. The lock
// timeout keeps conflicting writers waiting a bounded time instead of
// indefinitely.
func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
		LockTimeout:     30 * time.Second,
	}
}

var openDB = sql.Open

// Connect opens a *sql.DB using the provided DATABASE_URL and verifies
// connectivity. The returned *sql.DB should be shared and re-used by callers.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn := withLockTimeout(databaseURL, opts.LockTimeout)
	database, err := openDB("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		database.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		database.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		database.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		database.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := database.PingContext(pingCtx); err != nil {
		database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	telemetry.Info("db.connected", map[string]any{
		"max_open_conns": opts.MaxOpenConns,
		"max_idle_conns": opts.MaxIdleConns,
	})
	return database, nil
}

// withLockTimeout appends a session lock_timeout to URL-style DSNs so that
// conflicting writes fail after a bounded wait.
func withLockTimeout(databaseURL string, timeout time.Duration) string {
	if timeout <= 0 || !strings.Contains(databaseURL, "://") {
		return databaseURL
	}
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return databaseURL
	}
	q := parsed.Query()
	if q.Get("options") != "" {
		return databaseURL
	}
	q.Set("options", fmt.Sprintf("-c lock_timeout=%d", timeout.Milliseconds()))
	parsed.RawQuery = q.Encode()
	return parsed.String()
}
