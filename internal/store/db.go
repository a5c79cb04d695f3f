// Package store implements C1, the metadata store: Project/Task/Clip/
// Collection repositories over Postgres, CAS status transitions, and the
// janitor sweep for orphaned RUNNING tasks. Connection/migration plumbing is
// grounded in ThirdCoastInteractive-Rewind's internal/db.DatabaseConnection
// (pgxpool + goose, retry-with-backoff on initial connect).
package store

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// DB wraps a pgxpool.Pool, following the teacher's DatabaseConnection
// embedding convention.
type DB struct {
	*pgxpool.Pool
}

// connectRetries mirrors Rewind's DBRetryCount: a freshly-started Postgres
// container can take a few seconds to accept connections.
const connectRetries = 15

// Connect opens a pool against dsn, retrying with a golden-ratio backoff
// until Postgres answers a Ping, exactly as Rewind's NewDatabaseConnection
// does for its own container-startup race.
func Connect(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pgx pool: %w", err)
	}

	const goldenRatio = 1.61803398875
	for i := 0; i < connectRetries; i++ {
		if err := pool.Ping(ctx); err == nil {
			return &DB{pool}, nil
		}
		sleep := time.Duration(float64(i)*goldenRatio) * time.Second
		time.Sleep(sleep)
	}
	return nil, fmt.Errorf("could not connect to database after %d retries", connectRetries)
}

// Close releases the underlying pool.
func (db *DB) Close() {
	db.Pool.Close()
}

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies every pending goose migration up to the latest version.
func (db *DB) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	stdDB := stdlib.OpenDBFromPool(db.Pool)
	defer stdDB.Close()
	return goose.UpContext(ctx, stdDB, "migrations")
}
