package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Spok95/campus-community/internal/ctxutil"
	"github.com/Spok95/campus-community/internal/metrics"
)

// Open opens the pool via the pgx stdlib driver and checks connectivity.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("open db: empty DATABASE_URL")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	database.SetMaxOpenConns(20)
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(30 * time.Minute)

	if err := Ping(ctx, database); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}

// Ping is used by /healthz; latency lands in the db ping histogram.
func Ping(ctx context.Context, database *sql.DB) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	start := time.Now()
	err := database.PingContext(ctx)
	metrics.ObserveDBPing(time.Since(start))
	if err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	return nil
}
