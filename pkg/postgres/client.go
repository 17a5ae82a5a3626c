// Package postgres wraps the report database connection. The backend treats
// PostgreSQL as optional: when the connection cannot be established at
// startup, report persistence is disabled and everything else keeps running.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/robertvmill/inference-backend/pkg/config"
)

// Client is an open connection pool to the report database.
type Client struct {
	DB *sql.DB
}

// New opens a pool with the configured limits and verifies connectivity with
// a bounded ping.
func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db}, nil
}

// Ping probes connectivity, for the readiness check.
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close releases the pool.
func (c *Client) Close() error {
	return c.DB.Close()
}
