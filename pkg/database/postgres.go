package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	Pool *pgxpool.Pool
}

// NewPostgresDB creates a new PostgreSQL connection pool
func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30
	config.HealthCheckPeriod = time.Minute
	config.ConnConfig.ConnectTimeout = time.Second * 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *PostgresDB) Close() error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	return nil
}

// Health checks the database connection
func (db *PostgresDB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Schema creates the battle tables. Option and vote state live in JSONB
// columns next to a denormalized total used for trending order.
const Schema = `
CREATE TABLE IF NOT EXISTS battles (
	seq         BIGSERIAL,
	battle_id   TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	options     JSONB NOT NULL,
	votes       JSONB NOT NULL DEFAULT '{}'::jsonb,
	theme       JSONB,
	total_votes INTEGER NOT NULL DEFAULT 0,
	version     BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_battles_seq ON battles (seq DESC);
CREATE INDEX IF NOT EXISTS idx_battles_total ON battles (total_votes DESC, seq DESC);

CREATE TABLE IF NOT EXISTS battle_comments (
	id          TEXT PRIMARY KEY,
	battle_id   TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	nickname    TEXT NOT NULL,
	team        TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_battle_comments_battle ON battle_comments (battle_id, created_at DESC);

CREATE TABLE IF NOT EXISTS battle_reactions (
	id          TEXT PRIMARY KEY,
	battle_id   TEXT NOT NULL,
	option_id   TEXT NOT NULL DEFAULT '',
	fingerprint TEXT NOT NULL,
	type        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// DropSchema removes every battle table
const DropSchema = `
DROP TABLE IF EXISTS battle_reactions;
DROP TABLE IF EXISTS battle_comments;
DROP TABLE IF EXISTS battles;
`

// Migrate applies Schema
func (db *PostgresDB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Drop removes every battle table
func (db *PostgresDB) Drop(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, DropSchema); err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	return nil
}
