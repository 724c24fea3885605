package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/thanosan23/StockSim/internal/config"
)

// Connect opens the Postgres pool and verifies it with a ping.
func Connect(cfg *config.PostgresConfig) (*sqlx.DB, error) {
	database, err := sqlx.Connect("postgres", cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("can't connect to postgres: %w", err)
	}

	database.SetMaxOpenConns(25)
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(5 * time.Minute)

	return database, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            SERIAL PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    profit        DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS positions (
    id             SERIAL PRIMARY KEY,
    user_id        INT NOT NULL REFERENCES users (id),
    symbol         TEXT NOT NULL,
    shares         INT NOT NULL CHECK (shares > 0),
    purchase_price DOUBLE PRECISION NOT NULL CHECK (purchase_price > 0),
    purchased_at   TIMESTAMPTZ NOT NULL,
    UNIQUE (user_id, symbol, purchased_at)
);

CREATE TABLE IF NOT EXISTS trades (
    id             SERIAL PRIMARY KEY,
    user_id        INT NOT NULL REFERENCES users (id),
    symbol         TEXT NOT NULL,
    trade_type     TEXT NOT NULL,
    quantity       INT NOT NULL,
    price          DOUBLE PRECISION NOT NULL,
    realized_delta DOUBLE PRECISION NOT NULL DEFAULT 0,
    request_id     UUID UNIQUE,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema applies the DDL. Every statement is idempotent so it is safe
// to run on each start.
func EnsureSchema(ctx context.Context, database *sqlx.DB) error {
	if _, err := database.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("can't apply schema: %w", err)
	}
	return nil
}
