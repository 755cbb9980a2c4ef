package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type Database struct {
	conn *pgx.Conn
}

func NewDatabase(ctx context.Context, conn *pgx.Conn) *Database {
	initialise(ctx, conn)
	return &Database{
		conn: conn,
	}
}

func initialise(ctx context.Context, conn *pgx.Conn) {
	const createTablesSQL = `
CREATE TABLE IF NOT EXISTS Device (
    identity TEXT PRIMARY KEY,
    secret TEXT NOT NULL,
    switches JSONB NOT NULL DEFAULT '[]',
    status TEXT NOT NULL DEFAULT 'offline',
    is_identified BOOLEAN NOT NULL DEFAULT FALSE,
    last_seen TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS QueuedIntent (
    id SERIAL PRIMARY KEY,
    identity TEXT NOT NULL,
    gpio INT NOT NULL,
    state BOOLEAN NOT NULL,
    queued_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE TABLE IF NOT EXISTS ManualEvent (
    id SERIAL PRIMARY KEY,
    identity TEXT NOT NULL,
    gpio INT NOT NULL,
    action TEXT NOT NULL,
    previous_state BOOLEAN NOT NULL,
    new_state BOOLEAN NOT NULL,
    detected_by TEXT NOT NULL,
    physical_pin INT NOT NULL,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE TABLE IF NOT EXISTS StateChange (
    id SERIAL PRIMARY KEY,
    identity TEXT NOT NULL,
    gpio INT NOT NULL,
    name TEXT NOT NULL,
    state BOOLEAN NOT NULL,
    manual_override BOOLEAN NOT NULL,
    origin TEXT NOT NULL,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queuedintent_identity ON QueuedIntent (identity);
CREATE INDEX IF NOT EXISTS idx_manualevent_identity ON ManualEvent (identity);
CREATE INDEX IF NOT EXISTS idx_statechange_identity ON StateChange (identity);
CREATE INDEX IF NOT EXISTS idx_statechange_occurred ON StateChange (occurred_at);
`
	if _, err := conn.Exec(ctx, createTablesSQL); err != nil {
		panic(err)
	}
}

func (db *Database) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close(context.Background())
}
