package database

import (
	"context"
	"time"
)

// Cleanup prunes state-change history older than a week and queued intents
// past the intent TTL.
func (db *Database) Cleanup(ctx context.Context) error {
	if _, err := db.conn.Exec(ctx,
		"DELETE FROM StateChange WHERE occurred_at < $1", time.Now().AddDate(0, 0, -8)); err != nil {
		return err
	}
	if _, err := db.conn.Exec(ctx,
		"DELETE FROM QueuedIntent WHERE queued_at < $1", time.Now().Add(-12*time.Hour)); err != nil {
		return err
	}
	return nil
}
