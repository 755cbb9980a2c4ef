package database

import (
	"context"

	"github.com/anicoll/relaygate/internal/pkg/model"
)

func (db *Database) QueueIntent(ctx context.Context, identity string, intent model.QueuedIntent) error {
	_, err := db.conn.Exec(ctx, `
		INSERT INTO QueuedIntent (identity, gpio, state, queued_at)
		VALUES ($1, $2, $3, $4);`, identity, intent.Gpio, intent.State, intent.QueuedAt)
	return err
}

// TakeQueuedIntents drains and returns a device's queued intents in FIFO
// order, atomically, so a flush never sends an intent twice.
func (db *Database) TakeQueuedIntents(ctx context.Context, identity string) ([]model.QueuedIntent, error) {
	tx, err := db.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT gpio, state, queued_at FROM QueuedIntent
		WHERE identity = $1 ORDER BY id;`, identity)
	if err != nil {
		return nil, err
	}

	var intents []model.QueuedIntent
	for rows.Next() {
		var intent model.QueuedIntent
		if err := rows.Scan(&intent.Gpio, &intent.State, &intent.QueuedAt); err != nil {
			rows.Close()
			return nil, err
		}
		intents = append(intents, intent)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM QueuedIntent WHERE identity = $1;`, identity); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return intents, nil
}
