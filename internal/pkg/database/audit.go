package database

import (
	"context"
	"time"

	"github.com/anicoll/relaygate/internal/pkg/model"
)

// InsertManualEvent stores a physical-operation report verbatim for audit.
func (db *Database) InsertManualEvent(ctx context.Context, identity string, ev model.ManualSwitch) error {
	_, err := db.conn.Exec(ctx, `
		INSERT INTO ManualEvent (identity, gpio, action, previous_state, new_state, detected_by, physical_pin, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`,
		identity, ev.Gpio, ev.Action, ev.PreviousState, ev.NewState,
		string(ev.DetectedBy), ev.PhysicalPin, time.UnixMilli(ev.Timestamp))
	return err
}

// InsertStateChanges records reconciled state transitions for history.
func (db *Database) InsertStateChanges(ctx context.Context, events []model.ChangeEvent) error {
	tx, err := db.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, ev := range events {
		if _, err := tx.Exec(ctx, `
			INSERT INTO StateChange (identity, gpio, name, state, manual_override, origin, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7);`,
			ev.Identity, ev.Gpio, ev.Name, ev.State, ev.ManualOverride, string(ev.Origin), ev.At); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
