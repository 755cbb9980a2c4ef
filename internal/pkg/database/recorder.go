package database

import (
	"context"

	"github.com/anicoll/relaygate/internal/pkg/model"
)

// Recorder adapts the database to the publisher interface so confirmed
// state changes land in the StateChange audit table alongside any
// external adapters.
type Recorder struct {
	db *Database
}

func NewRecorder(db *Database) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) PublishChange(ctx context.Context, ev model.ChangeEvent) error {
	return r.db.InsertStateChanges(ctx, []model.ChangeEvent{ev})
}

// PublishBlocked is a no-op; blocked toggles are logged by the gateway and
// surfaced to external adapters only.
func (r *Recorder) PublishBlocked(ctx context.Context, ev model.BlockedToggle) error {
	return nil
}

// PublishStatus is a no-op; device status is already persisted on the
// Device row by the session lifecycle.
func (r *Recorder) PublishStatus(ctx context.Context, identity string, status model.DeviceStatus) error {
	return nil
}

// PublishManual is a no-op; manual events are written to the audit table
// directly when the frame is handled.
func (r *Recorder) PublishManual(ctx context.Context, identity string, ev model.ManualSwitch) error {
	return nil
}
