package gateway

import (
	"context"
	"time"

	"github.com/anicoll/relaygate/internal/pkg/model"
)

// Store is the slice of the device storage layer the gateway consumes.
// GetDevice returns (nil, nil) for an unknown identity.
type Store interface {
	GetDevice(ctx context.Context, identity string) (*model.DeviceRecord, error)
	SaveSwitches(ctx context.Context, identity string, switches []model.SwitchConfig) error
	SetStatus(ctx context.Context, identity string, status model.DeviceStatus, identified bool) error
	TouchLastSeen(ctx context.Context, identity string, at time.Time) error
	QueueIntent(ctx context.Context, identity string, intent model.QueuedIntent) error
	TakeQueuedIntents(ctx context.Context, identity string) ([]model.QueuedIntent, error)
	ListStale(ctx context.Context, olderThan time.Time) ([]string, error)
	InsertManualEvent(ctx context.Context, identity string, ev model.ManualSwitch) error
}

// EventSink fans reconciliation outcomes out to the registered collaborators.
type EventSink interface {
	StateChanged(ctx context.Context, ev model.ChangeEvent)
	BlockedToggle(ctx context.Context, ev model.BlockedToggle)
	DeviceStatus(ctx context.Context, identity string, status model.DeviceStatus)
	ManualEvent(ctx context.Context, identity string, ev model.ManualSwitch)
}
