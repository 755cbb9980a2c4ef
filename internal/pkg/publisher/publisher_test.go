package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/relaygate/internal/pkg/model"
)

type capturingPublisher struct {
	mu       sync.Mutex
	changes  []model.ChangeEvent
	blocked  []model.BlockedToggle
	statuses []model.DeviceStatus
	manual   []model.ManualSwitch
	err      error
}

func (c *capturingPublisher) PublishChange(ctx context.Context, ev model.ChangeEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, ev)
	return c.err
}

func (c *capturingPublisher) PublishBlocked(ctx context.Context, ev model.BlockedToggle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocked = append(c.blocked, ev)
	return c.err
}

func (c *capturingPublisher) PublishStatus(ctx context.Context, identity string, status model.DeviceStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, status)
	return c.err
}

func (c *capturingPublisher) PublishManual(ctx context.Context, identity string, ev model.ManualSwitch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manual = append(c.manual, ev)
	return c.err
}

func changeEvent(identity string, gpio int, state bool) model.ChangeEvent {
	return model.ChangeEvent{
		Identity: identity,
		Gpio:     gpio,
		Name:     "pump",
		State:    state,
		Origin:   model.SourceRemote,
		At:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRegisterPublisher_DuplicateRejected(t *testing.T) {
	p := &capturingPublisher{}
	require.NoError(t, RegisterPublisher("dup-test", p))
	assert.ErrorIs(t, RegisterPublisher("dup-test", p), errAlreadyRegistered)
}

func TestHub_StateChangedFansOut(t *testing.T) {
	p := &capturingPublisher{}
	require.NoError(t, RegisterPublisher("fanout-test", p))
	hub := NewHub()

	hub.StateChanged(context.Background(), changeEvent("fanout-dev", 17, true))
	require.Len(t, p.changes, 1)
	assert.Equal(t, 17, p.changes[0].Gpio)
	assert.True(t, p.changes[0].State)
}

func TestHub_RepeatedStateSuppressed(t *testing.T) {
	p := &capturingPublisher{}
	require.NoError(t, RegisterPublisher("dedupe-test", p))
	hub := NewHub()

	hub.StateChanged(context.Background(), changeEvent("dedupe-dev", 17, true))
	hub.StateChanged(context.Background(), changeEvent("dedupe-dev", 17, true))
	assert.Len(t, p.changes, 1, "identical repeat is suppressed")

	hub.StateChanged(context.Background(), changeEvent("dedupe-dev", 17, false))
	assert.Len(t, p.changes, 2, "a transition always goes through")

	hub.StateChanged(context.Background(), changeEvent("dedupe-dev", 27, false))
	assert.Len(t, p.changes, 3, "tracking is per actuator")

	hub.StateChanged(context.Background(), changeEvent("other-dev", 27, false))
	assert.Len(t, p.changes, 4, "and per device")
}

func TestHub_PublisherErrorDoesNotStopFanout(t *testing.T) {
	failing := &capturingPublisher{err: errors.New("broker down")}
	healthy := &capturingPublisher{}
	require.NoError(t, RegisterPublisher("failing-test", failing))
	require.NoError(t, RegisterPublisher("healthy-test", healthy))
	hub := NewHub()

	hub.StateChanged(context.Background(), changeEvent("error-dev", 17, true))
	hub.DeviceStatus(context.Background(), "error-dev", model.DeviceOffline)

	assert.NotEmpty(t, healthy.changes)
	assert.NotEmpty(t, healthy.statuses)
}

func TestHub_BlockedAndManualPassThrough(t *testing.T) {
	p := &capturingPublisher{}
	require.NoError(t, RegisterPublisher("events-test", p))
	hub := NewHub()

	hub.BlockedToggle(context.Background(), model.BlockedToggle{
		Identity: "events-dev", Gpio: 17, Requested: false, Actual: true,
		Reason: model.ReasonManualPriority,
	})
	hub.BlockedToggle(context.Background(), model.BlockedToggle{
		Identity: "events-dev", Gpio: 17, Requested: false, Actual: true,
		Reason: model.ReasonManualPriority,
	})
	assert.GreaterOrEqual(t, len(p.blocked), 2, "blocked toggles are never deduped")

	hub.ManualEvent(context.Background(), "events-dev", model.ManualSwitch{Gpio: 17, Action: "on"})
	assert.Len(t, p.manual, 1)
}
