package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/relaygate/internal/pkg/model"
)

func TestRegistry_DispatchToConnectedDevice(t *testing.T) {
	s, conn, store, _ := newTestSession(t, testGatewayConfig())
	identify(t, s)

	err := s.registry.Dispatch(context.Background(), testIdentity, model.SwitchCommand{
		Type:  model.TypeSwitchCommand,
		Gpio:  17,
		State: true,
	})
	require.NoError(t, err)

	commands := conn.framesOfType(t, model.TypeSwitchCommand)
	require.Len(t, commands, 1)
	var cmd model.SwitchCommand
	require.NoError(t, json.Unmarshal(commands[0], &cmd))
	assert.Equal(t, uint64(1), cmd.Seq, "gateway-originated commands get a sequence")
	assert.Empty(t, store.intents[testIdentity])
}

func TestRegistry_DispatchQueuesWhenOffline(t *testing.T) {
	store := newFakeStore()
	registry := NewRegistry(store)

	err := registry.Dispatch(context.Background(), testIdentity, model.SwitchCommand{
		Gpio:  17,
		State: true,
	})
	require.NoError(t, err)

	intents := store.intents[testIdentity]
	require.Len(t, intents, 1)
	assert.Equal(t, 17, intents[0].Gpio)
	assert.True(t, intents[0].State)
	assert.WithinDuration(t, time.Now(), intents[0].QueuedAt, time.Minute)
}

func TestRegistry_BindReplacesStaleSession(t *testing.T) {
	store := newFakeStore()
	store.devices[testIdentity] = testRecord()
	sink := &fakeSink{}
	registry := NewRegistry(store)

	oldConn := newFakeWsConn()
	old := NewSession(oldConn, testGatewayConfig(), store, sink, registry)
	registry.Bind(testIdentity, old)

	newConn := newFakeWsConn()
	current := NewSession(newConn, testGatewayConfig(), store, sink, registry)
	registry.Bind(testIdentity, current)

	assert.True(t, oldConn.closed, "the reconnect wins, the stale socket dies")
	bound, ok := registry.Get(testIdentity)
	require.True(t, ok)
	assert.Same(t, current, bound)

	// the stale session's teardown must not evict the new one
	registry.Unbind(testIdentity, old)
	_, ok = registry.Get(testIdentity)
	assert.True(t, ok)
}

func TestRegistry_DispatchBulkContinuesPastStale(t *testing.T) {
	s, conn, _, _ := newTestSession(t, testGatewayConfig())
	identify(t, s)

	require.NoError(t, s.SendCommand(17, true, 5))

	err := s.registry.DispatchBulk(context.Background(), testIdentity, model.BulkSwitchCommand{
		Type: model.TypeBulkSwitchCommand,
		Commands: []model.SwitchCommand{
			{Gpio: 17, State: false, Seq: 5}, // stale
			{Gpio: 27, State: true, Seq: 1},
		},
	})
	assert.Error(t, err, "the stale entry is reported")

	commands := conn.framesOfType(t, model.TypeSwitchCommand)
	assert.Len(t, commands, 2, "the rest of the batch still went out")
}
