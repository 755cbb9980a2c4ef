package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/relaygate/internal/pkg/model"
)

func TestReconciler_MarkStaleOffline(t *testing.T) {
	store := newFakeStore()
	store.stale = []string{"greenhouse-01", "barn-02"}
	sink := &fakeSink{}
	r := NewReconciler(store, sink, NewRegistry(store), 2*time.Minute)

	require.NoError(t, r.MarkStaleOffline(context.Background()))

	assert.Equal(t, model.DeviceOffline, store.statuses["greenhouse-01"])
	assert.Equal(t, model.DeviceOffline, store.statuses["barn-02"])
	assert.Equal(t, []model.DeviceStatus{model.DeviceOffline, model.DeviceOffline}, sink.statuses)
}

func TestReconciler_NoStaleDevices(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{}
	r := NewReconciler(store, sink, NewRegistry(store), 2*time.Minute)

	require.NoError(t, r.MarkStaleOffline(context.Background()))
	assert.Empty(t, store.statuses)
	assert.Empty(t, sink.statuses)
}
