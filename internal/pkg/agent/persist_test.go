package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "state.json"))

	saved := PersistedState{
		Switches: map[int]PersistedSwitch{
			17: {State: true, ManualOverride: true},
			27: {State: false},
		},
		Pending: map[int]PendingCommand{
			17: {Gpio: 17, State: true, EnqueuedAt: time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)},
		},
		RecentOff: map[int]time.Time{
			27: time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC),
		},
		SavedAt: time.Date(2026, 3, 1, 23, 5, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(saved))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, saved.Switches, loaded.Switches)
	assert.Equal(t, saved.Pending, loaded.Pending)
	assert.Equal(t, saved.RecentOff, loaded.RecentOff)
	assert.True(t, saved.SavedAt.Equal(loaded.SavedAt))
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded.Switches)
	assert.Empty(t, loaded.Pending)
}

func TestFileStore_CorruptFileBootsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewFileStore(path)
	loaded, err := store.Load()
	assert.Error(t, err, "corruption is reported")
	assert.Empty(t, loaded.Switches, "but the snapshot is usable and empty")
	assert.Empty(t, loaded.Pending)
}

func TestFileStore_SaveOverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStore(path)

	require.NoError(t, store.Save(PersistedState{
		Switches: map[int]PersistedSwitch{17: {State: true}},
	}))
	require.NoError(t, store.Save(PersistedState{
		Switches: map[int]PersistedSwitch{17: {State: false}},
	}))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.False(t, loaded.Switches[17].State)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}
