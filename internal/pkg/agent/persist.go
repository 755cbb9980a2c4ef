package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// PersistedSwitch is the last-known logical state of one actuator. It is
// informational only: boot always forces every output OFF regardless of what
// was saved.
type PersistedSwitch struct {
	State          bool `json:"state"`
	ManualOverride bool `json:"manualOverride"`
}

// PersistedState is the on-disk snapshot that survives a restart.
type PersistedState struct {
	Switches  map[int]PersistedSwitch `json:"switches"`
	Pending   map[int]PendingCommand  `json:"pending"`
	RecentOff map[int]time.Time       `json:"recentOff,omitempty"`
	SavedAt   time.Time               `json:"savedAt"`
}

// StateStore persists the agent snapshot across reboots.
type StateStore interface {
	Save(state PersistedState) error
	Load() (PersistedState, error)
}

// FileStore writes the snapshot as JSON with an atomic rename.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Save(state PersistedState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Load() (PersistedState, error) {
	state := PersistedState{
		Switches: make(map[int]PersistedSwitch),
		Pending:  make(map[int]PendingCommand),
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return state, nil
		}
		return state, err
	}
	if err := json.Unmarshal(data, &state); err != nil {
		// a corrupt snapshot must not prevent a safe boot
		return PersistedState{
			Switches: make(map[int]PersistedSwitch),
			Pending:  make(map[int]PendingCommand),
		}, fmt.Errorf("corrupt state file %s: %w", f.path, err)
	}
	if state.Switches == nil {
		state.Switches = make(map[int]PersistedSwitch)
	}
	if state.Pending == nil {
		state.Pending = make(map[int]PendingCommand)
	}
	return state, nil
}
