package gateway

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/relaygate/internal/pkg/model"
)

// Registry holds the single live session per device identity and is the
// entry point for collaborators pushing switch intents.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	store    Store
	logger   *zap.Logger
}

func NewRegistry(store Store) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		store:    store,
		logger:   zap.L(),
	}
}

// Bind installs the session for an identity, replacing and closing any
// previous one. A device reconnect always wins.
func (r *Registry) Bind(identity string, s *Session) {
	r.mu.Lock()
	old := r.sessions[identity]
	r.sessions[identity] = s
	r.mu.Unlock()
	if old != nil && old != s {
		r.logger.Info("replacing stale session", zap.String("identity", identity))
		_ = old.conn.Close()
	}
}

// Unbind removes the session only if it is still the bound one.
func (r *Registry) Unbind(identity string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[identity] == s {
		delete(r.sessions, identity)
	}
}

func (r *Registry) Get(identity string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[identity]
	return s, ok
}

// Dispatch forwards a switch command to a connected device, or stores it as
// a queued intent for the next identify when the device is offline.
// Acceptance means forwarded, not applied: the switch_result has the final
// say over hardware state.
func (r *Registry) Dispatch(ctx context.Context, identity string, cmd model.SwitchCommand) error {
	if s, ok := r.Get(identity); ok {
		return s.SendCommand(cmd.ActuatorID(), cmd.State, cmd.Seq)
	}
	r.logger.Info("device offline, queueing intent",
		zap.String("identity", identity), zap.Int("gpio", cmd.ActuatorID()))
	return r.store.QueueIntent(ctx, identity, model.QueuedIntent{
		Gpio:     cmd.ActuatorID(),
		State:    cmd.State,
		QueuedAt: time.Now(),
	})
}

// DispatchBulk forwards each command independently; one stale entry does not
// stop the rest.
func (r *Registry) DispatchBulk(ctx context.Context, identity string, bulk model.BulkSwitchCommand) error {
	var firstErr error
	for _, cmd := range bulk.Commands {
		if err := r.Dispatch(ctx, identity, cmd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
