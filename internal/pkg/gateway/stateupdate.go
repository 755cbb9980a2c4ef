package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/relaygate/internal/pkg/model"
	"github.com/anicoll/relaygate/pkg/hasher"
)

// handleStateUpdate reconciles a reported hardware snapshot into the device
// record. Flooding, out-of-order and badly signed updates are discarded
// without touching the record.
func (s *Session) handleStateUpdate(ctx context.Context, msg model.StateUpdate, now time.Time) {
	if !s.limiter.Allow(now) {
		s.drop(model.TypeStateUpdate, model.ReasonRateLimited, zap.DebugLevel)
		return
	}

	s.mu.Lock()
	if msg.Seq <= s.lastInSeq {
		s.mu.Unlock()
		s.drop(model.TypeStateUpdate, model.ReasonStaleSeq, zap.DebugLevel)
		return
	}
	secret := s.secret
	identity := s.identity
	s.mu.Unlock()

	if !s.verifyStateSig(msg, secret, identity) {
		s.drop(model.TypeStateUpdate, model.ReasonInvalidSecret, zap.WarnLevel)
		return
	}

	// the cursor only advances for verified frames; a forged high seq must
	// not starve later genuine updates
	s.mu.Lock()
	if msg.Seq <= s.lastInSeq {
		s.mu.Unlock()
		s.drop(model.TypeStateUpdate, model.ReasonStaleSeq, zap.DebugLevel)
		return
	}
	s.lastInSeq = msg.Seq
	first := s.firstReport
	s.firstReport = false
	s.mu.Unlock()

	if err := s.store.TouchLastSeen(ctx, identity, now); err != nil {
		s.logger.Error("last seen write failed", zap.Error(err))
	}

	changed := s.reconcile(ctx, identity, msg.Switches, model.SourceRemote, now)
	// the first report always moves the record from unknown to known
	changed = changed || first

	_ = s.sendJSON(model.StateAck{Type: model.TypeStateAck, Changed: changed})
}

func (s *Session) verifyStateSig(msg model.StateUpdate, secret, identity string) bool {
	if msg.Sig == "" {
		return !s.cfg.RequireSignature
	}
	if secret == "" {
		// hashed secret on file, cannot verify; accept unless strict
		return !s.cfg.RequireSignature
	}
	return hasher.VerifyFields(secret, msg.Sig,
		identity, fmt.Sprintf("%d", msg.Seq), fmt.Sprintf("%d", msg.Ts))
}

// reconcile merges reported actuator states into the cached record and the
// store. Actuators absent from the device's configuration are ignored.
// The stored state is only ever a hardware-confirmed value.
func (s *Session) reconcile(ctx context.Context, identity string, reported []model.SwitchStatus, origin model.CommandSource, now time.Time) bool {
	s.mu.Lock()
	record := s.record
	s.mu.Unlock()
	if record == nil {
		return false
	}

	changed := false
	for _, status := range reported {
		sc := record.SwitchByGpio(status.Gpio)
		if sc == nil {
			s.logger.Debug("state for unknown actuator ignored", zap.Int("gpio", status.Gpio))
			continue
		}
		if sc.State == status.State {
			continue
		}
		sc.State = status.State
		changed = true
		s.sink.StateChanged(ctx, model.ChangeEvent{
			Identity:       identity,
			Gpio:           status.Gpio,
			Name:           sc.Name,
			State:          status.State,
			ManualOverride: status.ManualOverride,
			Origin:         origin,
			At:             now,
		})
	}
	if changed {
		if err := s.store.SaveSwitches(ctx, identity, record.Switches); err != nil {
			s.logger.Error("switch state write failed", zap.Error(err))
		}
	}
	return changed
}
