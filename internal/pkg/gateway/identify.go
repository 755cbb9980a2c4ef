package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/relaygate/internal/pkg/model"
	"github.com/anicoll/relaygate/pkg/hasher"
)

// handleIdentify authenticates the device and binds the session. On success
// the device receives the authoritative configuration and the server-known
// switch snapshot, then any intents queued while it was offline.
func (s *Session) handleIdentify(ctx context.Context, msg model.Identify, now time.Time) {
	record, err := s.store.GetDevice(ctx, msg.Identity)
	if err != nil {
		s.logger.Error("device lookup failed", zap.String("identity", msg.Identity), zap.Error(err))
		return
	}
	if record == nil {
		s.logger.Warn("identify from unregistered device", zap.String("identity", msg.Identity))
		_ = s.sendJSON(model.ErrorMessage{Type: model.TypeError, Reason: model.ReasonDeviceNotRegistered})
		return
	}

	if !s.authenticate(msg, record) {
		if !s.cfg.InsecureMode {
			s.logger.Warn("identify rejected, bad secret", zap.String("identity", msg.Identity))
			_ = s.sendJSON(model.ErrorMessage{Type: model.TypeError, Reason: model.ReasonInvalidSecret})
			return
		}
		s.logger.Warn("insecure mode, accepting identify with bad secret",
			zap.String("identity", msg.Identity))
	}

	s.mu.Lock()
	s.identity = record.Identity
	s.secret = plainSecret(record.Secret)
	s.identified = true
	s.cursors.Reset()
	s.lastInSeq = 0
	s.firstReport = true
	s.record = record
	s.mu.Unlock()

	s.registry.Bind(record.Identity, s)

	if err := s.store.SetStatus(ctx, record.Identity, model.DeviceOnline, true); err != nil {
		s.logger.Error("online status write failed", zap.Error(err))
	}
	if err := s.store.TouchLastSeen(ctx, record.Identity, now); err != nil {
		s.logger.Error("last seen write failed", zap.Error(err))
	}
	s.sink.DeviceStatus(ctx, record.Identity, model.DeviceOnline)

	mode := "secure"
	if s.cfg.InsecureMode {
		mode = "insecure"
	}
	_ = s.sendJSON(model.Identified{
		Type:     model.TypeIdentified,
		Mode:     mode,
		Switches: record.Switches,
	})
	_ = s.sendJSON(model.ConfigUpdate{
		Type:     model.TypeConfigUpdate,
		Switches: record.Switches,
	})

	s.flushIntents(ctx, record.Identity)
	s.logger.Info("device identified",
		zap.String("identity", record.Identity),
		zap.Int("switches", len(record.Switches)))
}

func (s *Session) authenticate(msg model.Identify, record *model.DeviceRecord) bool {
	if msg.Signature != "" {
		if key := plainSecret(record.Secret); key != "" {
			return hasher.VerifyFields(key, msg.Signature,
				msg.Identity, fmt.Sprintf("%d", msg.Timestamp))
		}
	}
	if msg.Secret == "" {
		return false
	}
	return secretMatches(msg.Secret, record.Secret)
}

// flushIntents forwards every intent stored while the device was offline as
// a freshly sequenced command.
func (s *Session) flushIntents(ctx context.Context, identity string) {
	intents, err := s.store.TakeQueuedIntents(ctx, identity)
	if err != nil {
		s.logger.Error("intent flush failed", zap.Error(err))
		return
	}
	for _, intent := range intents {
		if err := s.SendCommand(intent.Gpio, intent.State, 0); err != nil {
			s.logger.Warn("queued intent dropped",
				zap.Int("gpio", intent.Gpio), zap.Error(err))
		}
	}
	if len(intents) > 0 {
		s.logger.Info("flushed queued intents",
			zap.String("identity", identity), zap.Int("count", len(intents)))
	}
}
