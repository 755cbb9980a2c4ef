package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/relaygate/internal/pkg/model"
)

// handleManualSwitch audits a physical operation verbatim and reconciles the
// record when the reported state differs from what is stored.
func (s *Session) handleManualSwitch(ctx context.Context, msg model.ManualSwitch, now time.Time) {
	s.mu.Lock()
	identity := s.identity
	s.mu.Unlock()

	if err := s.store.TouchLastSeen(ctx, identity, now); err != nil {
		s.logger.Error("last seen write failed", zap.Error(err))
	}
	if err := s.store.InsertManualEvent(ctx, identity, msg); err != nil {
		s.logger.Error("manual event audit failed", zap.Error(err))
	}
	s.sink.ManualEvent(ctx, identity, msg)

	s.reconcile(ctx, identity, []model.SwitchStatus{{
		Gpio:           msg.Gpio,
		State:          msg.NewState,
		ManualOverride: true,
	}}, model.SourceManual, now)

	s.logger.Info("manual switch",
		zap.String("identity", identity),
		zap.Int("gpio", msg.Gpio),
		zap.String("action", msg.Action),
		zap.String("detected_by", string(msg.DetectedBy)))
}

// handleHeartbeat refreshes liveness.
func (s *Session) handleHeartbeat(ctx context.Context, msg model.Heartbeat, now time.Time) {
	s.mu.Lock()
	identity := s.identity
	s.mu.Unlock()

	if err := s.store.TouchLastSeen(ctx, identity, now); err != nil {
		s.logger.Error("last seen write failed", zap.Error(err))
	}
	s.logger.Debug("heartbeat",
		zap.String("identity", identity),
		zap.Int64("uptime", msg.Uptime),
		zap.Bool("offline_mode", msg.OfflineMode))
}
