package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/relaygate/internal/pkg/model"
	"github.com/anicoll/relaygate/pkg/hasher"
)

// handleSwitchResult is the authoritative confirmation or failure of one
// command. The record is reconciled to the reported actual state in both
// cases so the UI never shows a value the hardware never reached.
func (s *Session) handleSwitchResult(ctx context.Context, msg model.SwitchResult, now time.Time) {
	s.mu.Lock()
	secret := s.secret
	identity := s.identity
	s.mu.Unlock()

	if !s.verifyResultSig(msg, secret, identity) {
		s.drop(model.TypeSwitchResult, model.ReasonInvalidSecret, zap.WarnLevel)
		return
	}

	if err := s.store.TouchLastSeen(ctx, identity, now); err != nil {
		s.logger.Error("last seen write failed", zap.Error(err))
	}

	if msg.Reason == model.ReasonStaleSeq {
		// both sides keep independent cursors; divergence is tolerated and
		// staleness is a harmless no-op, not a user-facing error
		s.logger.Debug("stale command result",
			zap.String("identity", identity), zap.Int("gpio", msg.Gpio), zap.Uint64("seq", msg.Seq))
		return
	}

	s.reconcile(ctx, identity, []model.SwitchStatus{{
		Gpio:  msg.Gpio,
		State: msg.ActualState,
	}}, model.SourceRemote, now)

	if !msg.Success {
		s.logger.Warn("switch command blocked",
			zap.String("identity", identity),
			zap.Int("gpio", msg.Gpio),
			zap.Bool("requested", msg.RequestedState),
			zap.Bool("actual", msg.ActualState),
			zap.String("reason", msg.Reason.String()))
		s.sink.BlockedToggle(ctx, model.BlockedToggle{
			Identity:  identity,
			Gpio:      msg.Gpio,
			Requested: msg.RequestedState,
			Actual:    msg.ActualState,
			Reason:    msg.Reason,
			At:        now,
		})
	}
}

func (s *Session) verifyResultSig(msg model.SwitchResult, secret, identity string) bool {
	if msg.Sig == "" {
		return !s.cfg.RequireSignature
	}
	if secret == "" {
		return !s.cfg.RequireSignature
	}
	outcome := "failure"
	if msg.Success {
		outcome = "success"
	}
	return hasher.VerifyFields(secret, msg.Sig,
		identity, fmt.Sprintf("%d", msg.Gpio), outcome,
		fmt.Sprintf("%d", msg.Seq), fmt.Sprintf("%d", msg.Ts))
}
