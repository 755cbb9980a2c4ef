package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/anicoll/relaygate/internal/pkg/model"
	"go.uber.org/zap"
)

var errAlreadyRegistered = errors.New("publisher already registered")

var (
	registeredPublishers = make(map[string]publisher)
	lastStates           sync.Map
)

type publisher interface {
	// PublishChange publishes a confirmed actuator state change.
	PublishChange(ctx context.Context, ev model.ChangeEvent) error
	PublishBlocked(ctx context.Context, ev model.BlockedToggle) error
	PublishStatus(ctx context.Context, identity string, status model.DeviceStatus) error
	PublishManual(ctx context.Context, identity string, ev model.ManualSwitch) error
}

func RegisterPublisher(name string, publisher publisher) error {
	if _, ok := registeredPublishers[name]; ok {
		return errAlreadyRegistered
	}
	registeredPublishers[name] = publisher
	return nil
}

// Hub fans gateway events out to every registered publisher. Repeated
// identical states for the same actuator are suppressed so adapters only
// see transitions.
type Hub struct{}

func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) StateChanged(ctx context.Context, ev model.ChangeEvent) {
	if !shouldUpdate(ev.Identity, ev.Gpio, ev.State, ev.ManualOverride) {
		return
	}
	for name, publisher := range registeredPublishers {
		if err := publisher.PublishChange(ctx, ev); err != nil {
			zap.L().Error("failed to publish state change", zap.Error(err), zap.String("publisher", name))
			continue
		}
		zap.L().Debug("published state change",
			zap.String("publisher", name),
			zap.String("identity", ev.Identity),
			zap.Int("gpio", ev.Gpio),
			zap.Bool("state", ev.State))
	}
}

func (h *Hub) BlockedToggle(ctx context.Context, ev model.BlockedToggle) {
	for name, publisher := range registeredPublishers {
		if err := publisher.PublishBlocked(ctx, ev); err != nil {
			zap.L().Error("failed to publish blocked toggle", zap.Error(err), zap.String("publisher", name))
		}
	}
}

func (h *Hub) DeviceStatus(ctx context.Context, identity string, status model.DeviceStatus) {
	for name, publisher := range registeredPublishers {
		if err := publisher.PublishStatus(ctx, identity, status); err != nil {
			zap.L().Error("failed to publish device status", zap.Error(err), zap.String("publisher", name))
			continue
		}
		zap.L().Debug("published device status",
			zap.String("publisher", name),
			zap.String("identity", identity),
			zap.String("status", string(status)))
	}
}

func (h *Hub) ManualEvent(ctx context.Context, identity string, ev model.ManualSwitch) {
	for name, publisher := range registeredPublishers {
		if err := publisher.PublishManual(ctx, identity, ev); err != nil {
			zap.L().Error("failed to publish manual event", zap.Error(err), zap.String("publisher", name))
		}
	}
}

func shouldUpdate(identity string, gpio int, state, override bool) bool {
	key := fmt.Sprintf("%s_%d", identity, gpio)
	newValue := fmt.Sprintf("%t_%t", state, override)
	oldValue, exists := lastStates.Load(key)
	if exists && oldValue.(string) == newValue {
		return false
	}
	if !exists {
		zap.L().Info("tracking actuator", zap.String("identity", identity), zap.Int("gpio", gpio), zap.Bool("state", state))
	}
	lastStates.Store(key, newValue)
	return true
}
