package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anicoll/relaygate/internal/pkg/model"
	"github.com/gosimple/slug"
)

func (s *service) PublishChange(ctx context.Context, ev model.ChangeEvent) error {
	topic := fmt.Sprintf("%s/%s/switch/%d/state", s.topicPrefix, slug.Make(ev.Identity), ev.Gpio)

	payload := map[string]any{
		"name":            ev.Name,
		"state":           stateWord(ev.State),
		"manual_override": ev.ManualOverride,
		"origin":          string(ev.Origin),
		"timestamp":       ev.At.UTC().Format(time.RFC3339),
	}
	return s.publish(topic, payload, 0, true)
}

func (s *service) PublishBlocked(ctx context.Context, ev model.BlockedToggle) error {
	topic := fmt.Sprintf("%s/%s/switch/%d/blocked", s.topicPrefix, slug.Make(ev.Identity), ev.Gpio)

	payload := map[string]any{
		"requested": stateWord(ev.Requested),
		"actual":    stateWord(ev.Actual),
		"reason":    string(ev.Reason),
		"timestamp": ev.At.UTC().Format(time.RFC3339),
	}
	return s.publish(topic, payload, 0, false)
}

func (s *service) PublishStatus(ctx context.Context, identity string, status model.DeviceStatus) error {
	topic := fmt.Sprintf("%s/%s/status", s.topicPrefix, slug.Make(identity))

	payload := map[string]any{
		"status":    string(status),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	return s.publish(topic, payload, 1, true)
}

func (s *service) PublishManual(ctx context.Context, identity string, ev model.ManualSwitch) error {
	topic := fmt.Sprintf("%s/%s/switch/%d/manual", s.topicPrefix, slug.Make(identity), ev.Gpio)

	payload := map[string]any{
		"action":         ev.Action,
		"previous_state": stateWord(ev.PreviousState),
		"new_state":      stateWord(ev.NewState),
		"detected_by":    ev.DetectedBy,
		"physical_pin":   ev.PhysicalPin,
		"timestamp":      ev.Timestamp,
	}
	return s.publish(topic, payload, 0, false)
}

func (s *service) publish(topic string, payload map[string]any, qos byte, retain bool) error {
	publishData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	token := s.client.Publish(topic, qos, retain, publishData)
	res := token.WaitTimeout(time.Second * 10)
	if res {
		return nil
	}
	if err := token.Error(); err != nil {
		return err
	}
	return nil
}

func stateWord(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
