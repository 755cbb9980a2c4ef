package model

import "encoding/json"

// Envelope is the minimal decode used to route an inbound frame before the
// concrete message is unmarshalled.
type Envelope struct {
	Type MessageType `json:"type"`
}

// PeekType extracts the discriminator from a raw frame.
func PeekType(data []byte) (MessageType, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	return env.Type, nil
}

type Identify struct {
	Type      MessageType `json:"type"`
	Identity  string      `json:"identity"`
	Secret    string      `json:"secret,omitempty"`
	Signature string      `json:"signature,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

type Identified struct {
	Type     MessageType    `json:"type"`
	Mode     string         `json:"mode"`
	Switches []SwitchConfig `json:"switches"`
}

type ConfigUpdate struct {
	Type     MessageType    `json:"type"`
	Switches []SwitchConfig `json:"switches"`
}

type SwitchCommand struct {
	Type MessageType `json:"type"`
	// Gpio is the logical actuator id. RelayGpio is an accepted legacy alias
	// sent by older dashboards; when set it wins.
	Gpio      int    `json:"gpio"`
	RelayGpio *int   `json:"relayGpio,omitempty"`
	State     bool   `json:"state"`
	Seq       uint64 `json:"seq"`
}

// ActuatorID resolves the legacy alias.
func (c SwitchCommand) ActuatorID() int {
	if c.RelayGpio != nil {
		return *c.RelayGpio
	}
	return c.Gpio
}

type BulkSwitchCommand struct {
	Type     MessageType     `json:"type"`
	Commands []SwitchCommand `json:"commands"`
}

// SwitchStatus is one actuator's reported state inside a state_update.
type SwitchStatus struct {
	Gpio           int  `json:"gpio"`
	State          bool `json:"state"`
	ManualOverride bool `json:"manual_override"`
}

type StateUpdate struct {
	Type     MessageType    `json:"type"`
	Switches []SwitchStatus `json:"switches"`
	Seq      uint64         `json:"seq"`
	Ts       int64          `json:"ts"`
	Sig      string         `json:"sig,omitempty"`
}

type StateAck struct {
	Type    MessageType `json:"type"`
	Changed bool        `json:"changed"`
}

type Heartbeat struct {
	Type        MessageType `json:"type"`
	Uptime      int64       `json:"uptime"`
	OfflineMode bool        `json:"offline_mode"`
}

type ManualSwitch struct {
	Type          MessageType `json:"type"`
	Gpio          int         `json:"gpio"`
	Action        string      `json:"action"`
	PreviousState bool        `json:"previousState"`
	NewState      bool        `json:"newState"`
	DetectedBy    ManualMode  `json:"detectedBy"`
	PhysicalPin   int         `json:"physicalPin"`
	Timestamp     int64       `json:"timestamp"`
	Sig           string      `json:"sig,omitempty"`
}

type SwitchResult struct {
	Type           MessageType `json:"type"`
	Gpio           int         `json:"gpio"`
	Success        bool        `json:"success"`
	RequestedState bool        `json:"requestedState"`
	ActualState    bool        `json:"actualState"`
	Reason         Reason      `json:"reason,omitempty"`
	Seq            uint64      `json:"seq"`
	Ts             int64       `json:"ts,omitempty"`
	Sig            string      `json:"sig,omitempty"`
}

type ErrorMessage struct {
	Type   MessageType `json:"type"`
	Reason Reason      `json:"reason"`
}
