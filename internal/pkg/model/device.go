package model

import "time"

// SwitchConfig is the full per-actuator configuration. It is replaced
// wholesale by a config_update and never partially patched.
type SwitchConfig struct {
	Gpio                int        `json:"gpio"`
	RelayGpio           *int       `json:"relayGpio,omitempty"`
	Name                string     `json:"name"`
	RelayActiveLow      bool       `json:"relayActiveLow"`
	ManualSwitchGpio    int        `json:"manualSwitchGpio"`
	ManualSwitchEnabled bool       `json:"manualSwitchEnabled"`
	ManualMode          ManualMode `json:"manualMode"`
	ManualActiveLow     bool       `json:"manualActiveLow"`
	NeverAutoOff        bool       `json:"neverAutoOff"`
	State               bool       `json:"state"`
}

// OutputGpio resolves the legacy relayGpio alias.
func (sc SwitchConfig) OutputGpio() int {
	if sc.RelayGpio != nil {
		return *sc.RelayGpio
	}
	return sc.Gpio
}

// QueuedIntent is a desired switch state accumulated while the device was
// offline, flushed as sequenced commands on the next identify.
type QueuedIntent struct {
	Gpio     int       `json:"gpio"`
	State    bool      `json:"state"`
	QueuedAt time.Time `json:"queuedAt"`
}

// DeviceRecord is the authoritative backend copy of a device. Switch state in
// the record is only ever the last hardware-confirmed value reconciled from a
// switch_result or state_update.
type DeviceRecord struct {
	Identity string `json:"identity"`
	// Secret is the shared HMAC key material; deployments that refuse to
	// store it in the clear may hold a bcrypt hash instead, at the cost of
	// signature verification.
	Secret        string         `json:"secret"`
	Switches      []SwitchConfig `json:"switches"`
	QueuedIntents []QueuedIntent `json:"queuedIntents"`
	Status        DeviceStatus   `json:"status"`
	IsIdentified  bool           `json:"isIdentified"`
	LastSeen      time.Time      `json:"lastSeen"`
}

// SwitchByGpio returns a pointer into Switches for the given actuator id, or
// nil when the id is not part of the device's configuration.
func (d *DeviceRecord) SwitchByGpio(gpio int) *SwitchConfig {
	for i := range d.Switches {
		if d.Switches[i].OutputGpio() == gpio {
			return &d.Switches[i]
		}
	}
	return nil
}
