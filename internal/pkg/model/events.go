package model

import "time"

// ChangeEvent is emitted whenever reconciliation lands a hardware-confirmed
// state on the device record.
type ChangeEvent struct {
	Identity       string        `json:"identity"`
	Gpio           int           `json:"gpio"`
	Name           string        `json:"name"`
	State          bool          `json:"state"`
	ManualOverride bool          `json:"manual_override"`
	Origin         CommandSource `json:"origin"`
	At             time.Time     `json:"at"`
}

// BlockedToggle is emitted when a device reports that a commanded switch did
// not reach the requested state.
type BlockedToggle struct {
	Identity  string    `json:"identity"`
	Gpio      int       `json:"gpio"`
	Requested bool      `json:"requested"`
	Actual    bool      `json:"actual"`
	Reason    Reason    `json:"reason"`
	At        time.Time `json:"at"`
}
