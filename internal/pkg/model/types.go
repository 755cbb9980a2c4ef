package model

// MessageType discriminates every frame exchanged between agent and gateway.
type MessageType string

func (mt MessageType) String() string {
	return string(mt)
}

const (
	TypeIdentify          MessageType = "identify"
	TypeIdentified        MessageType = "identified"
	TypeConfigUpdate      MessageType = "config_update"
	TypeSwitchCommand     MessageType = "switch_command"
	TypeBulkSwitchCommand MessageType = "bulk_switch_command"
	TypeStateUpdate       MessageType = "state_update"
	TypeStateAck          MessageType = "state_ack"
	TypeHeartbeat         MessageType = "heartbeat"
	TypeManualSwitch      MessageType = "manual_switch"
	TypeSwitchResult      MessageType = "switch_result"
	TypeError             MessageType = "error"
)

// Reason codes carried by error frames and failed switch results.
type Reason string

func (r Reason) String() string {
	return string(r)
}

const (
	ReasonDeviceNotRegistered Reason = "device_not_registered"
	ReasonInvalidSecret       Reason = "invalid_or_missing_secret"
	ReasonUnknownGpio         Reason = "unknown_gpio"
	ReasonInvalidOutput       Reason = "invalid_output"
	ReasonStaleSeq            Reason = "stale_seq"
	ReasonQueueFull           Reason = "queue_full"
	ReasonRateLimited         Reason = "rate_limited"
	ReasonManualPriority      Reason = "manual_priority"
	ReasonNeverAutoOff        Reason = "never_auto_off"
	ReasonMalformedPayload    Reason = "malformed_payload"
)

// ManualMode controls how a physical input drives its actuator.
type ManualMode string

const (
	// ManualModeMaintained follows the physical switch position.
	ManualModeMaintained ManualMode = "maintained"
	// ManualModeMomentary toggles on the active edge of a push button.
	ManualModeMomentary ManualMode = "momentary"
)

// DeviceStatus is the connection status persisted on the device record.
type DeviceStatus string

const (
	DeviceOnline  DeviceStatus = "online"
	DeviceOffline DeviceStatus = "offline"
)

// CommandSource records where a hardware write originated.
type CommandSource string

const (
	SourceRemote       CommandSource = "remote"
	SourceManual       CommandSource = "manual"
	SourceNightRelease CommandSource = "night_release"
)
