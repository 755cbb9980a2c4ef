package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeekType(t *testing.T) {
	tests := map[string]struct {
		frame    string
		expected MessageType
		wantErr  bool
	}{
		"identify":             {`{"type":"identify","identity":"gh-01"}`, TypeIdentify, false},
		"switch command":       {`{"type":"switch_command","gpio":17,"state":true,"seq":1}`, TypeSwitchCommand, false},
		"missing discriminator": {`{"gpio":17}`, "", false},
		"not json":             {`{`, "", true},
		"wrong shape":          {`[1,2,3]`, "", true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			mt, err := PeekType([]byte(tc.frame))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, mt)
		})
	}
}

func TestSwitchCommand_ActuatorID(t *testing.T) {
	relay := 23
	tests := map[string]struct {
		cmd      SwitchCommand
		expected int
	}{
		"plain gpio":       {SwitchCommand{Gpio: 17}, 17},
		"legacy alias wins": {SwitchCommand{Gpio: 17, RelayGpio: &relay}, 23},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.cmd.ActuatorID())
		})
	}
}

func TestSwitchCommand_LegacyAliasDecodes(t *testing.T) {
	var cmd SwitchCommand
	require.NoError(t, json.Unmarshal([]byte(`{"type":"switch_command","gpio":99,"relayGpio":17,"state":true,"seq":2}`), &cmd))
	assert.Equal(t, 17, cmd.ActuatorID())
	assert.True(t, cmd.State)
	assert.Equal(t, uint64(2), cmd.Seq)
}

func TestSwitchConfig_OutputGpio(t *testing.T) {
	relay := 23
	assert.Equal(t, 17, SwitchConfig{Gpio: 17}.OutputGpio())
	assert.Equal(t, 23, SwitchConfig{Gpio: 17, RelayGpio: &relay}.OutputGpio())
}

func TestDeviceRecord_SwitchByGpio(t *testing.T) {
	relay := 23
	record := &DeviceRecord{Switches: []SwitchConfig{
		{Gpio: 17, Name: "pump"},
		{Gpio: 6, RelayGpio: &relay, Name: "vent"},
	}}

	require.NotNil(t, record.SwitchByGpio(17))
	assert.Equal(t, "pump", record.SwitchByGpio(17).Name)
	require.NotNil(t, record.SwitchByGpio(23), "resolved via the alias")
	assert.Nil(t, record.SwitchByGpio(6), "the raw gpio of an aliased switch does not resolve")
	assert.Nil(t, record.SwitchByGpio(99))

	// the pointer aliases the slice, reconciliation mutates in place
	record.SwitchByGpio(17).State = true
	assert.True(t, record.Switches[0].State)
}

func TestStateUpdate_WireFormat(t *testing.T) {
	raw := `{"type":"state_update","switches":[{"gpio":17,"state":true,"manual_override":false}],"seq":3,"ts":1700000000000,"sig":"abc"}`
	var msg StateUpdate
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	assert.Equal(t, uint64(3), msg.Seq)
	require.Len(t, msg.Switches, 1)
	assert.True(t, msg.Switches[0].State)
	assert.False(t, msg.Switches[0].ManualOverride)
}
