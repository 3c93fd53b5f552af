package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleethub-io/fleethub/internal/pkg/util"
)

func validMessage() Message {
	return Message{
		DeviceID: DeviceID{ModuleID: 7, Type: 8, Role: "ignition", Name: "Ignition Sensor"},
		Payload: Payload{
			Type:     MessageTypeStatus,
			Encoding: EncodingJSON,
			Data:     json.RawMessage(`{"state":"on"}`),
		},
	}
}

func TestDeviceIDValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DeviceID)
		wantErr bool
	}{
		{"valid", func(d *DeviceID) {}, false},
		{"empty role", func(d *DeviceID) { d.Role = "" }, true},
		{"role with uppercase", func(d *DeviceID) { d.Role = "Ignition" }, true},
		{"role with dash", func(d *DeviceID) { d.Role = "door-lock" }, true},
		{"role with underscore and digits", func(d *DeviceID) { d.Role = "door_lock_2" }, false},
		{"name is free-form", func(d *DeviceID) { d.Name = "Gâteau Sensor #1" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := validMessage().DeviceID
			tt.mutate(&id)

			err := id.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, util.ErrInvalid))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Message)
		wantErr bool
	}{
		{"valid status", func(m *Message) {}, false},
		{"valid status error", func(m *Message) { m.Payload.Type = MessageTypeStatusError }, false},
		{"valid command", func(m *Message) { m.Payload.Type = MessageTypeCommand }, false},
		{"unknown type", func(m *Message) { m.Payload.Type = "TELEMETRY" }, true},
		{"empty type", func(m *Message) { m.Payload.Type = "" }, true},
		{"unknown encoding", func(m *Message) { m.Payload.Encoding = "HEX" }, true},
		{"base64 encoding", func(m *Message) { m.Payload.Encoding = EncodingBase64 }, false},
		{"bad role propagates", func(m *Message) { m.DeviceID.Role = "NOPE" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMessage()
			tt.mutate(&m)

			err := m.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, util.ErrInvalid))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMessageClone(t *testing.T) {
	orig := validMessage()
	orig.Timestamp = 42

	clone := orig.Clone()
	require.Equal(t, orig, clone)

	// Mutating the clone's payload must not leak into the original.
	clone.Payload.Data[0] = 'X'
	assert.Equal(t, json.RawMessage(`{"state":"on"}`), orig.Payload.Data)
}

func TestCloneMessages(t *testing.T) {
	batch := []Message{validMessage(), validMessage()}
	batch[1].DeviceID.Role = "battery"

	clone := CloneMessages(batch)
	require.Equal(t, batch, clone)

	clone[0].Payload.Data[0] = 'X'
	assert.Equal(t, json.RawMessage(`{"state":"on"}`), batch[0].Payload.Data)

	assert.Nil(t, CloneMessages(nil))
}

func TestNewCar(t *testing.T) {
	tests := []struct {
		name    string
		company string
		car     string
		wantErr bool
	}{
		{"valid", "acme", "truck1", false},
		{"digits and underscore", "acme_2", "truck_01", false},
		{"empty company", "", "truck1", true},
		{"empty car", "acme", "", true},
		{"uppercase company", "Acme", "truck1", true},
		{"slash in car", "acme", "truck/1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			car, err := NewCar(tt.company, tt.car)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, util.ErrInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.company, car.Company)
			assert.Equal(t, tt.car, car.Name)
		})
	}
}
