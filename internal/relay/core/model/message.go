package model

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/fleethub-io/fleethub/internal/pkg/util"
)

// MessageType classifies a message on the exchange.
type MessageType string

const (
	MessageTypeStatus      MessageType = "STATUS"
	MessageTypeStatusError MessageType = "STATUS_ERROR"
	MessageTypeCommand     MessageType = "COMMAND"
)

// PayloadEncoding describes how the opaque payload data is encoded.
type PayloadEncoding string

const (
	EncodingJSON   PayloadEncoding = "JSON"
	EncodingBase64 PayloadEncoding = "BASE64"
)

var rolePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// DeviceID identifies a device inside a vehicle module. Identity for
// presence and lookup purposes is (ModuleID, Type, Role); Name is
// descriptive only and never participates in matching.
type DeviceID struct {
	ModuleID uint32 `json:"module_id"`
	Type     uint32 `json:"type"`
	Role     string `json:"role"`
	Name     string `json:"name"`
}

// NewDeviceID builds a validated DeviceID. It fails fast on pattern
// violations so invalid identities never reach the store.
func NewDeviceID(moduleID, deviceType uint32, role, name string) (DeviceID, error) {
	d := DeviceID{ModuleID: moduleID, Type: deviceType, Role: role, Name: name}
	if err := d.Validate(); err != nil {
		return DeviceID{}, err
	}
	return d, nil
}

// Validate checks the role pattern.
func (d DeviceID) Validate() error {
	if !rolePattern.MatchString(d.Role) {
		return fmt.Errorf("%w: device role %q must match %s", util.ErrInvalid, d.Role, rolePattern)
	}
	return nil
}

// String renders the identity triple plus name, e.g. "47/2/ignition (left)".
func (d DeviceID) String() string {
	return fmt.Sprintf("%d/%d/%s (%s)", d.ModuleID, d.Type, d.Role, d.Name)
}

// Payload carries the opaque application data of a message.
type Payload struct {
	Type     MessageType     `json:"message_type"`
	Encoding PayloadEncoding `json:"encoding"`
	Data     json.RawMessage `json:"data"`
}

// Validate checks the enum fields. Data stays opaque.
func (p Payload) Validate() error {
	switch p.Type {
	case MessageTypeStatus, MessageTypeStatusError, MessageTypeCommand:
	default:
		return fmt.Errorf("%w: unknown message type %q", util.ErrInvalid, p.Type)
	}
	switch p.Encoding {
	case EncodingJSON, EncodingBase64:
	default:
		return fmt.Errorf("%w: unknown payload encoding %q", util.ErrInvalid, p.Encoding)
	}
	return nil
}

// Message is one status or command on the exchange. Timestamp is in epoch
// milliseconds and is always assigned by the server at receipt time;
// client-supplied values are overwritten before storage.
type Message struct {
	Timestamp int64    `json:"timestamp"`
	DeviceID  DeviceID `json:"device_id"`
	Payload   Payload  `json:"payload"`
}

// Validate checks the device identity and payload of the message.
func (m Message) Validate() error {
	if err := m.DeviceID.Validate(); err != nil {
		return err
	}
	return m.Payload.Validate()
}

// Clone returns a deep copy of the message, including the payload bytes.
// Waiter fan-out hands every long-poll reader its own copy.
func (m Message) Clone() Message {
	out := m
	if m.Payload.Data != nil {
		out.Payload.Data = make(json.RawMessage, len(m.Payload.Data))
		copy(out.Payload.Data, m.Payload.Data)
	}
	return out
}

// CloneMessages deep-copies a batch.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
