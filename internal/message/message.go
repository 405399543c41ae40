package message

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the payloads exchanged on a sensor channel.
type Kind string

const (
	KindDiscovery   Kind = "discovery"
	KindOrientation Kind = "orientation_sensor"
	KindMotion      Kind = "motion_sensor"
)

// Role is the part a peer plays in a pairing session.
type Role string

const (
	RoleReceiver Role = "receiver"
	RoleSender   Role = "sender"
)

// Rotation holds device rotation angles in degrees.
type Rotation struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// Motion holds a three-axis reading.
type Motion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Message is one of Discovery, OrientationSensor or MotionSensor.
type Message interface {
	Kind() Kind
	isMessage()
}

// Discovery announces a peer during the pairing handshake.
type Discovery struct {
	Role Role `json:"role"`
}

// OrientationSensor carries one device orientation sample.
type OrientationSensor struct {
	Orientation Rotation `json:"orientation"`
}

// MotionSensor carries one device motion sample. Its fields always travel
// together.
type MotionSensor struct {
	Acceleration                 Motion   `json:"acceleration"`
	AccelerationIncludingGravity Motion   `json:"accelerationIncludingGravity"`
	RotationRate                 Rotation `json:"rotationRate"`
}

func (Discovery) Kind() Kind         { return KindDiscovery }
func (OrientationSensor) Kind() Kind { return KindOrientation }
func (MotionSensor) Kind() Kind      { return KindMotion }

func (Discovery) isMessage()         {}
func (OrientationSensor) isMessage() {}
func (MotionSensor) isMessage()      {}

func (m Discovery) MarshalJSON() ([]byte, error) {
	type plain Discovery
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		plain
	}{KindDiscovery, plain(m)})
}

func (m OrientationSensor) MarshalJSON() ([]byte, error) {
	type plain OrientationSensor
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		plain
	}{KindOrientation, plain(m)})
}

func (m MotionSensor) MarshalJSON() ([]byte, error) {
	type plain MotionSensor
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		plain
	}{KindMotion, plain(m)})
}

// Envelope is an inbound payload before classification. Kind and Role are
// kept raw so pairing can match on either of them; unknown extra fields are
// ignored and missing numeric fields read as zero.
type Envelope struct {
	Kind Kind `json:"kind"`
	Role Role `json:"role,omitempty"`

	Orientation                  Rotation `json:"orientation"`
	Acceleration                 Motion   `json:"acceleration"`
	AccelerationIncludingGravity Motion   `json:"accelerationIncludingGravity"`
	RotationRate                 Rotation `json:"rotationRate"`
}

// Decode parses a publication payload. Anything other than a JSON object
// with well-typed fields is an error.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &env, nil
}

// Tag is the part of a payload the pairing handshake looks at.
type Tag struct {
	Kind Kind
	Role Role
}

// DecodeTag reads only kind and role from a JSON object. A field that is
// missing or not a string reads as empty; the rest of the payload is not
// inspected.
func DecodeTag(data []byte) (Tag, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Tag{}, fmt.Errorf("decode message tag: %w", err)
	}
	return Tag{
		Kind: Kind(stringField(fields["kind"])),
		Role: Role(stringField(fields["role"])),
	}, nil
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// Message returns the variant named by Kind, or false for unknown kinds.
func (e *Envelope) Message() (Message, bool) {
	switch e.Kind {
	case KindDiscovery:
		return Discovery{Role: e.Role}, true
	case KindOrientation:
		return OrientationSensor{Orientation: e.Orientation}, true
	case KindMotion:
		return MotionSensor{
			Acceleration:                 e.Acceleration,
			AccelerationIncludingGravity: e.AccelerationIncludingGravity,
			RotationRate:                 e.RotationRate,
		}, true
	default:
		return nil, false
	}
}
