package session

import (
	"time"

	"github.com/BioHazard786/sensorlink/internal/message"
)

type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

type PairingState int

const (
	Pairing PairingState = iota
	Paired
)

func (s PairingState) String() string {
	switch s {
	case Pairing:
		return "pairing"
	case Paired:
		return "paired"
	default:
		return "unknown"
	}
}

// Snapshot is the latest sensor reading held by a receiver.
type Snapshot struct {
	Orientation                  message.Rotation
	Acceleration                 message.Motion
	AccelerationIncludingGravity message.Motion
	RotationRate                 message.Rotation
}

// View is what a renderer needs to draw a session.
type View struct {
	Role            message.Role
	ConnectionState ConnectionState
	PairingState    PairingState
	LocalID         string
	RemoteID        string
	Latency         time.Duration
	ShareReference  string
	Snapshot        Snapshot
}

// Stats counts outbound sensor traffic on a sender.
type Stats struct {
	OrientationPublished int
	MotionPublished      int
	MotionThrottled      int
	SkippedUnpaired      int
	PublishFailed        int
}
