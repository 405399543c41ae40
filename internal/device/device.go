package device

import (
	"context"
	"time"

	"github.com/BioHazard786/sensorlink/internal/message"
)

// OrientationEvent is one raw orientation reading. Timestamp is measured on
// the source's own clock.
type OrientationEvent struct {
	Timestamp time.Duration
	Rotation  message.Rotation
}

// MotionEvent is one raw motion reading.
type MotionEvent struct {
	Timestamp                    time.Duration
	Acceleration                 message.Motion
	AccelerationIncludingGravity message.Motion
	RotationRate                 message.Rotation
}

// Handler consumes device events.
type Handler interface {
	HandleOrientation(OrientationEvent)
	HandleMotion(MotionEvent)
}

// Source produces device events until ctx is done or it runs out of input.
type Source interface {
	Run(ctx context.Context, h Handler) error
}
