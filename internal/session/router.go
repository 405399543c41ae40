package session

import "github.com/BioHazard786/sensorlink/internal/message"

// route applies a sensor message to the receiver's snapshot. Callers hold mu.
func (s *Session) route(env *message.Envelope) {
	if s.role != message.RoleReceiver {
		return
	}

	msg, ok := env.Message()
	if !ok {
		s.logger.Debug("dropping unknown message", "kind", env.Kind)
		return
	}

	switch m := msg.(type) {
	case message.OrientationSensor:
		s.snapshot.Orientation = m.Orientation
	case message.MotionSensor:
		s.snapshot.Acceleration = m.Acceleration
		s.snapshot.AccelerationIncludingGravity = m.AccelerationIncludingGravity
		s.snapshot.RotationRate = m.RotationRate
	default:
		s.logger.Debug("ignoring message after pairing", "kind", msg.Kind())
		return
	}

	s.scheduler.RequestUpdate()
}
