package session

import (
	"github.com/BioHazard786/sensorlink/internal/device"
	"github.com/BioHazard786/sensorlink/internal/message"
)

var _ device.Handler = (*Session)(nil)

// HandleOrientation publishes every orientation sample while paired.
func (s *Session) HandleOrientation(ev device.OrientationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.canPublish() {
		return
	}
	s.publish(message.OrientationSensor{Orientation: ev.Rotation}, &s.stats.OrientationPublished)
}

// HandleMotion publishes motion samples while paired, at most one per
// MinMotionInterval of sample time.
func (s *Session) HandleMotion(ev device.MotionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.canPublish() {
		return
	}
	if !s.throttle.Allow(ev.Timestamp) {
		s.stats.MotionThrottled++
		return
	}
	s.publish(message.MotionSensor{
		Acceleration:                 ev.Acceleration,
		AccelerationIncludingGravity: ev.AccelerationIncludingGravity,
		RotationRate:                 ev.RotationRate,
	}, &s.stats.MotionPublished)
}

// Callers hold mu.
func (s *Session) canPublish() bool {
	if s.role != message.RoleSender {
		return false
	}
	if s.pairing != Paired || s.sub == nil {
		s.stats.SkippedUnpaired++
		return false
	}
	return true
}

// Callers hold mu.
func (s *Session) publish(msg message.Message, counter *int) {
	if err := s.sub.Publish(msg); err != nil {
		s.stats.PublishFailed++
		s.logger.Debug("publish failed", "kind", msg.Kind(), "err", err)
		return
	}
	*counter++
}
