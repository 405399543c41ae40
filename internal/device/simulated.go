package device

import (
	"context"
	"math"
	"time"

	"github.com/BioHazard786/sensorlink/internal/message"
)

const (
	DefaultRate = 60
	gravity     = 9.81
)

// Simulated emits a smooth synthetic motion: the device turns slowly around
// its vertical axis while rocking back and forth.
type Simulated struct {
	// Rate is the number of orientation and motion samples per second.
	Rate int

	// Count stops the source after that many sample pairs. Zero runs until
	// the context is done.
	Count int
}

func NewSimulated(rate int) *Simulated {
	if rate <= 0 {
		rate = DefaultRate
	}
	return &Simulated{Rate: rate}
}

func (s *Simulated) Run(ctx context.Context, h Handler) error {
	rate := s.Rate
	if rate <= 0 {
		rate = DefaultRate
	}

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	start := time.Now()
	for n := 0; s.Count == 0 || n < s.Count; n++ {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			ts := now.Sub(start)
			h.HandleOrientation(OrientationEvent{Timestamp: ts, Rotation: simulatedRotation(ts)})
			h.HandleMotion(simulatedMotion(ts))
		}
	}
	return nil
}

func simulatedRotation(ts time.Duration) message.Rotation {
	sec := ts.Seconds()
	return message.Rotation{
		Alpha: math.Mod(sec*36, 360),
		Beta:  45 * math.Sin(sec),
		Gamma: 30 * math.Cos(sec*0.7),
	}
}

func simulatedMotion(ts time.Duration) MotionEvent {
	sec := ts.Seconds()
	acc := message.Motion{
		X: 0.5 * math.Sin(sec*2),
		Y: 0.3 * math.Cos(sec*1.5),
		Z: 0.1 * math.Sin(sec*3),
	}
	return MotionEvent{
		Timestamp:                    ts,
		Acceleration:                 acc,
		AccelerationIncludingGravity: message.Motion{X: acc.X, Y: acc.Y, Z: acc.Z + gravity},
		RotationRate: message.Rotation{
			Alpha: 36,
			Beta:  45 * math.Cos(sec) * 180 / math.Pi,
			Gamma: -21 * math.Sin(sec*0.7) * 180 / math.Pi,
		},
	}
}
