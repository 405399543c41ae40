package device

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/BioHazard786/sensorlink/internal/message"
)

// Recorded event names, as browsers report them.
const (
	EventOrientation = "deviceorientation"
	EventMotion      = "devicemotion"
)

// Record is one line of a recording. Timestamps are in milliseconds.
type Record struct {
	Event     string  `json:"event"`
	TimeStamp float64 `json:"timeStamp"`

	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`

	Acceleration                 message.Motion   `json:"acceleration"`
	AccelerationIncludingGravity message.Motion   `json:"accelerationIncludingGravity"`
	RotationRate                 message.Rotation `json:"rotationRate"`
}

func (r Record) timestamp() time.Duration {
	return time.Duration(r.TimeStamp * float64(time.Millisecond))
}

// Replay plays back device events recorded as JSON lines.
type Replay struct {
	r      io.Reader
	pace   bool
	logger *slog.Logger
}

// NewReplay reads records from r. With pace set, events are delivered at
// their recorded spacing; otherwise as fast as the handler accepts them.
func NewReplay(r io.Reader, pace bool) *Replay {
	return &Replay{r: r, pace: pace, logger: slog.Default().With("component", "replay")}
}

func (p *Replay) Run(ctx context.Context, h Handler) error {
	scanner := bufio.NewScanner(p.r)

	var (
		start time.Time
		first time.Duration
		seen  bool
		line  int
	)

	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("replay line %d: %w", line, err)
		}
		ts := rec.timestamp()

		if p.pace {
			if !seen {
				start, first, seen = time.Now(), ts, true
			}
			if err := sleepUntil(ctx, start.Add(ts-first)); err != nil {
				return nil
			}
		} else if ctx.Err() != nil {
			return nil
		}

		switch rec.Event {
		case EventOrientation:
			h.HandleOrientation(OrientationEvent{
				Timestamp: ts,
				Rotation:  message.Rotation{Alpha: rec.Alpha, Beta: rec.Beta, Gamma: rec.Gamma},
			})
		case EventMotion:
			h.HandleMotion(MotionEvent{
				Timestamp:                    ts,
				Acceleration:                 rec.Acceleration,
				AccelerationIncludingGravity: rec.AccelerationIncludingGravity,
				RotationRate:                 rec.RotationRate,
			})
		default:
			p.logger.Debug("skipping unknown event", "line", line, "event", rec.Event)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	return nil
}

func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
