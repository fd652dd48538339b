package status

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// State is the coarse device condition shown on the status light.
type State int

const (
	Idle State = iota
	Busy
	Success
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Busy:
		return "busy"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Indicator mirrors the device's two lights: a status color and a heartbeat
// pulse during long waits.
type Indicator interface {
	// Set switches the status light.
	Set(State)
	// HeartbeatWait idles for roughly d, pulsing the heartbeat once per
	// second, and returns early with ctx.Err() on cancellation.
	HeartbeatWait(ctx context.Context, d time.Duration) error
}

// Log reports state changes through the logger only. It is the fallback when
// the GPIO lights are disabled or fail to initialize.
type Log struct {
	logger *slog.Logger
	tick   time.Duration
}

var _ Indicator = (*Log)(nil)

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger, tick: time.Second}
}

func (l *Log) Set(s State) {
	l.logger.Debug("status", "state", s.String())
}

func (l *Log) HeartbeatWait(ctx context.Context, d time.Duration) error {
	l.Set(Idle)
	for i := 0; i < heartbeatTicks(d, l.tick); i++ {
		if err := sleepCtx(ctx, l.tick); err != nil {
			return err
		}
	}
	return nil
}

// heartbeatTicks rounds a wait into whole heartbeat periods, matching the
// device's per-second pulse loop. Waits under half a period round to none.
func heartbeatTicks(d, tick time.Duration) int {
	return int(math.Round(float64(d) / float64(tick)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
