package status

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Pins names the GPIO lines the lights are wired to, in gpioreg notation
// ("GPIO17", "17", ...).
type Pins struct {
	Heartbeat string
	Red       string
	Green     string
	Blue      string
}

// LED drives a heartbeat LED plus an RGB status LED: busy shows yellow
// (red+green), success green, error red, idle dark.
type LED struct {
	logger    *slog.Logger
	heartbeat gpio.PinIO
	red       gpio.PinIO
	green     gpio.PinIO
	blue      gpio.PinIO

	tick    time.Duration
	onPhase time.Duration
}

var _ Indicator = (*LED)(nil)

func NewLED(pins Pins, logger *slog.Logger) (*LED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio host init: %w", err)
	}

	l := &LED{
		logger:  logger,
		tick:    time.Second,
		onPhase: 50 * time.Millisecond,
	}

	for _, p := range []struct {
		name string
		dst  *gpio.PinIO
	}{
		{pins.Heartbeat, &l.heartbeat},
		{pins.Red, &l.red},
		{pins.Green, &l.green},
		{pins.Blue, &l.blue},
	} {
		pin := gpioreg.ByName(p.name)
		if pin == nil {
			return nil, fmt.Errorf("no gpio pin named %q", p.name)
		}
		*p.dst = pin
	}

	l.Set(Idle)
	return l, nil
}

func (l *LED) Set(s State) {
	var red, green gpio.Level
	switch s {
	case Busy:
		red, green = gpio.High, gpio.High
	case Success:
		green = gpio.High
	case Error:
		red = gpio.High
	}
	l.drive(l.red, red)
	l.drive(l.green, green)
	l.drive(l.blue, gpio.Low)
}

func (l *LED) HeartbeatWait(ctx context.Context, d time.Duration) error {
	l.Set(Idle)
	for i := 0; i < heartbeatTicks(d, l.tick); i++ {
		l.drive(l.heartbeat, gpio.High)
		if err := sleepCtx(ctx, l.onPhase); err != nil {
			l.drive(l.heartbeat, gpio.Low)
			return err
		}
		l.drive(l.heartbeat, gpio.Low)
		if err := sleepCtx(ctx, l.tick-l.onPhase); err != nil {
			return err
		}
	}
	return nil
}

// drive swallows output errors; a failed light never stops the daemon.
func (l *LED) drive(pin gpio.PinIO, level gpio.Level) {
	if err := pin.Out(level); err != nil {
		l.logger.Debug("gpio write failed", "pin", pin.Name(), "error", err)
	}
}
