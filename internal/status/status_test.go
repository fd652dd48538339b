package status

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{state: Idle, want: "idle"},
		{state: Busy, want: "busy"},
		{state: Success, want: "success"},
		{state: Error, want: "error"},
		{state: State(42), want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeartbeatTicks(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		tick time.Duration
		want int
	}{
		{name: "ten seconds", d: 10 * time.Second, tick: time.Second, want: 10},
		{name: "two minutes", d: 120 * time.Second, tick: time.Second, want: 120},
		{name: "sub-period rounds away", d: 400 * time.Millisecond, tick: time.Second, want: 0},
		{name: "rounds up past half", d: 1600 * time.Millisecond, tick: time.Second, want: 2},
		{name: "scaled tick", d: 50 * time.Millisecond, tick: 10 * time.Millisecond, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := heartbeatTicks(tt.d, tt.tick); got != tt.want {
				t.Errorf("heartbeatTicks(%v, %v) = %d, want %d", tt.d, tt.tick, got, tt.want)
			}
		})
	}
}

func TestLogHeartbeatWait(t *testing.T) {
	l := NewLog(slog.Default())
	l.tick = time.Millisecond

	if err := l.HeartbeatWait(context.Background(), 5*time.Millisecond); err != nil {
		t.Errorf("HeartbeatWait() error = %v, want nil", err)
	}
}

func TestLogHeartbeatWait_Canceled(t *testing.T) {
	l := NewLog(slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.HeartbeatWait(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("HeartbeatWait() error = %v, want context.Canceled", err)
	}
}

func TestLogHeartbeatWait_ZeroDuration(t *testing.T) {
	l := NewLog(slog.Default())

	start := time.Now()
	if err := l.HeartbeatWait(context.Background(), 0); err != nil {
		t.Errorf("HeartbeatWait() error = %v, want nil", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("HeartbeatWait(0) took %v, want immediate return", elapsed)
	}
}
