package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/CedarGroveStudios/AIO-Weather-Repeater/internal/config"
	"github.com/CedarGroveStudios/AIO-Weather-Repeater/internal/netlink"
	"github.com/CedarGroveStudios/AIO-Weather-Repeater/internal/status"
	"github.com/CedarGroveStudios/AIO-Weather-Repeater/internal/weather"
)

// The eight outbound feeds, in publish order. Dashboards depend on the set
// and the names; the order keeps the watchdog freshest.
const (
	feedWatchdog      = "system-watchdog"
	feedDescription   = "weather-description"
	feedHumidity      = "weather-humidity"
	feedTemperature   = "weather-temperature"
	feedWindDirection = "weather-winddirection"
	feedWindGusts     = "weather-windgusts"
	feedWindSpeed     = "weather-windspeed"
	feedDaylight      = "weather-daylight"
)

// weatherFeedID identifies the inbound observation feed.
const weatherFeedID = "weather"

// Transport is the broker session the loop drives; *aio.Client implements it.
type Transport interface {
	Connect(ctx context.Context) error
	SetMessageHandler(handler func(feedID string, payload []byte))
	SubscribeWeather(ctx context.Context, key int, mode string) error
	Service(ctx context.Context, window time.Duration) error
	Publish(ctx context.Context, feed string, value any) error
	Reconnect(ctx context.Context) error
}

// Timing carries the loop's fixed delays. The daemon always runs
// DefaultTiming; tests scale it down.
type Timing struct {
	PreService     time.Duration // settle time before each receive window
	ServiceWindow  time.Duration // how long to drain inbound traffic
	ReconnectDelay time.Duration // pause before a reconnect attempt
	PrePublish     time.Duration // throttle ahead of every publish
	FirstPoll      time.Duration // poll interval before the first observation
	CycleWait      time.Duration // idle between steady-state cycles
	RestartDelay   time.Duration // grace period before a forced restart
}

func DefaultTiming() Timing {
	return Timing{
		PreService:     2500 * time.Millisecond,
		ServiceWindow:  10 * time.Second,
		ReconnectDelay: 10 * time.Second,
		PrePublish:     2500 * time.Millisecond,
		FirstPoll:      10 * time.Second,
		CycleWait:      120 * time.Second,
		RestartDelay:   60 * time.Second,
	}
}

// Repeater owns the startup sequence and the steady receive/publish loop.
type Repeater struct {
	cfg       config.Config
	link      netlink.Connector
	transport Transport
	cache     *weather.Cache
	indicator status.Indicator
	timing    Timing
	logger    *slog.Logger

	// restart replaces the process image; swapped out in tests.
	restart func() error
	started time.Time
}

func New(cfg config.Config, link netlink.Connector, transport Transport, indicator status.Indicator, logger *slog.Logger) *Repeater {
	return &Repeater{
		cfg:       cfg,
		link:      link,
		transport: transport,
		cache:     weather.NewCache(),
		indicator: indicator,
		timing:    DefaultTiming(),
		logger:    logger,
		restart:   Restart,
		started:   time.Now(),
	}
}

// Run brings the bridge up and services it until ctx is canceled or an
// unrecoverable failure forces a restart.
func (r *Repeater) Run(ctx context.Context) error {
	if err := r.startup(ctx); err != nil {
		return err
	}
	for {
		if err := r.cycle(ctx); err != nil {
			return err
		}
	}
}

// startup runs once: link, broker session, weather subscription. Any failure
// here means the device cannot do its job and a restart is the cleanest
// recovery.
func (r *Repeater) startup(ctx context.Context) error {
	r.indicator.Set(status.Busy)

	if err := r.link.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Error("network link failed", "error", err)
		return r.fatal(ctx, err)
	}
	r.indicator.Set(status.Success)

	if err := r.transport.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Error("broker connect failed", "error", err)
		return r.fatal(ctx, err)
	}

	r.transport.SetMessageHandler(r.handleMessage)

	if err := r.transport.SubscribeWeather(ctx, r.cfg.WeatherTopicKey, config.TopicMode); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Error("weather subscription failed", "key", r.cfg.WeatherTopicKey, "error", err)
		return r.fatal(ctx, err)
	}

	r.indicator.Set(status.Success)
	return nil
}

// handleMessage runs on Service's goroutine during the receive window.
func (r *Repeater) handleMessage(feedID string, payload []byte) {
	if feedID != weatherFeedID {
		r.logger.Debug("ignoring message", "feed", feedID)
		return
	}

	obs, err := weather.DecodeObservation(payload)
	if err != nil {
		r.logger.Warn("undecodable observation dropped", "error", err)
		return
	}
	r.cache.SetCurrent(obs)
}

// cycle is one pass of the steady loop: receive, publish if the observation
// changed, idle.
func (r *Repeater) cycle(ctx context.Context) error {
	r.indicator.Set(status.Busy)

	if err := sleepCtx(ctx, r.timing.PreService); err != nil {
		return err
	}

	if err := r.transport.Service(ctx, r.timing.ServiceWindow); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.indicator.Set(status.Error)
		r.logger.Error("receive window failed", "error", err)

		if err := sleepCtx(ctx, r.timing.ReconnectDelay); err != nil {
			return err
		}
		if rerr := r.transport.Reconnect(ctx); rerr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("reconnect failed", "error", rerr)
			return r.fatal(ctx, rerr)
		}
		r.logger.Info("reconnected after receive failure")
	}
	r.indicator.Set(status.Success)

	obs, ok := r.cache.Current()
	if !ok {
		r.logger.Info("waiting for weather observations", "station", r.cfg.StationDesc)
		return r.indicator.HeartbeatWait(ctx, r.timing.FirstPoll)
	}

	if r.cache.Changed() {
		if err := r.publishObservation(ctx, obs); err != nil {
			return err
		}
		r.cache.Commit()
	}

	return r.indicator.HeartbeatWait(ctx, r.timing.CycleWait)
}

func (r *Repeater) publishObservation(ctx context.Context, obs weather.Observation) error {
	derived, known := weather.Derive(obs)
	if !known {
		r.logger.Warn("unknown condition code", "condition", obs.ConditionCode)
	}
	r.logObservation(obs, derived)

	values := []struct {
		feed  string
		value any
	}{
		{feedWatchdog, r.watchdogMinutes()},
		{feedDescription, derived.ConditionCode},
		{feedHumidity, derived.HumidityPct},
		{feedTemperature, derived.TemperatureF},
		{feedWindDirection, derived.WindCompass},
		{feedWindGusts, derived.WindGustMPH},
		{feedWindSpeed, derived.WindSpeedMPH},
		{feedDaylight, derived.Daylight},
	}

	for _, v := range values {
		if err := r.publishValue(ctx, v.feed, v.value); err != nil {
			return err
		}
	}
	return nil
}

// publishValue runs the throttled publish protocol for one feed value.
func (r *Repeater) publishValue(ctx context.Context, feed string, value any) error {
	if value == nil {
		r.logger.Error("skipping publish of empty value", "feed", feed)
		return nil
	}

	if err := sleepCtx(ctx, r.timing.PrePublish); err != nil {
		return err
	}

	if err := r.transport.Publish(ctx, feed, value); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.indicator.Set(status.Error)
		r.logger.Error("publish failed", "feed", feed, "error", err)

		if rerr := r.transport.Reconnect(ctx); rerr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("reconnect failed", "error", rerr)
			return r.fatal(ctx, rerr)
		}

		// The failed value is not retried; the next one goes out on the
		// restored session.
		r.indicator.Set(status.Success)
		r.logger.Info("reconnected after publish failure", "feed", feed)
		return nil
	}

	r.indicator.Set(status.Success)
	r.logger.Info("published", "feed", feed, "value", value)
	return nil
}

// logObservation emits the new-observation block the station has always
// printed on change.
func (r *Repeater) logObservation(obs weather.Observation, derived weather.Derived) {
	attrs := []any{
		"read_time", obs.Metadata.ReadTime,
		"condition", derived.ConditionCode,
		"description", derived.Description,
		"icon", derived.Icon,
	}
	if sample, err := obs.SampleTime(); err == nil {
		attrs = append(attrs,
			"sample_time", sample.Format(time.RFC3339),
			"local_time", weather.LocalTime(sample).Format(time.RFC3339),
		)
	} else {
		r.logger.Warn("unparseable observation time", "error", err)
	}
	r.logger.Info("new observation", attrs...)
}

// fatal is the last-resort path: wait out the grace period, then replace the
// process image. It returns only when the restart could not happen.
func (r *Repeater) fatal(ctx context.Context, cause error) error {
	r.indicator.Set(status.Error)
	r.logger.Error("unrecoverable failure, restarting", "error", cause, "delay", r.timing.RestartDelay)

	if err := r.indicator.HeartbeatWait(ctx, r.timing.RestartDelay); err != nil {
		return err
	}
	if err := r.restart(); err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	return fmt.Errorf("restarting after unrecoverable failure: %w", cause)
}

// watchdogMinutes is the process uptime in whole minutes, published so the
// dashboard can tell a wedged bridge from a quiet one.
func (r *Repeater) watchdogMinutes() int {
	return int(math.Round(time.Since(r.started).Minutes()))
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
