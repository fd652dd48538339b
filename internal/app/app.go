package app

import (
	"context"
	"log/slog"

	"github.com/CedarGroveStudios/AIO-Weather-Repeater/internal/aio"
	"github.com/CedarGroveStudios/AIO-Weather-Repeater/internal/config"
	"github.com/CedarGroveStudios/AIO-Weather-Repeater/internal/netlink"
	"github.com/CedarGroveStudios/AIO-Weather-Repeater/internal/status"
)

func Run(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()

	slog.Info("initializing repeater",
		"broker", cfg.BrokerHost,
		"broker_port", cfg.BrokerPort,
		"client_id", cfg.ClientID,
		"topic_key", cfg.WeatherTopicKey,
		"station", cfg.StationDesc,
	)

	client := aio.NewClient(cfg, logger)
	defer client.Disconnect()

	r := New(cfg, newConnector(cfg, logger), client, newIndicator(cfg, logger), logger)
	return r.Run(ctx)
}

// newIndicator prefers the GPIO lights and falls back to log-only state
// reporting when they are disabled or absent.
func newIndicator(cfg config.Config, logger *slog.Logger) status.Indicator {
	if !cfg.LEDEnabled {
		return status.NewLog(logger)
	}

	led, err := status.NewLED(status.Pins{
		Heartbeat: cfg.HeartbeatPin,
		Red:       cfg.RedPin,
		Green:     cfg.GreenPin,
		Blue:      cfg.BluePin,
	}, logger)
	if err != nil {
		logger.Warn("status LEDs could not be initialized; continuing without lights", "error", err)
		return status.NewLog(logger)
	}
	return led
}

// newConnector picks Wi-Fi association when an SSID is configured and a
// broker reachability probe otherwise.
func newConnector(cfg config.Config, logger *slog.Logger) netlink.Connector {
	if cfg.WiFiSSID != "" {
		return netlink.NewWiFi(cfg.WiFiSSID, cfg.WiFiPassword, logger)
	}
	return netlink.NewProbe(cfg.BrokerAddr(), logger)
}
