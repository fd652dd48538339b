package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
)

// TopicMode is the slice of the weather feed this device consumes. Forecast
// modes exist upstream but the repeater only mirrors current conditions.
const TopicMode = "current"

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	WiFiSSID     string
	WiFiPassword string

	AIOUsername string
	AIOKey      string

	BrokerHost string
	BrokerPort int
	BrokerTLS  bool
	ClientID   string

	WeatherTopicKey  int
	StationDesc      string
	PublishPerMinute int

	LEDEnabled   bool
	HeartbeatPin string
	RedPin       string
	GreenPin     string
	BluePin      string
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	wifiSSID := strings.TrimSpace(os.Getenv("WIFI_SSID"))
	wifiPassword := strings.TrimSpace(os.Getenv("WIFI_PASSWORD"))

	aioUsername := strings.TrimSpace(os.Getenv("AIO_USERNAME"))
	if aioUsername == "" {
		return Config{}, fmt.Errorf("AIO_USERNAME is required")
	}

	aioKey := strings.TrimSpace(os.Getenv("AIO_KEY"))
	if aioKey == "" {
		return Config{}, fmt.Errorf("AIO_KEY is required")
	}

	brokerHost := strings.TrimSpace(os.Getenv("BROKER_HOST"))
	if brokerHost == "" {
		brokerHost = "io.adafruit.com"
	}

	brokerPortStr := strings.TrimSpace(os.Getenv("BROKER_PORT"))
	if brokerPortStr == "" {
		brokerPortStr = "8883"
	}
	brokerPort, err := strconv.Atoi(brokerPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BROKER_PORT %q: %w", brokerPortStr, err)
	}

	brokerTLSStr := strings.TrimSpace(os.Getenv("BROKER_TLS"))
	if brokerTLSStr == "" {
		brokerTLSStr = "true"
	}
	brokerTLS, err := strconv.ParseBool(brokerTLSStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BROKER_TLS %q: %w", brokerTLSStr, err)
	}

	clientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if clientID == "" {
		clientID = "weather-repeater"
	}

	topicKeyStr := strings.TrimSpace(os.Getenv("WEATHER_TOPIC_KEY"))
	if topicKeyStr == "" {
		topicKeyStr = "2730"
	}
	topicKey, err := strconv.Atoi(topicKeyStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid WEATHER_TOPIC_KEY %q: %w", topicKeyStr, err)
	}

	stationDesc := strings.TrimSpace(os.Getenv("WEATHER_STATION_DESC"))
	if stationDesc == "" {
		stationDesc = "Seattle, WA"
	}

	publishPerMinuteStr := strings.TrimSpace(os.Getenv("AIO_PUBLISH_PER_MINUTE"))
	if publishPerMinuteStr == "" {
		publishPerMinuteStr = "30"
	}
	publishPerMinute, err := strconv.Atoi(publishPerMinuteStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid AIO_PUBLISH_PER_MINUTE %q: %w", publishPerMinuteStr, err)
	}
	if publishPerMinute <= 0 {
		return Config{}, fmt.Errorf("AIO_PUBLISH_PER_MINUTE must be positive, got %d", publishPerMinute)
	}

	ledEnabledStr := strings.TrimSpace(os.Getenv("LED_ENABLED"))
	if ledEnabledStr == "" {
		ledEnabledStr = "true"
	}
	ledEnabled, err := strconv.ParseBool(ledEnabledStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid LED_ENABLED %q: %w", ledEnabledStr, err)
	}

	heartbeatPin := strings.TrimSpace(os.Getenv("LED_HEARTBEAT_PIN"))
	if heartbeatPin == "" {
		heartbeatPin = "GPIO17"
	}

	redPin := strings.TrimSpace(os.Getenv("LED_STATUS_RED_PIN"))
	if redPin == "" {
		redPin = "GPIO22"
	}

	greenPin := strings.TrimSpace(os.Getenv("LED_STATUS_GREEN_PIN"))
	if greenPin == "" {
		greenPin = "GPIO23"
	}

	bluePin := strings.TrimSpace(os.Getenv("LED_STATUS_BLUE_PIN"))
	if bluePin == "" {
		bluePin = "GPIO24"
	}

	return Config{
		AppEnv:           appEnv,
		LogLevel:         level,
		WiFiSSID:         wifiSSID,
		WiFiPassword:     wifiPassword,
		AIOUsername:      aioUsername,
		AIOKey:           aioKey,
		BrokerHost:       brokerHost,
		BrokerPort:       brokerPort,
		BrokerTLS:        brokerTLS,
		ClientID:         clientID,
		WeatherTopicKey:  topicKey,
		StationDesc:      stationDesc,
		PublishPerMinute: publishPerMinute,
		LEDEnabled:       ledEnabled,
		HeartbeatPin:     heartbeatPin,
		RedPin:           redPin,
		GreenPin:         greenPin,
		BluePin:          bluePin,
	}, nil
}

// BrokerURL is the broker endpoint in paho URL form.
func (c Config) BrokerURL() string {
	scheme := "tcp"
	if c.BrokerTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.BrokerHost, c.BrokerPort)
}

// BrokerAddr is the broker endpoint in host:port form.
func (c Config) BrokerAddr() string {
	return net.JoinHostPort(c.BrokerHost, strconv.Itoa(c.BrokerPort))
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
