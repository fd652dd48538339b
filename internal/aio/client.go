// Package aio is the Adafruit IO MQTT transport. It wraps one paho client
// with reconnection left entirely to the caller: the control loop decides
// when to retry and when to give up.
package aio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/time/rate"

	"github.com/CedarGroveStudios/AIO-Weather-Repeater/internal/config"
)

// Failure kinds the control loop classifies with errors.Is.
var (
	// ErrBroker covers connect and subscribe failures.
	ErrBroker = errors.New("broker connection")
	// ErrService covers failures while draining inbound traffic.
	ErrService = errors.New("mqtt service")
	// ErrPublish covers outbound publish failures.
	ErrPublish = errors.New("mqtt publish")
)

const (
	tokenTimeout = 5 * time.Second
	keepAlive    = 180 * time.Second
)

type inbound struct {
	feedID  string
	payload []byte
}

type Client struct {
	client  mqtt.Client
	cfg     config.Config
	logger  *slog.Logger
	limiter *rate.Limiter

	mu        sync.RWMutex
	connected bool
	handler   func(feedID string, payload []byte)
	subTopic  string

	// inbound holds at most the newest undelivered message; connLost holds
	// at most one pending loss notification.
	inbound  chan inbound
	connLost chan error

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	c := &Client{
		cfg:      cfg,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.PublishPerMinute)), 1),
		inbound:  make(chan inbound, 1),
		connLost: make(chan error, 1),
		stopCh:   make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL())
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.AIOUsername)
	opts.SetPassword(cfg.AIOKey)

	// Session settings
	opts.SetCleanSession(true)

	// Reconnection policy lives in the control loop; paho must not race it.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	// Keepalive / timeouts
	opts.SetKeepAlive(keepAlive)
	opts.SetPingTimeout(10 * time.Second)

	// Callbacks keep internal state accurate
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.BrokerHost, "port", cfg.BrokerPort)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
		select {
		case c.connLost <- err:
		default:
		}
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// SetMessageHandler registers the consumer for inbound feed messages.
// Register before Connect; delivery happens on Service's goroutine.
func (c *Client) SetMessageHandler(handler func(feedID string, payload []byte)) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// Connect establishes the broker session. It waits for the initial
// connection and respects ctx and Disconnect().
func (c *Client) Connect(ctx context.Context) error {
	// Fail fast if already stopped.
	select {
	case <-c.stopCh:
		return fmt.Errorf("%w: client stopped", ErrBroker)
	default:
	}

	// Fast path.
	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()

	// Wait in a ctx/stop-aware loop.
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("%w: connect: %v", ErrBroker, err)
			}
			// OnConnectHandler sets connected=true.
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("%w: client stopped", ErrBroker)
		default:
		}
	}
}

// SubscribeWeather subscribes to the current-conditions topic for the given
// location key and remembers it for re-subscription after a reconnect.
func (c *Client) SubscribeWeather(ctx context.Context, key int, mode string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	topic := fmt.Sprintf("%s/weather/%d/%s", c.cfg.AIOUsername, key, mode)
	if err := c.subscribe(topic); err != nil {
		return err
	}

	c.mu.Lock()
	c.subTopic = topic
	c.mu.Unlock()
	return nil
}

func (c *Client) subscribe(topic string) error {
	token := c.client.Subscribe(topic, 1, c.onMessage)
	if !token.WaitTimeout(tokenTimeout) {
		return fmt.Errorf("%w: subscribe timeout for topic %s", ErrBroker, topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("%w: subscribe %s: %v", ErrBroker, topic, token.Error())
	}

	c.logger.Info("subscribed", "topic", topic, "qos", 1)
	return nil
}

// onMessage runs on paho's router goroutine. The slot keeps only the newest
// payload until Service drains it.
func (c *Client) onMessage(_ mqtt.Client, msg mqtt.Message) {
	m := inbound{feedID: feedIDFromTopic(msg.Topic()), payload: msg.Payload()}
	for {
		select {
		case c.inbound <- m:
			return
		default:
		}
		select {
		case <-c.inbound:
		default:
		}
	}
}

// Service drains inbound messages for up to window, invoking the registered
// handler on the caller's goroutine. It returns nil when the window elapses
// quietly and an ErrService-wrapped error when the session is down or drops.
func (c *Client) Service(ctx context.Context, window time.Duration) error {
	if !c.IsConnected() {
		return fmt.Errorf("%w: not connected", ErrService)
	}

	timer := time.NewTimer(window)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("%w: client stopped", ErrService)
		case err := <-c.connLost:
			return fmt.Errorf("%w: connection lost: %v", ErrService, err)
		case m := <-c.inbound:
			if handler := c.messageHandler(); handler != nil {
				handler(m.feedID, m.payload)
			}
		case <-timer.C:
			return nil
		}
	}
}

// Publish sends one value to {user}/feeds/{feed} at QoS 1. The limiter
// spaces transactions to stay inside the account's per-minute budget.
func (c *Client) Publish(ctx context.Context, feed string, value any) error {
	if !c.IsConnected() {
		return fmt.Errorf("%w: not connected", ErrPublish)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate wait: %v", ErrPublish, err)
	}

	topic := fmt.Sprintf("%s/feeds/%s", c.cfg.AIOUsername, feed)
	payload := FormatValue(value)

	token := c.client.Publish(topic, 1, false, []byte(payload))
	if !token.WaitTimeout(tokenTimeout) {
		return fmt.Errorf("%w: timeout for topic %s", ErrPublish, topic)
	}
	if token.Error() != nil {
		c.logger.Error("failed to publish", "topic", topic, "error", token.Error())
		return fmt.Errorf("%w: %v", ErrPublish, token.Error())
	}

	c.logger.Debug("published", "topic", topic, "value", payload)
	return nil
}

// Reconnect tears down any half-open session, reconnects, and restores the
// remembered subscription.
func (c *Client) Reconnect(ctx context.Context) error {
	// Drop a stale loss signal from the session being replaced.
	select {
	case <-c.connLost:
	default:
	}

	if c.client.IsConnected() {
		c.client.Disconnect(250)
	}
	c.setConnected(false)

	if err := c.Connect(ctx); err != nil {
		return err
	}

	c.mu.RLock()
	topic := c.subTopic
	c.mu.RUnlock()
	if topic != "" {
		if err := c.subscribe(topic); err != nil {
			return err
		}
	}

	c.logger.Info("mqtt session restored")
	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client and closes the MQTT connection.
// Idempotent and safe to call multiple times.
// After Disconnect, Connect() returns an error.
func (c *Client) Disconnect() {
	// Signal shutdown once (unblocks any Connect loops).
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.client != nil {
		// Even if already disconnected, this is safe.
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) messageHandler() func(string, []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
