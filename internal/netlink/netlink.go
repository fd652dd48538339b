package netlink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"strings"
	"time"
)

// ErrLink classifies failures to bring up or verify the network link.
var ErrLink = errors.New("network link")

// Connector brings the device's network link up.
type Connector interface {
	Connect(ctx context.Context) error
}

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// WiFi associates with an access point through NetworkManager.
type WiFi struct {
	ssid     string
	password string
	logger   *slog.Logger
	run      Runner
}

var _ Connector = (*WiFi)(nil)

func NewWiFi(ssid, password string, logger *slog.Logger) *WiFi {
	return &WiFi{ssid: ssid, password: password, logger: logger, run: runCommand}
}

func (w *WiFi) Connect(ctx context.Context) error {
	w.logger.Info("connecting to wifi", "ssid", w.ssid)

	args := []string{"device", "wifi", "connect", w.ssid}
	if w.password != "" {
		args = append(args, "password", w.password)
	}

	out, err := w.run(ctx, "nmcli", args...)
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail == "" {
			return fmt.Errorf("%w: nmcli connect %q: %v", ErrLink, w.ssid, err)
		}
		return fmt.Errorf("%w: nmcli connect %q: %v: %s", ErrLink, w.ssid, err, detail)
	}

	w.logger.Info("wifi associated", "ssid", w.ssid)
	return nil
}

// Probe verifies broker reachability on a link that is managed outside the
// daemon (wired, or Wi-Fi brought up by the OS).
type Probe struct {
	addr   string
	logger *slog.Logger

	timeout     time.Duration
	retry       time.Duration
	dialTimeout time.Duration
}

var _ Connector = (*Probe)(nil)

func NewProbe(addr string, logger *slog.Logger) *Probe {
	return &Probe{
		addr:        addr,
		logger:      logger,
		timeout:     30 * time.Second,
		retry:       2 * time.Second,
		dialTimeout: 5 * time.Second,
	}
}

func (p *Probe) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; ; attempt++ {
		d := net.Dialer{Timeout: p.dialTimeout}
		conn, err := d.DialContext(ctx, "tcp", p.addr)
		if err == nil {
			conn.Close()
			p.logger.Info("network reachable", "addr", p.addr, "attempt", attempt)
			return nil
		}
		lastErr = err
		p.logger.Debug("network probe failed", "addr", p.addr, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: probe %s: %v", ErrLink, p.addr, lastErr)
		case <-time.After(p.retry):
		}
	}
}
