//go:build e2e

package e2e

import (
	"context"
	"errors"
	"math"
	"net"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const repoRootRel = ".."   // relative to ./e2e
const mainPkgRel = "./cmd" // main.go lives in cmd/

const observationJSON = `{
	"conditionCode": "MostlyCloudy",
	"temperature": 20.0,
	"humidity": 0.5,
	"windSpeed": 5.0,
	"windGust": 8.0,
	"windDirection": 90,
	"daylight": true,
	"metadata": {"readTime": "2024-01-01T12:00:00Z"}
}`

type feedMessage struct {
	feed    string
	payload string
}

func TestSmoke_RepeatsObservation(t *testing.T) {
	repoRoot := repoRootPath(t)

	brokerAddr := startMosquitto(t)

	bin := buildBinary(t, repoRoot)

	host, port, err := net.SplitHostPort(brokerAddr)
	if err != nil {
		t.Fatalf("split broker addr: %v", err)
	}

	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(),
		"APP_ENV=dev",
		"LOG_LEVEL=debug",
		"AIO_USERNAME=tester",
		"AIO_KEY=not-checked-by-mosquitto",
		"BROKER_HOST="+host,
		"BROKER_PORT="+port,
		"BROKER_TLS=false",
		"LED_ENABLED=false",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start repeater: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})

	cli := connectObserver(t, brokerAddr)

	got := make(chan feedMessage, 32)
	sub := cli.Subscribe("tester/feeds/#", 1, func(_ mqtt.Client, m mqtt.Message) {
		got <- feedMessage{feed: path.Base(m.Topic()), payload: string(m.Payload())}
	})
	if !sub.WaitTimeout(10*time.Second) || sub.Error() != nil {
		t.Fatalf("subscribe feeds: %v", sub.Error())
	}

	publish := func() {
		tok := cli.Publish("tester/weather/2730/current", 1, false, []byte(observationJSON))
		if !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
			t.Fatalf("publish observation: %v", tok.Error())
		}
	}

	values := make(map[string]string, 8)

	first := waitForFirstFeed(t, publish, got)
	values[first.feed] = first.payload

	deadline := time.After(60 * time.Second)
	for len(values) < 8 {
		select {
		case m := <-got:
			values[m.feed] = m.payload
		case <-deadline:
			t.Fatalf("received %d feed values, want 8: %v", len(values), values)
		}
	}

	if v := values["weather-description"]; v != "MostlyCloudy" {
		t.Errorf("weather-description = %q, want %q", v, "MostlyCloudy")
	}
	if v := values["weather-winddirection"]; v != "E" {
		t.Errorf("weather-winddirection = %q, want %q", v, "E")
	}
	if v := values["weather-daylight"]; v != "True" {
		t.Errorf("weather-daylight = %q, want %q", v, "True")
	}
	assertFeedNumber(t, values, "weather-temperature", 68)
	assertFeedNumber(t, values, "weather-humidity", 50)
	assertFeedNumber(t, values, "weather-windspeed", 3.107)
	assertFeedNumber(t, values, "weather-windgusts", 4.9712)

	// Uptime in whole minutes; the repeater just started.
	if watchdog, err := strconv.ParseFloat(values["system-watchdog"], 64); err != nil || watchdog < 0 || watchdog > 5 {
		t.Errorf("system-watchdog = %q, want a small uptime", values["system-watchdog"])
	}

	stopRepeater(t, cmd)
}

// waitForFirstFeed republishes the observation until the repeater echoes a
// feed value; the broker does not retain, so an observation published before
// the repeater subscribed would be lost.
func waitForFirstFeed(t *testing.T, publish func(), got <-chan feedMessage) feedMessage {
	t.Helper()

	deadline := time.Now().Add(90 * time.Second)
	for time.Now().Before(deadline) {
		publish()
		select {
		case m := <-got:
			return m
		case <-time.After(5 * time.Second):
		}
	}
	t.Fatalf("no feed values after %s of repeated observations", 90*time.Second)
	return feedMessage{}
}

func assertFeedNumber(t *testing.T, values map[string]string, feed string, want float64) {
	t.Helper()

	raw, ok := values[feed]
	if !ok {
		t.Errorf("%s missing", feed)
		return
	}
	got, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		t.Errorf("%s = %q, want a number", feed, raw)
		return
	}
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %q, want %v", feed, raw, want)
	}
}

func startMosquitto(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := tc.ContainerRequest{
		Image: "eclipse-mosquitto:2",
		// The stock config only listens on localhost; write one that
		// accepts anonymous clients on the exposed listener.
		Entrypoint: []string{"sh", "-c"},
		Cmd: []string{
			"printf 'listener 1883\\nallow_anonymous true\\n' > /mosquitto/config/mosquitto.conf && " +
				"exec mosquitto -c /mosquitto/config/mosquitto.conf",
		},
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp").WithStartupTimeout(30 * time.Second),
	}

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start mosquitto container: %v", err)
	}

	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := c.MappedPort(ctx, nat.Port("1883/tcp"))
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	return net.JoinHostPort(host, port.Port())
}

func connectObserver(t *testing.T, brokerAddr string) mqtt.Client {
	t.Helper()

	opts := mqtt.NewClientOptions().
		AddBroker("tcp://" + brokerAddr).
		SetClientID("e2e-observer").
		SetCleanSession(true)

	cli := mqtt.NewClient(opts)
	tok := cli.Connect()
	if !tok.WaitTimeout(10*time.Second) || tok.Error() != nil {
		t.Fatalf("connect observer: %v", tok.Error())
	}

	t.Cleanup(func() {
		cli.Disconnect(250)
	})

	return cli
}

func repoRootPath(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	repo := filepath.Clean(filepath.Join(wd, repoRootRel))
	if _, err := os.Stat(filepath.Join(repo, "go.mod")); err != nil {
		t.Fatalf("repo root %q does not contain go.mod: %v", repo, err)
	}

	return repo
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()

	tmp := t.TempDir()
	out := filepath.Join(tmp, "weather-repeater")

	build := exec.Command("go", "build", "-o", out, mainPkgRel)
	build.Dir = repoRoot
	build.Env = os.Environ()

	b, err := build.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(b))
	}

	return out
}

func stopRepeater(t *testing.T, cmd *exec.Cmd) {
	t.Helper()

	_ = cmd.Process.Signal(syscall.SIGTERM)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		t.Fatalf("repeater did not exit in time")
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				t.Fatalf("repeater exited non-zero: %v", err)
			}
			t.Fatalf("repeater wait error: %v", err)
		}
	}
}
