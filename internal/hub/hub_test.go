package hub

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/domain"
	"lanwatch/internal/service"
)

func TestHubStreamsEventsToClient(t *testing.T) {
	bus := service.NewEventBus()
	t.Cleanup(bus.Close)
	h := New(bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)

	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readLine := func() string {
		t.Helper()
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read stream: %v", err)
		}
		return strings.TrimRight(line, "\n")
	}

	if line := readLine(); line != ": connected" {
		t.Fatalf("expected connection comment, got %q", line)
	}
	readLine()

	waitForClients(t, h, 1)
	bus.Publish(service.Event{
		Type:    service.EventDevice,
		Payload: domain.Device{DeviceID: "dev-1", IPAddress: "10.0.0.5"},
	})

	if line := readLine(); line != "event: device" {
		t.Fatalf("expected event type line, got %q", line)
	}
	data := readLine()
	if !strings.HasPrefix(data, "data: ") || !strings.Contains(data, `"dev-1"`) {
		t.Fatalf("unexpected data line %q", data)
	}
}

func TestHubCountsDisconnects(t *testing.T) {
	bus := service.NewEventBus()
	t.Cleanup(bus.Close)
	h := New(bus, zerolog.Nop())

	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	waitForClients(t, h, 1)
	cancel()
	waitForClients(t, h, 0)
}

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client count never reached %d (now %d)", want, h.ClientCount())
}
