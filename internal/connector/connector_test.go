package connector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/domain"
)

// captureSink records every ingested observation.
type captureSink struct {
	mu  sync.Mutex
	obs []domain.Observation
	err error
}

func (s *captureSink) Ingest(_ context.Context, obs domain.Observation) (*domain.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.obs = append(s.obs, obs)
	return &domain.Device{DeviceID: "test-device"}, nil
}

func (s *captureSink) observations() []domain.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Observation, len(s.obs))
	copy(out, s.obs)
	return out
}

// staticResolver resolves a fixed set of credential IDs.
type staticResolver map[string]string

func (r staticResolver) TryResolve(id string) (string, bool) {
	value, ok := r[id]
	return value, ok && value != ""
}

func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// stubConnector counts runs and optionally fails.
type stubConnector struct {
	key  string
	err  error
	runs int
	mu   sync.Mutex
}

func (c *stubConnector) Key() string { return c.key }

func (c *stubConnector) Run(context.Context, Settings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	return c.err
}

func (c *stubConnector) runCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

func TestRegistryPreservesOrderAndLooksUpCaseInsensitively(t *testing.T) {
	a := &stubConnector{key: "upnp-igd"}
	b := &stubConnector{key: "snmp"}
	registry := NewRegistry(NewStatusStore(), a, b)

	all := registry.All()
	if len(all) != 2 || all[0].Key() != "upnp-igd" || all[1].Key() != "snmp" {
		t.Fatalf("unexpected registration order: %v", all)
	}
	if _, ok := registry.Get("SNMP"); !ok {
		t.Fatal("expected case-insensitive lookup to find snmp")
	}
	if _, ok := registry.Get("missing"); ok {
		t.Fatal("expected lookup miss for unknown key")
	}
}

func TestStatusStoreTracksSuccessAndFailure(t *testing.T) {
	store := NewStatusStore()

	store.ReportFailure("snmp", "walk timed out")
	status := statusFor(t, store, "snmp")
	if status.LastError != "walk timed out" || status.LastErrorAt == nil {
		t.Fatalf("failure not recorded: %+v", status)
	}
	if status.LastSuccess != nil {
		t.Fatalf("unexpected success stamp: %+v", status)
	}

	store.ReportSuccess("snmp")
	status = statusFor(t, store, "snmp")
	if status.LastSuccess == nil {
		t.Fatal("success not recorded")
	}
	if status.LastError != "" {
		t.Fatalf("last error not cleared: %q", status.LastError)
	}
}

func statusFor(t *testing.T, store *StatusStore, key string) domain.ConnectorStatus {
	t.Helper()
	for _, s := range store.All() {
		if s.Key == key {
			return s
		}
	}
	t.Fatalf("no status recorded for %q", key)
	return domain.ConnectorStatus{}
}

func TestSchedulerRunsOnlyEnabledConnectors(t *testing.T) {
	enabled := &stubConnector{key: KeyUPnPIGD}
	disabled := &stubConnector{key: KeySNMP}
	registry := NewRegistry(NewStatusStore(), enabled, disabled)

	store := NewSettingsStore(t.TempDir()+"/connectors.json", zerolog.Nop())

	scheduler := NewScheduler(registry, store, time.Hour, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return enabled.runCount() >= 1 })
	cancel()
	<-done

	if disabled.runCount() != 0 {
		t.Fatalf("disabled connector ran %d times", disabled.runCount())
	}
}

func TestSchedulerIsolatesFailures(t *testing.T) {
	failing := &stubConnector{key: KeyUPnPIGD, err: errors.New("network unreachable")}
	registry := NewRegistry(NewStatusStore(), failing)

	store := NewSettingsStore(t.TempDir()+"/connectors.json", zerolog.Nop())

	scheduler := NewScheduler(registry, store, time.Hour, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return failing.runCount() >= 1 })
	cancel()
	<-done

	status := statusFor(t, registry.status, KeyUPnPIGD)
	if status.LastError != "network unreachable" {
		t.Fatalf("failure not reported: %+v", status)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
