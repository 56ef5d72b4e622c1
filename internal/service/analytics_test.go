package service

import (
	"context"
	"testing"
	"time"

	"lanwatch/internal/domain"
	"lanwatch/internal/repository"
	"lanwatch/internal/repository/sqlite"
)

func newAnalyticsFixture(t *testing.T) (*AnalyticsService, *sqlite.Repository) {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return NewAnalyticsService(repo), repo
}

func seedDevice(t *testing.T, repo *sqlite.Repository, d domain.Device) {
	t.Helper()
	err := repo.Transact(context.Background(), func(tx repository.Tx) error {
		return tx.InsertDevice(context.Background(), &d)
	})
	assertNoError(t, err)
}

func seedEvent(t *testing.T, repo *sqlite.Repository, e domain.DeviceEvent) {
	t.Helper()
	err := repo.Transact(context.Background(), func(tx repository.Tx) error {
		_, err := tx.InsertEvent(context.Background(), &e)
		return err
	})
	assertNoError(t, err)
}

func TestNetworkSummaryCounts(t *testing.T) {
	svc, repo := newAnalyticsFixture(t)
	now := time.Now().UTC()

	seedDevice(t, repo, domain.Device{DeviceID: "d1", FirstSeen: now, LastSeen: now, Online: true})
	seedDevice(t, repo, domain.Device{DeviceID: "d2", FirstSeen: now, LastSeen: now, Online: false})

	seedEvent(t, repo, domain.DeviceEvent{DeviceID: "d1", EventType: domain.EventJoin, OccurredAt: now.Add(-time.Hour)})
	seedEvent(t, repo, domain.DeviceEvent{DeviceID: "d2", EventType: domain.EventJoin, OccurredAt: now.Add(-2 * time.Hour)})
	seedEvent(t, repo, domain.DeviceEvent{DeviceID: "d2", EventType: domain.EventLeave, OccurredAt: now.Add(-time.Hour)})
	// Outside the 24h window, must not be counted.
	seedEvent(t, repo, domain.DeviceEvent{DeviceID: "d1", EventType: domain.EventJoin, OccurredAt: now.Add(-48 * time.Hour)})

	summary, err := svc.NetworkSummary(context.Background(), 24)
	assertNoError(t, err)

	if summary.DeviceCount != 2 || summary.OnlineCount != 1 {
		t.Fatalf("summary = %+v, want 2 devices 1 online", summary)
	}
	if summary.JoinCount != 2 || summary.LeaveCount != 1 {
		t.Fatalf("summary = %+v, want 2 joins 1 leave in window", summary)
	}
}

func TestDeviceSummaryUptime(t *testing.T) {
	svc, repo := newAnalyticsFixture(t)
	now := time.Now().UTC()

	seedDevice(t, repo, domain.Device{DeviceID: "d1", FirstSeen: now.Add(-3 * time.Hour), LastSeen: now, Online: true})
	// Online from -2h to -1h, then again from -30m onward.
	seedEvent(t, repo, domain.DeviceEvent{DeviceID: "d1", EventType: domain.EventJoin, OccurredAt: now.Add(-2 * time.Hour)})
	seedEvent(t, repo, domain.DeviceEvent{DeviceID: "d1", EventType: domain.EventLeave, OccurredAt: now.Add(-time.Hour)})
	seedEvent(t, repo, domain.DeviceEvent{DeviceID: "d1", EventType: domain.EventJoin, OccurredAt: now.Add(-30 * time.Minute)})

	summary, err := svc.DeviceSummary(context.Background(), "d1", 24)
	assertNoError(t, err)

	want := int((90 * time.Minute).Seconds())
	if diff := summary.OnlineSeconds - want; diff < -5 || diff > 5 {
		t.Fatalf("online seconds = %d, want about %d", summary.OnlineSeconds, want)
	}
	if summary.JoinCount != 2 || summary.LeaveCount != 1 {
		t.Fatalf("summary = %+v, want 2 joins 1 leave", summary)
	}
	if summary.LastSeen == nil {
		t.Fatal("expected last seen timestamp")
	}
}

func TestDeviceSummaryLeadingLeaveCountsBoundarySegment(t *testing.T) {
	svc, repo := newAnalyticsFixture(t)
	now := time.Now().UTC()

	seedDevice(t, repo, domain.Device{DeviceID: "d1", FirstSeen: now.Add(-48 * time.Hour), LastSeen: now.Add(-time.Hour), Online: false})
	// First event in the window is a leave, so the device was online at
	// the window boundary.
	seedEvent(t, repo, domain.DeviceEvent{DeviceID: "d1", EventType: domain.EventLeave, OccurredAt: now.Add(-time.Hour)})

	summary, err := svc.DeviceSummary(context.Background(), "d1", 2)
	assertNoError(t, err)

	want := int(time.Hour.Seconds())
	if diff := summary.OnlineSeconds - want; diff < -5 || diff > 5 {
		t.Fatalf("online seconds = %d, want about %d", summary.OnlineSeconds, want)
	}
}

func TestDeviceSummaryNoEventsUsesCurrentState(t *testing.T) {
	svc, repo := newAnalyticsFixture(t)
	now := time.Now().UTC()

	seedDevice(t, repo, domain.Device{DeviceID: "up", FirstSeen: now.Add(-48 * time.Hour), LastSeen: now, Online: true})
	seedDevice(t, repo, domain.Device{DeviceID: "down", FirstSeen: now.Add(-48 * time.Hour), LastSeen: now.Add(-24 * time.Hour), Online: false})

	up, err := svc.DeviceSummary(context.Background(), "up", 1)
	assertNoError(t, err)
	want := int(time.Hour.Seconds())
	if diff := up.OnlineSeconds - want; diff < -5 || diff > 5 {
		t.Fatalf("online seconds = %d, want full window", up.OnlineSeconds)
	}

	down, err := svc.DeviceSummary(context.Background(), "down", 1)
	assertNoError(t, err)
	if down.OnlineSeconds != 0 {
		t.Fatalf("online seconds = %d, want 0", down.OnlineSeconds)
	}
}

func TestDeviceSummaryUnknownDevice(t *testing.T) {
	svc, _ := newAnalyticsFixture(t)
	if _, err := svc.DeviceSummary(context.Background(), "missing", 24); err == nil {
		t.Fatal("expected error for unknown device")
	}
}

func TestWindowClamping(t *testing.T) {
	svc, _ := newAnalyticsFixture(t)

	summary, err := svc.NetworkSummary(context.Background(), 0)
	assertNoError(t, err)
	if summary.WindowHours != 24 {
		t.Fatalf("window = %v, want default 24", summary.WindowHours)
	}

	summary, err = svc.NetworkSummary(context.Background(), 100000)
	assertNoError(t, err)
	if summary.WindowHours != 720 {
		t.Fatalf("window = %v, want clamp 720", summary.WindowHours)
	}
}
