package service

import (
	"context"
	"fmt"
	"time"

	"lanwatch/internal/domain"
	"lanwatch/internal/repository"
)

// AnalyticsService derives presence statistics from the event timeline.
type AnalyticsService struct {
	repo repository.Store
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(repo repository.Store) *AnalyticsService {
	return &AnalyticsService{repo: repo}
}

// NetworkSummary aggregates join/leave activity across all devices within
// the trailing window.
func (s *AnalyticsService) NetworkSummary(ctx context.Context, windowHours float64) (*domain.NetworkSummary, error) {
	windowHours = clampWindow(windowHours)
	since := time.Now().UTC().Add(-time.Duration(windowHours * float64(time.Hour)))

	devices, err := s.repo.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.ListEventsSince(ctx, since, 0)
	if err != nil {
		return nil, err
	}

	summary := &domain.NetworkSummary{
		WindowHours: windowHours,
		DeviceCount: len(devices),
	}
	for _, d := range devices {
		if d.Online {
			summary.OnlineCount++
		}
	}
	for _, e := range events {
		switch e.EventType {
		case domain.EventJoin:
			summary.JoinCount++
		case domain.EventLeave:
			summary.LeaveCount++
		}
	}
	return summary, nil
}

// DeviceSummary reconstructs one device's presence within the trailing
// window from its join/leave timeline. Uptime is the sum of online
// segments clipped to the window boundaries.
func (s *AnalyticsService) DeviceSummary(ctx context.Context, deviceID string, windowHours float64) (*domain.DeviceSummary, error) {
	windowHours = clampWindow(windowHours)
	now := time.Now().UTC()
	since := now.Add(-time.Duration(windowHours * float64(time.Hour)))

	device, err := s.repo.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, fmt.Errorf("device %s not found", deviceID)
	}

	events, err := s.repo.ListEventsForDeviceSince(ctx, deviceID, since, 0)
	if err != nil {
		return nil, err
	}

	summary := &domain.DeviceSummary{
		DeviceID:    deviceID,
		WindowHours: windowHours,
	}
	if !device.LastSeen.IsZero() {
		lastSeen := device.LastSeen
		summary.LastSeen = &lastSeen
	}

	// State at the window start is inferred from the first event inside
	// the window: a leading leave means the device was online at the
	// boundary. With no events at all, the current flag covers the whole
	// window.
	online := device.Online
	if len(events) > 0 {
		online = events[0].EventType == domain.EventLeave
	}

	var seconds float64
	segmentStart := since
	for _, e := range events {
		switch e.EventType {
		case domain.EventJoin:
			summary.JoinCount++
			if !online {
				online = true
				segmentStart = e.OccurredAt
			}
		case domain.EventLeave:
			summary.LeaveCount++
			if online {
				online = false
				seconds += e.OccurredAt.Sub(segmentStart).Seconds()
			}
		}
	}
	if online {
		seconds += now.Sub(segmentStart).Seconds()
	}

	summary.OnlineSeconds = int(seconds)
	return summary, nil
}

// clampWindow keeps the analytics window within [1h, 30d], defaulting to
// 24 hours.
func clampWindow(hours float64) float64 {
	switch {
	case hours <= 0:
		return 24
	case hours < 1:
		return 1
	case hours > 720:
		return 720
	default:
		return hours
	}
}
