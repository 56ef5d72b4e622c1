package domain

import "time"

// NetworkSummary aggregates activity across all devices in a time window.
type NetworkSummary struct {
	WindowHours float64 `json:"windowHours"`
	DeviceCount int     `json:"deviceCount"`
	OnlineCount int     `json:"onlineCount"`
	JoinCount   int     `json:"joinCount"`
	LeaveCount  int     `json:"leaveCount"`
}

// DeviceSummary describes one device's presence within a time window.
// OnlineSeconds is derived from the join/leave event timeline clipped to
// the window boundaries.
type DeviceSummary struct {
	DeviceID      string     `json:"deviceId"`
	WindowHours   float64    `json:"windowHours"`
	OnlineSeconds int        `json:"onlineSeconds"`
	JoinCount     int        `json:"joinCount"`
	LeaveCount    int        `json:"leaveCount"`
	LastSeen      *time.Time `json:"lastSeen,omitempty"`
}
