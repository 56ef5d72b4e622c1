package domain

import "time"

// Device is the durable identity aggregating all observations believed to
// describe the same physical endpoint. At most one device owns a given
// non-empty MAC address; IP is only a fallback match key (DHCP churn).
// Devices are never deleted.
type Device struct {
	DeviceID   string    `json:"deviceId"`
	MACAddress string    `json:"macAddress,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	Hostname   string    `json:"hostname,omitempty"`
	Vendor     string    `json:"vendor,omitempty"`
	TypeGuess  string    `json:"typeGuess,omitempty"`
	FirstSeen  time.Time `json:"firstSeen"`
	LastSeen   time.Time `json:"lastSeen"`
	// Confidence in [0,1]: 0.2 on creation, +0.1 per corroborating
	// observation, may be raised directly by the classifier
	Confidence float64 `json:"confidence"`
	Online     bool    `json:"online"`
}

// Event types recorded on the presence timeline.
const (
	EventJoin  = "join"
	EventLeave = "leave"
)

// Event details distinguishing why a join/leave was recorded.
const (
	DetailFirstSeen    = "first_seen"
	DetailBackOnline   = "back_online"
	DetailStaleTimeout = "stale_timeout"
)

// DeviceEvent is one entry of the append-only presence timeline. The Online
// flag on Device is a cached projection of the latest event.
type DeviceEvent struct {
	EventID    int64     `json:"eventId"`
	DeviceID   string    `json:"deviceId"`
	EventType  string    `json:"eventType"`
	OccurredAt time.Time `json:"occurredAt"`
	Detail     string    `json:"detail,omitempty"`
}
