package domain

import "time"

// Observation is a single, possibly partial signal about a network endpoint.
// Producers fill in whatever they know; any field except Source may be empty.
type Observation struct {
	// Source identifies the producer (e.g. "active-ping", "ssdp", "unifi")
	Source string `json:"source"`
	// MACAddress in any common notation; normalized by the device engine
	MACAddress string `json:"macAddress,omitempty"`
	// IPAddress of the endpoint as seen by the producer
	IPAddress string `json:"ipAddress,omitempty"`
	// Hostname as advertised or resolved
	Hostname string `json:"hostname,omitempty"`
	// Vendor string if the producer knows one (e.g. SSDP SERVER header)
	Vendor string `json:"vendor,omitempty"`
	// TypeHint is a coarse hint like "dhcp-lease" or "gateway"
	TypeHint string `json:"typeHint,omitempty"`
	// ServiceHint records an observed open service, format "tcp/<port>"
	ServiceHint string `json:"serviceHint,omitempty"`
	// ObservedAt defaults to ingestion time when zero
	ObservedAt time.Time `json:"observedAt,omitempty"`
}

// DeviceObservation is the persisted, immutable copy of an ingested
// Observation, tagged with the device it resolved to.
type DeviceObservation struct {
	ObservationID int64     `json:"observationId"`
	DeviceID      string    `json:"deviceId"`
	Source        string    `json:"source"`
	MACAddress    string    `json:"macAddress,omitempty"`
	IPAddress     string    `json:"ipAddress,omitempty"`
	Hostname      string    `json:"hostname,omitempty"`
	Vendor        string    `json:"vendor,omitempty"`
	TypeHint      string    `json:"typeHint,omitempty"`
	ServiceHint   string    `json:"serviceHint,omitempty"`
	ObservedAt    time.Time `json:"observedAt"`
}
