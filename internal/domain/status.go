package domain

import "time"

// ConnectorStatus is operational telemetry for one connector, kept in memory
// only. It is not part of the identity graph.
type ConnectorStatus struct {
	Key         string     `json:"key"`
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`
	LastErrorAt *time.Time `json:"lastErrorAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}

// RouterFingerprint is the result of heuristically probing one default
// gateway. The full set is replaced wholesale each fingerprint cycle.
type RouterFingerprint struct {
	GatewayIP          string    `json:"gatewayIp"`
	BaseURL            string    `json:"baseUrl"`
	Vendor             string    `json:"vendor,omitempty"`
	Model              string    `json:"model,omitempty"`
	Confidence         float64   `json:"confidence"`
	SuggestedConnector string    `json:"suggestedConnector,omitempty"`
	Evidence           []string  `json:"evidence,omitempty"`
	ObservedAt         time.Time `json:"observedAt"`
}
