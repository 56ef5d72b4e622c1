// Package classify infers a device's vendor and type from accumulated
// observations. Classification is pure rule evaluation: a static OUI
// prefix table for vendors and an ordered substring rule list over
// hostname, service hint, and type hint for the type guess. First match
// wins; no I/O happens here.
package classify

import (
	"fmt"
	"strings"

	"lanwatch/internal/domain"
)

// Result is a classifier verdict. Empty TypeGuess/Vendor mean "no opinion".
type Result struct {
	TypeGuess  string   `json:"typeGuess,omitempty"`
	Vendor     string   `json:"vendor,omitempty"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Classifier evaluates the rule table against devices and observations.
type Classifier struct {
	oui *OUITable
}

// New creates a classifier backed by the given OUI table.
func New(oui *OUITable) *Classifier {
	return &Classifier{oui: oui}
}

// Classify evaluates a single observation in the context of the device it
// resolved to.
func (c *Classifier) Classify(device *domain.Device, obs domain.Observation) Result {
	var reasons []string

	vendor := device.Vendor
	if vendor == "" {
		mac := obs.MACAddress
		if mac == "" {
			mac = device.MACAddress
		}
		vendor = c.oui.Lookup(mac)
	}
	if vendor != "" {
		reasons = append(reasons, "oui:"+vendor)
	}

	typeGuess, confidence := inferType(device, obs, &reasons)

	return Result{
		TypeGuess:  typeGuess,
		Vendor:     vendor,
		Confidence: confidence,
		Reasons:    reasons,
	}
}

// ClassifyHistory evaluates a device's full observation history and keeps
// the highest-confidence type match. The returned confidence is never
// lower than the device's current confidence.
func (c *Classifier) ClassifyHistory(device *domain.Device, history []domain.DeviceObservation) Result {
	var reasons []string

	vendor := device.Vendor
	if vendor == "" {
		vendor = c.oui.Lookup(device.MACAddress)
	}
	if vendor != "" {
		reasons = append(reasons, "oui:"+vendor)
	}

	bestType := device.TypeGuess
	bestConfidence := 0.1

	for _, o := range history {
		obs := domain.Observation{
			MACAddress:  o.MACAddress,
			IPAddress:   o.IPAddress,
			Hostname:    o.Hostname,
			Vendor:      o.Vendor,
			TypeHint:    o.TypeHint,
			ServiceHint: o.ServiceHint,
		}
		typeGuess, confidence := inferType(device, obs, &reasons)
		if typeGuess != "" && confidence > bestConfidence {
			bestType = typeGuess
			bestConfidence = confidence
		}
	}

	if device.Confidence > bestConfidence {
		bestConfidence = device.Confidence
	}

	return Result{
		TypeGuess:  bestType,
		Vendor:     vendor,
		Confidence: bestConfidence,
		Reasons:    dedupe(reasons),
	}
}

// inferType applies the ordered rule table. Unmatched observations fall
// back to the device's existing type guess at baseline confidence.
func inferType(device *domain.Device, obs domain.Observation, reasons *[]string) (string, float64) {
	hostname := strings.ToLower(firstNonEmpty(obs.Hostname, device.Hostname))
	service := strings.ToLower(obs.ServiceHint)
	typeHint := strings.ToLower(obs.TypeHint)

	switch {
	case strings.Contains(service, "tcp/554") || strings.Contains(service, "rtsp"):
		*reasons = append(*reasons, "service:rtsp")
		return "camera", 0.7
	case strings.Contains(service, "tcp/9100") || strings.Contains(service, "printer"):
		*reasons = append(*reasons, "service:printer")
		return "printer", 0.7
	case strings.Contains(service, "tcp/445") || strings.Contains(service, "tcp/139"):
		*reasons = append(*reasons, "service:smb")
		return "computer", 0.5
	case strings.Contains(service, "tcp/3389"):
		*reasons = append(*reasons, "service:rdp")
		return "computer", 0.6
	case strings.Contains(hostname, "cam"):
		*reasons = append(*reasons, "hostname:camera")
		return "camera", 0.6
	case strings.Contains(hostname, "iphone") || strings.Contains(hostname, "ipad") || strings.Contains(hostname, "android"):
		*reasons = append(*reasons, "hostname:mobile")
		return "phone", 0.5
	case strings.Contains(hostname, "tv") || strings.Contains(hostname, "roku") || strings.Contains(hostname, "chromecast"):
		*reasons = append(*reasons, "hostname:tv")
		return "tv", 0.5
	case strings.Contains(typeHint, "gateway"):
		*reasons = append(*reasons, "type:gateway")
		return "router", 0.6
	}

	return device.TypeGuess, 0.1
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// String renders a short human-readable form for logs.
func (r Result) String() string {
	return fmt.Sprintf("type=%s vendor=%s confidence=%.2f", r.TypeGuess, r.Vendor, r.Confidence)
}
