// Package risk scores a device's exposure from its observation history.
package risk

import (
	"strings"

	"lanwatch/internal/domain"
)

// Assessment is the scored exposure of a single device.
type Assessment struct {
	DeviceID string   `json:"deviceId"`
	Score    float64  `json:"score"`
	Level    string   `json:"level"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Risk levels, thresholds applied to the capped score.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// serviceWeights maps an observed open service to its score contribution
// and the reason recorded for it. Hints match by substring, so a combined
// hint like "tcp/22,tcp/23" still raises telnet-open, and every matching
// observation adds its weight again.
var serviceWeights = []struct {
	hint   string
	weight float64
	reason string
}{
	{"tcp/23", 0.4, "telnet-open"},
	{"tcp/3389", 0.3, "rdp-open"},
	{"tcp/445", 0.2, "smb-open"},
	{"tcp/80", 0.1, "http-open"},
}

// Score assesses a device from its observation history. The score is the
// sum of per-observation service weights plus a camera surcharge, capped
// at 1.0. Reasons are deduplicated.
func Score(device *domain.Device, history []domain.DeviceObservation) Assessment {
	var score float64
	var reasons []string
	seen := make(map[string]bool)

	for _, obs := range history {
		hint := strings.ToLower(obs.ServiceHint)
		if hint == "" {
			continue
		}
		for _, w := range serviceWeights {
			if strings.Contains(hint, w.hint) {
				score += w.weight
				if !seen[w.reason] {
					seen[w.reason] = true
					reasons = append(reasons, w.reason)
				}
			}
		}
	}

	if strings.EqualFold(device.TypeGuess, "camera") {
		score += 0.1
		reasons = append(reasons, "camera-device")
	}

	if score > 1.0 {
		score = 1.0
	}

	return Assessment{
		DeviceID: device.DeviceID,
		Score:    score,
		Level:    levelFor(score),
		Reasons:  reasons,
	}
}

func levelFor(score float64) string {
	switch {
	case score >= 0.7:
		return LevelHigh
	case score >= 0.4:
		return LevelMedium
	default:
		return LevelLow
	}
}
