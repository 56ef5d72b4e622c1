package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Settings controls the active scanner. All durations are expressed in the
// units their field names carry so the JSON file stays editable by hand.
type Settings struct {
	ScanIntervalSeconds int   `json:"scanIntervalSeconds"`
	PingTimeoutMS       int   `json:"pingTimeoutMs"`
	TCPTimeoutMS        int   `json:"tcpTimeoutMs"`
	Concurrency         int   `json:"concurrency"`
	MaxHostsPerSubnet   int   `json:"maxHostsPerSubnet"`
	TCPPorts            []int `json:"tcpPorts"`
	SSDPEnabled         bool  `json:"ssdpEnabled"`
	NmapEnabled         bool  `json:"nmapEnabled"`
}

// DefaultSettings returns the scanner defaults.
func DefaultSettings() Settings {
	return Settings{
		ScanIntervalSeconds: 60,
		PingTimeoutMS:       800,
		TCPTimeoutMS:        300,
		Concurrency:         64,
		MaxHostsPerSubnet:   1024,
		TCPPorts:            []int{22, 23, 80, 443, 445, 554, 8000, 8080, 8443, 3389},
		SSDPEnabled:         true,
		NmapEnabled:         false,
	}
}

// SettingsStore persists scanner settings as a JSON file. Reads return a
// copy; the scanner re-reads settings each cycle so updates apply live.
type SettingsStore struct {
	mu       sync.RWMutex
	path     string
	settings Settings
}

// NewSettingsStore loads settings from path. A missing or unreadable
// file keeps the defaults so a broken settings file never stops the
// scanner.
func NewSettingsStore(path string, log zerolog.Logger) *SettingsStore {
	s := &SettingsStore{path: path, settings: DefaultSettings()}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("failed to read discovery settings, using defaults")
		}
		return s
	}

	var loaded Settings
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to parse discovery settings, using defaults")
		return s
	}
	s.settings = normalizeSettings(loaded)
	return s
}

// Get returns a copy of the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.settings
	out.TCPPorts = append([]int(nil), s.settings.TCPPorts...)
	return out
}

// Update normalizes, persists, and applies new settings.
func (s *SettingsStore) Update(settings Settings) (Settings, error) {
	normalized := normalizeSettings(settings)

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		return Settings{}, fmt.Errorf("failed to encode discovery settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Settings{}, fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return Settings{}, fmt.Errorf("failed to write discovery settings: %w", err)
	}

	s.settings = normalized
	out := normalized
	out.TCPPorts = append([]int(nil), normalized.TCPPorts...)
	return out, nil
}

// normalizeSettings clamps every field into its valid range and
// deduplicates the port list. Out-of-range values are clamped rather than
// rejected so a hand-edited file never bricks the scanner.
func normalizeSettings(s Settings) Settings {
	s.ScanIntervalSeconds = clampInt(s.ScanIntervalSeconds, 10, 3600, 60)
	s.PingTimeoutMS = clampInt(s.PingTimeoutMS, 100, 5000, 800)
	s.TCPTimeoutMS = clampInt(s.TCPTimeoutMS, 100, 5000, 300)
	s.Concurrency = clampInt(s.Concurrency, 1, 256, 64)
	s.MaxHostsPerSubnet = clampInt(s.MaxHostsPerSubnet, 16, 65535, 1024)

	seen := make(map[int]bool)
	var ports []int
	for _, p := range s.TCPPorts {
		if p < 1 || p > 65535 || seen[p] {
			continue
		}
		seen[p] = true
		ports = append(ports, p)
	}
	if len(ports) == 0 {
		ports = DefaultSettings().TCPPorts
	}
	s.TCPPorts = ports
	return s
}

func clampInt(v, min, max, def int) int {
	switch {
	case v == 0:
		return def
	case v < min:
		return min
	case v > max:
		return max
	default:
		return v
	}
}
