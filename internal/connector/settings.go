package connector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Connector keys. The set is fixed at build time.
const (
	KeyUPnPIGD  = "upnp-igd"
	KeySNMP     = "snmp"
	KeyDHCPHTTP = "dhcp-http"
	KeyUniFi    = "unifi"
	KeyTPLink   = "tplink"
	KeyNetgear  = "netgear"
	KeyOrbi     = "orbi"
	KeyOmada    = "omada"
	KeyAsus     = "asus"
)

// Settings is the full connector configuration: the per-connector enable
// map plus each backend's specific fields.
type Settings struct {
	Enabled  map[string]bool   `json:"enabled"`
	SNMP     SNMPSettings      `json:"snmp"`
	DHCPHTTP DHCPHTTPSettings  `json:"dhcpHttp"`
	UniFi    UniFiSettings     `json:"unifi"`
	TPLink   LeaseHTTPSettings `json:"tplink"`
	Netgear  LeaseHTTPSettings `json:"netgear"`
	Orbi     LeaseHTTPSettings `json:"orbi"`
	Omada    LeaseHTTPSettings `json:"omada"`
	Asus     LeaseHTTPSettings `json:"asus"`
}

// SNMPSettings configures the ARP-table walk over snmpwalk.
type SNMPSettings struct {
	Hosts                 []string `json:"hosts"`
	Community             string   `json:"community"`
	CommunityCredentialID string   `json:"communityCredentialId,omitempty"`
	Port                  int      `json:"port"`
	SnmpWalkPath          string   `json:"snmpWalkPath"`
	TimeoutSeconds        int      `json:"timeoutSeconds"`
}

// DHCPHTTPSettings configures the fixed-shape JSON lease endpoint.
type DHCPHTTPSettings struct {
	URL                   string `json:"url"`
	AuthHeader            string `json:"authHeader"`
	AuthValue             string `json:"authValue"`
	AuthValueCredentialID string `json:"authValueCredentialId,omitempty"`
}

// UniFiSettings configures the controller client.
type UniFiSettings struct {
	BaseURL              string `json:"baseUrl"`
	Site                 string `json:"site"`
	Username             string `json:"username"`
	Password             string `json:"password"`
	PasswordCredentialID string `json:"passwordCredentialId,omitempty"`
	SkipTLSVerify        bool   `json:"skipTlsVerify"`
}

// LeaseHTTPSettings configures one generic lease poller instance. Format
// selects the payload parser: json (array of objects, field names
// configurable), csv (delimited text, column indices configurable), or
// keyvalue (blank-line separated key=value blocks, key names
// configurable).
type LeaseHTTPSettings struct {
	URL                   string `json:"url"`
	AuthHeader            string `json:"authHeader"`
	AuthValue             string `json:"authValue"`
	AuthValueCredentialID string `json:"authValueCredentialId,omitempty"`
	Format                string `json:"format"`
	IPField               string `json:"ipField"`
	MACField              string `json:"macField"`
	HostField             string `json:"hostField"`
	CSVDelimiter          string `json:"csvDelimiter"`
	IPColumn              int    `json:"ipColumn"`
	MACColumn             int    `json:"macColumn"`
	HostColumn            int    `json:"hostColumn"`
}

// DefaultSettings returns the connector defaults: only upnp-igd enabled.
func DefaultSettings() Settings {
	return normalize(Settings{
		Enabled: map[string]bool{
			KeyUPnPIGD:  true,
			KeySNMP:     false,
			KeyDHCPHTTP: false,
			KeyUniFi:    false,
			KeyTPLink:   false,
			KeyNetgear:  false,
			KeyOrbi:     false,
			KeyOmada:    false,
			KeyAsus:     false,
		},
	})
}

// IsEnabled reports whether the connector with the given key is enabled.
// Unknown keys are disabled.
func (s Settings) IsEnabled(key string) bool {
	return s.Enabled[strings.ToLower(key)]
}

// SettingsStore persists connector settings as a JSON file.
type SettingsStore struct {
	mu       sync.RWMutex
	path     string
	settings Settings
}

// NewSettingsStore loads settings from path. A missing or unreadable
// file keeps the defaults so a broken settings file never stops the
// connectors.
func NewSettingsStore(path string, log zerolog.Logger) *SettingsStore {
	s := &SettingsStore{path: path, settings: DefaultSettings()}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("failed to read connector settings, using defaults")
		}
		return s
	}

	var loaded Settings
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to parse connector settings, using defaults")
		return s
	}
	s.settings = normalize(loaded)
	return s
}

// Get returns a copy of the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.settings)
}

// Update normalizes, persists, and applies new settings.
func (s *SettingsStore) Update(settings Settings) (Settings, error) {
	normalized := normalize(settings)

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		return Settings{}, fmt.Errorf("failed to encode connector settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Settings{}, fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return Settings{}, fmt.Errorf("failed to write connector settings: %w", err)
	}

	s.settings = normalized
	return clone(normalized), nil
}

func normalize(s Settings) Settings {
	enabled := map[string]bool{
		KeyUPnPIGD:  true,
		KeySNMP:     false,
		KeyDHCPHTTP: false,
		KeyUniFi:    false,
		KeyTPLink:   false,
		KeyNetgear:  false,
		KeyOrbi:     false,
		KeyOmada:    false,
		KeyAsus:     false,
	}
	for key, on := range s.Enabled {
		key = strings.ToLower(strings.TrimSpace(key))
		if _, known := enabled[key]; known {
			enabled[key] = on
		}
	}
	s.Enabled = enabled

	s.SNMP.TimeoutSeconds = clamp(s.SNMP.TimeoutSeconds, 1, 15, 3)
	s.SNMP.Port = clamp(s.SNMP.Port, 1, 65535, 161)
	if strings.TrimSpace(s.SNMP.SnmpWalkPath) == "" {
		s.SNMP.SnmpWalkPath = "snmpwalk"
	}
	if strings.TrimSpace(s.SNMP.Community) == "" {
		s.SNMP.Community = "public"
	}
	s.SNMP.CommunityCredentialID = strings.TrimSpace(s.SNMP.CommunityCredentialID)
	s.SNMP.Hosts = dedupeHosts(s.SNMP.Hosts)

	s.DHCPHTTP.URL = strings.TrimSpace(s.DHCPHTTP.URL)
	s.DHCPHTTP.AuthHeader = strings.TrimSpace(s.DHCPHTTP.AuthHeader)
	s.DHCPHTTP.AuthValueCredentialID = strings.TrimSpace(s.DHCPHTTP.AuthValueCredentialID)

	s.UniFi.BaseURL = strings.TrimRight(strings.TrimSpace(s.UniFi.BaseURL), "/")
	if strings.TrimSpace(s.UniFi.Site) == "" {
		s.UniFi.Site = "default"
	} else {
		s.UniFi.Site = strings.TrimSpace(s.UniFi.Site)
	}
	s.UniFi.Username = strings.TrimSpace(s.UniFi.Username)
	s.UniFi.PasswordCredentialID = strings.TrimSpace(s.UniFi.PasswordCredentialID)

	s.TPLink = normalizeLease(s.TPLink)
	s.Netgear = normalizeLease(s.Netgear)
	s.Orbi = normalizeLease(s.Orbi)
	s.Omada = normalizeLease(s.Omada)
	s.Asus = normalizeLease(s.Asus)
	return s
}

func normalizeLease(l LeaseHTTPSettings) LeaseHTTPSettings {
	l.URL = strings.TrimSpace(l.URL)
	l.AuthHeader = strings.TrimSpace(l.AuthHeader)
	l.AuthValueCredentialID = strings.TrimSpace(l.AuthValueCredentialID)

	format := strings.ToLower(strings.TrimSpace(l.Format))
	if format != "csv" && format != "keyvalue" {
		format = "json"
	}
	l.Format = format

	if strings.TrimSpace(l.IPField) == "" {
		l.IPField = "ipAddress"
	} else {
		l.IPField = strings.TrimSpace(l.IPField)
	}
	if strings.TrimSpace(l.MACField) == "" {
		l.MACField = "macAddress"
	} else {
		l.MACField = strings.TrimSpace(l.MACField)
	}
	if strings.TrimSpace(l.HostField) == "" {
		l.HostField = "hostname"
	} else {
		l.HostField = strings.TrimSpace(l.HostField)
	}
	if l.CSVDelimiter == "" {
		l.CSVDelimiter = ","
	}
	// All-zero columns mean unconfigured; apply the ip,mac,host layout.
	// Zero stays valid as an explicit index otherwise.
	if l.IPColumn == 0 && l.MACColumn == 0 && l.HostColumn == 0 {
		l.MACColumn, l.HostColumn = 1, 2
	}
	l.IPColumn = clampColumn(l.IPColumn)
	l.MACColumn = clampColumn(l.MACColumn)
	l.HostColumn = clampColumn(l.HostColumn)
	return l
}

func clampColumn(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 50:
		return 50
	default:
		return v
	}
}

func dedupeHosts(hosts []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		key := strings.ToLower(h)
		if h == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h)
	}
	return out
}

func clone(s Settings) Settings {
	out := s
	out.Enabled = make(map[string]bool, len(s.Enabled))
	for k, v := range s.Enabled {
		out.Enabled[k] = v
	}
	out.SNMP.Hosts = append([]string(nil), s.SNMP.Hosts...)
	return out
}

func clamp(v, min, max, def int) int {
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
