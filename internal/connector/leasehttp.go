package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/domain"
)

// lease is one parsed lease row regardless of payload format.
type lease struct {
	IP       string
	MAC      string
	Hostname string
}

// LeaseHTTPConnector polls a generic HTTP lease-list endpoint. One
// instance per router family; they differ only in key, source tag, and
// which settings block they read.
type LeaseHTTPConnector struct {
	key      string
	source   string
	selector func(Settings) LeaseHTTPSettings
	sink     Sink
	resolver Resolver
	client   *http.Client
	log      zerolog.Logger
}

// Sink receives synthesized observations; implemented by the device
// service.
type Sink interface {
	Ingest(ctx context.Context, obs domain.Observation) (*domain.Device, error)
}

// NewLeaseHTTPConnector creates one lease poller instance.
func NewLeaseHTTPConnector(key, source string, selector func(Settings) LeaseHTTPSettings, sink Sink, resolver Resolver, log zerolog.Logger) *LeaseHTTPConnector {
	return &LeaseHTTPConnector{
		key:      key,
		source:   source,
		selector: selector,
		sink:     sink,
		resolver: resolver,
		client:   &http.Client{Timeout: 6 * time.Second},
		log:      log.With().Str("component", "connector").Str("key", key).Logger(),
	}
}

// NewLeaseHTTPConnectors builds the full router-family set.
func NewLeaseHTTPConnectors(sink Sink, resolver Resolver, log zerolog.Logger) []*LeaseHTTPConnector {
	return []*LeaseHTTPConnector{
		NewLeaseHTTPConnector(KeyTPLink, "tplink-lease", func(s Settings) LeaseHTTPSettings { return s.TPLink }, sink, resolver, log),
		NewLeaseHTTPConnector(KeyNetgear, "netgear-lease", func(s Settings) LeaseHTTPSettings { return s.Netgear }, sink, resolver, log),
		NewLeaseHTTPConnector(KeyOrbi, "orbi-lease", func(s Settings) LeaseHTTPSettings { return s.Orbi }, sink, resolver, log),
		NewLeaseHTTPConnector(KeyOmada, "omada-lease", func(s Settings) LeaseHTTPSettings { return s.Omada }, sink, resolver, log),
		NewLeaseHTTPConnector(KeyAsus, "asus-lease", func(s Settings) LeaseHTTPSettings { return s.Asus }, sink, resolver, log),
	}
}

func (c *LeaseHTTPConnector) Key() string { return c.key }

// Run fetches the lease list and emits one observation per lease with at
// least an IP or MAC.
func (c *LeaseHTTPConnector) Run(ctx context.Context, settings Settings) error {
	cfg := c.selector(settings)
	if cfg.URL == "" {
		return nil
	}

	body, err := fetch(ctx, c.client, cfg.URL, cfg.AuthHeader, resolveAuth(c.resolver, cfg.AuthValueCredentialID, cfg.AuthValue))
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, l := range parseLeases(cfg, body) {
		if l.IP == "" && l.MAC == "" {
			continue
		}
		obs := domain.Observation{
			Source:     c.source,
			IPAddress:  l.IP,
			MACAddress: l.MAC,
			Hostname:   l.Hostname,
			TypeHint:   "dhcp-lease",
			ObservedAt: now,
		}
		if _, err := c.sink.Ingest(ctx, obs); err != nil {
			c.log.Warn().Err(err).Str("ip", l.IP).Msg("failed to ingest lease")
		}
	}
	return nil
}

// DHCPHTTPConnector polls a fixed-shape JSON lease endpoint: an array of
// objects with ipAddress/macAddress/hostname fields.
type DHCPHTTPConnector struct {
	sink     Sink
	resolver Resolver
	client   *http.Client
	log      zerolog.Logger
}

// NewDHCPHTTPConnector creates the dhcp-http connector.
func NewDHCPHTTPConnector(sink Sink, resolver Resolver, log zerolog.Logger) *DHCPHTTPConnector {
	return &DHCPHTTPConnector{
		sink:     sink,
		resolver: resolver,
		client:   &http.Client{Timeout: 5 * time.Second},
		log:      log.With().Str("component", "connector").Str("key", KeyDHCPHTTP).Logger(),
	}
}

func (c *DHCPHTTPConnector) Key() string { return KeyDHCPHTTP }

func (c *DHCPHTTPConnector) Run(ctx context.Context, settings Settings) error {
	cfg := settings.DHCPHTTP
	if cfg.URL == "" {
		return nil
	}

	body, err := fetch(ctx, c.client, cfg.URL, cfg.AuthHeader, resolveAuth(c.resolver, cfg.AuthValueCredentialID, cfg.AuthValue))
	if err != nil {
		return err
	}

	var leases []struct {
		IPAddress  string `json:"ipAddress"`
		MACAddress string `json:"macAddress"`
		Hostname   string `json:"hostname"`
	}
	if err := json.Unmarshal(body, &leases); err != nil {
		return fmt.Errorf("failed to parse lease list: %w", err)
	}

	now := time.Now().UTC()
	for _, l := range leases {
		if l.IPAddress == "" {
			continue
		}
		obs := domain.Observation{
			Source:     KeyDHCPHTTP,
			IPAddress:  l.IPAddress,
			MACAddress: l.MACAddress,
			Hostname:   l.Hostname,
			TypeHint:   "dhcp-lease",
			ObservedAt: now,
		}
		if _, err := c.sink.Ingest(ctx, obs); err != nil {
			c.log.Warn().Err(err).Str("ip", l.IPAddress).Msg("failed to ingest lease")
		}
	}
	return nil
}

// fetch GETs url with an optional auth header and returns the body.
func fetch(ctx context.Context, client *http.Client, url, authHeader, authValue string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if authHeader != "" && authValue != "" {
		req.Header.Set(authHeader, authValue)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s from %s", resp.Status, url)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

// resolveAuth prefers the vault credential, falling back to the
// plaintext setting.
func resolveAuth(resolver Resolver, credentialID, plaintext string) string {
	if resolver != nil {
		if value, ok := resolver.TryResolve(credentialID); ok {
			return value
		}
	}
	return plaintext
}

func parseLeases(cfg LeaseHTTPSettings, body []byte) []lease {
	switch cfg.Format {
	case "csv":
		return parseCSVLeases(cfg, string(body))
	case "keyvalue":
		return parseKeyValueLeases(cfg, string(body))
	default:
		return parseJSONLeases(cfg, body)
	}
}

func parseJSONLeases(cfg LeaseHTTPSettings, body []byte) []lease {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil
	}

	str := func(item map[string]json.RawMessage, field string) string {
		raw, ok := item[field]
		if !ok {
			return ""
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}

	leases := make([]lease, 0, len(items))
	for _, item := range items {
		leases = append(leases, lease{
			IP:       str(item, cfg.IPField),
			MAC:      str(item, cfg.MACField),
			Hostname: str(item, cfg.HostField),
		})
	}
	return leases
}

func parseCSVLeases(cfg LeaseHTTPSettings, body string) []lease {
	maxCol := cfg.IPColumn
	if cfg.MACColumn > maxCol {
		maxCol = cfg.MACColumn
	}
	if cfg.HostColumn > maxCol {
		maxCol = cfg.HostColumn
	}

	var leases []lease
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, cfg.CSVDelimiter)
		if len(parts) <= maxCol {
			continue
		}
		leases = append(leases, lease{
			IP:       strings.TrimSpace(parts[cfg.IPColumn]),
			MAC:      strings.TrimSpace(parts[cfg.MACColumn]),
			Hostname: strings.TrimSpace(parts[cfg.HostColumn]),
		})
	}
	return leases
}

func parseKeyValueLeases(cfg LeaseHTTPSettings, body string) []lease {
	var leases []lease
	var current lease

	flush := func() {
		if current.IP != "" || current.MAC != "" {
			leases = append(leases, current)
		}
		current = lease{}
	}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}

		key, value, ok := strings.Cut(trimmed, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case strings.ToLower(cfg.IPField):
			current.IP = value
		case strings.ToLower(cfg.MACField):
			current.MAC = value
		case strings.ToLower(cfg.HostField):
			current.Hostname = value
		}
	}
	flush()
	return leases
}
