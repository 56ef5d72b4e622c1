package connector

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/domain"
)

// UniFiConnector polls a UniFi controller's client list. Login is
// cookie-based; the UniFi OS endpoint is tried first with the classic
// controller endpoint as fallback.
type UniFiConnector struct {
	sink     Sink
	resolver Resolver
	log      zerolog.Logger

	// newClient is swapped out in tests to pin the transport.
	newClient func(skipTLSVerify bool) (*http.Client, error)
}

// NewUniFiConnector creates the unifi connector.
func NewUniFiConnector(sink Sink, resolver Resolver, log zerolog.Logger) *UniFiConnector {
	return &UniFiConnector{
		sink:      sink,
		resolver:  resolver,
		log:       log.With().Str("component", "connector").Str("key", KeyUniFi).Logger(),
		newClient: newUniFiClient,
	}
}

func (c *UniFiConnector) Key() string { return KeyUniFi }

func (c *UniFiConnector) Run(ctx context.Context, settings Settings) error {
	cfg := settings.UniFi
	if cfg.BaseURL == "" || cfg.Username == "" {
		return nil
	}
	password := resolveAuth(c.resolver, cfg.PasswordCredentialID, cfg.Password)
	if password == "" {
		return fmt.Errorf("unifi connector has no password configured")
	}

	client, err := c.newClient(cfg.SkipTLSVerify)
	if err != nil {
		return err
	}

	if err := c.login(ctx, client, cfg, password); err != nil {
		return err
	}

	site := cfg.Site
	if site == "" {
		site = "default"
	}
	clients, err := c.fetchClients(ctx, client, cfg.BaseURL, site)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, station := range clients {
		if station.IP == "" && station.MAC == "" {
			continue
		}
		hostname := station.Name
		if hostname == "" {
			hostname = station.Hostname
		}
		obs := domain.Observation{
			Source:     KeyUniFi,
			IPAddress:  station.IP,
			MACAddress: station.MAC,
			Hostname:   hostname,
			Vendor:     station.OUI,
			TypeHint:   "client",
			ObservedAt: now,
		}
		if _, err := c.sink.Ingest(ctx, obs); err != nil {
			c.log.Warn().Err(err).Str("mac", station.MAC).Msg("failed to ingest unifi client")
		}
	}
	return nil
}

// login authenticates against api/auth/login (UniFi OS), retrying
// api/login (classic controller) on failure.
func (c *UniFiConnector) login(ctx context.Context, client *http.Client, cfg UniFiSettings, password string) error {
	payload, err := json.Marshal(map[string]string{
		"username": cfg.Username,
		"password": password,
	})
	if err != nil {
		return err
	}

	if err := postLogin(ctx, client, cfg.BaseURL+"/api/auth/login", payload); err == nil {
		return nil
	}
	if err := postLogin(ctx, client, cfg.BaseURL+"/api/login", payload); err != nil {
		return fmt.Errorf("unifi login failed: %w", err)
	}
	return nil
}

func postLogin(ctx context.Context, client *http.Client, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

type unifiStation struct {
	MAC      string `json:"mac"`
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
	Name     string `json:"name"`
	OUI      string `json:"oui"`
}

func (c *UniFiConnector) fetchClients(ctx context.Context, client *http.Client, baseURL, site string) ([]unifiStation, error) {
	url := fmt.Sprintf("%s/proxy/network/api/s/%s/stat/sta", baseURL, site)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s from client list", resp.Status)
	}

	var body struct {
		Data []unifiStation `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse client list: %w", err)
	}
	return body.Data, nil
}

func newUniFiClient(skipTLSVerify bool) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if skipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{
		Jar:       jar,
		Transport: transport,
		Timeout:   6 * time.Second,
	}, nil
}
