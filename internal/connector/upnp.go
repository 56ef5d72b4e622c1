package connector

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/domain"
)

const (
	igdSearchTarget = "urn:schemas-upnp-org:device:InternetGatewayDevice:1"
	igdSearchAddr   = "239.255.255.250:1900"
	igdCollectTime  = 2 * time.Second
)

// UPnPIGDConnector discovers internet gateway devices with an SSDP
// M-SEARCH and enriches each hit by fetching its device description
// document.
type UPnPIGDConnector struct {
	sink   Sink
	client *http.Client
	log    zerolog.Logger
}

// NewUPnPIGDConnector creates the upnp-igd connector.
func NewUPnPIGDConnector(sink Sink, log zerolog.Logger) *UPnPIGDConnector {
	return &UPnPIGDConnector{
		sink:   sink,
		client: &http.Client{Timeout: 3 * time.Second},
		log:    log.With().Str("component", "connector").Str("key", KeyUPnPIGD).Logger(),
	}
}

func (c *UPnPIGDConnector) Key() string { return KeyUPnPIGD }

func (c *UPnPIGDConnector) Run(ctx context.Context, settings Settings) error {
	locations, err := c.search(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, location := range locations {
		obs, err := c.describe(ctx, location)
		if err != nil {
			c.log.Debug().Err(err).Str("location", location).Msg("failed to fetch device description")
			continue
		}
		obs.ObservedAt = now
		if _, err := c.sink.Ingest(ctx, *obs); err != nil {
			c.log.Warn().Err(err).Str("ip", obs.IPAddress).Msg("failed to ingest gateway")
		}
	}
	return nil
}

// search sends a single M-SEARCH and collects LOCATION headers for about
// two seconds.
func (c *UPnPIGDConnector) search(ctx context.Context) ([]string, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("failed to open ssdp socket: %w", err)
	}
	defer conn.Close()

	dst, err := net.ResolveUDPAddr("udp4", igdSearchAddr)
	if err != nil {
		return nil, err
	}

	request := "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: " + igdSearchAddr + "\r\n" +
		`MAN: "ssdp:discover"` + "\r\n" +
		"MX: 1\r\n" +
		"ST: " + igdSearchTarget + "\r\n\r\n"
	if _, err := conn.WriteTo([]byte(request), dst); err != nil {
		return nil, fmt.Errorf("failed to send m-search: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	_ = conn.SetReadDeadline(time.Now().Add(igdCollectTime))

	var locations []string
	seen := make(map[string]struct{})
	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			break
		}
		location := ssdpLocation(string(buf[:n]))
		if location == "" {
			continue
		}
		if _, dup := seen[location]; dup {
			continue
		}
		seen[location] = struct{}{}
		locations = append(locations, location)
	}
	return locations, nil
}

func ssdpLocation(response string) string {
	for _, line := range strings.Split(response, "\r\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), "location") {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

type igdDescription struct {
	Device struct {
		FriendlyName string `xml:"friendlyName"`
		Manufacturer string `xml:"manufacturer"`
		ModelName    string `xml:"modelName"`
	} `xml:"device"`
}

// describe fetches the description document behind a LOCATION URL and
// turns it into a gateway observation.
func (c *UPnPIGDConnector) describe(ctx context.Context, location string) (*domain.Observation, error) {
	parsed, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("bad location url: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		return nil, fmt.Errorf("location %q has no host", location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var desc igdDescription
	if err := xml.Unmarshal(body, &desc); err != nil {
		return nil, fmt.Errorf("failed to parse description: %w", err)
	}

	return &domain.Observation{
		Source:      KeyUPnPIGD,
		IPAddress:   host,
		Hostname:    desc.Device.FriendlyName,
		Vendor:      desc.Device.Manufacturer,
		TypeHint:    "gateway",
		ServiceHint: desc.Device.ModelName,
	}, nil
}
