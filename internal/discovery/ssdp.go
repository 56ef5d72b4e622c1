package discovery

import (
	"bufio"
	"context"
	"net"
	"strings"
	"time"

	"lanwatch/internal/domain"
)

const (
	ssdpAddress = "239.255.255.250:1900"

	ssdpSearch = "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 2\r\n" +
		"ST: ssdp:all\r\n" +
		"\r\n"
)

// SSDPProbe multicasts an M-SEARCH and collects unicast replies until the
// timeout elapses. One observation per distinct responder.
func SSDPProbe(ctx context.Context, timeout time.Duration) ([]domain.Observation, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	dst, err := net.ResolveUDPAddr("udp4", ssdpAddress)
	if err != nil {
		return nil, err
	}
	if _, err := conn.WriteTo([]byte(ssdpSearch), dst); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetReadDeadline(deadline)

	var observations []domain.Observation
	seen := make(map[string]bool)
	buf := make([]byte, 2048)

	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			// Deadline exhausted is the normal end of collection.
			break
		}
		ip := peerIP(addr)
		if seen[ip] {
			continue
		}
		seen[ip] = true

		obs := parseSSDPResponse(ip, string(buf[:n]))
		observations = append(observations, obs)
	}
	return observations, nil
}

// parseSSDPResponse extracts the SERVER header as vendor and the USN as
// an opaque hostname-ish identifier.
func parseSSDPResponse(ip, response string) domain.Observation {
	obs := domain.Observation{
		Source:    "ssdp",
		IPAddress: ip,
		TypeHint:  "ssdp",
	}

	scanner := bufio.NewScanner(strings.NewReader(response))
	for scanner.Scan() {
		line := scanner.Text()
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "SERVER":
			obs.Vendor = value
		case "USN":
			obs.Hostname = value
		}
	}
	return obs
}
