//go:build linux

package discovery

import (
	"bufio"
	"encoding/binary"
	"net"
	"os"
	"strconv"
	"strings"
)

// ARPTable reads the kernel neighbor cache and returns IP -> MAC for
// entries with a resolved hardware address.
func ARPTable() map[string]string {
	return parseARPFile("/proc/net/arp")
}

func parseARPFile(path string) map[string]string {
	table := make(map[string]string)

	f, err := os.Open(path)
	if err != nil {
		return table
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Scan() // header

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		ip, mac := fields[0], strings.ToLower(fields[3])
		if mac == "00:00:00:00:00:00" || net.ParseIP(ip) == nil {
			continue
		}
		table[ip] = mac
	}
	return table
}

// DefaultGateways reads the kernel routing table and returns the gateway
// IPs of default routes.
func DefaultGateways() []string {
	return parseRouteFile("/proc/net/route")
}

func parseRouteFile(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var gateways []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	scanner.Scan() // header

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || fields[1] != "00000000" {
			continue
		}
		// Gateway is little-endian hex.
		raw, err := strconv.ParseUint(fields[2], 16, 32)
		if err != nil || raw == 0 {
			continue
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(raw))
		ip := net.IP(buf[:]).String()
		if !seen[ip] {
			seen[ip] = true
			gateways = append(gateways, ip)
		}
	}
	return gateways
}
