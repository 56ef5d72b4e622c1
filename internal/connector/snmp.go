package connector

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/domain"
)

// OID of ipNetToMediaTable, the router's ARP table.
const snmpARPTableOID = "1.3.6.1.2.1.4.22.1"

var snmpMACRe = regexp.MustCompile(`([0-9A-Fa-f]{1,2}:){5}[0-9A-Fa-f]{1,2}`)

// SNMPConnector walks the ARP table of configured routers by shelling
// out to snmpwalk. Using the external binary keeps the MIB handling and
// transport quirks out of this process.
type SNMPConnector struct {
	sink     Sink
	resolver Resolver
	log      zerolog.Logger

	// runWalk is swapped out in tests.
	runWalk func(ctx context.Context, walkPath string, args []string) (string, error)
}

// NewSNMPConnector creates the snmp connector.
func NewSNMPConnector(sink Sink, resolver Resolver, log zerolog.Logger) *SNMPConnector {
	return &SNMPConnector{
		sink:     sink,
		resolver: resolver,
		log:      log.With().Str("component", "connector").Str("key", KeySNMP).Logger(),
		runWalk:  execSNMPWalk,
	}
}

func (c *SNMPConnector) Key() string { return KeySNMP }

// Run walks every configured host. A failing host is logged and skipped
// so one unreachable router does not hide the rest.
func (c *SNMPConnector) Run(ctx context.Context, settings Settings) error {
	cfg := settings.SNMP
	if len(cfg.Hosts) == 0 {
		return nil
	}

	community := cfg.Community
	if c.resolver != nil {
		if value, ok := c.resolver.TryResolve(cfg.CommunityCredentialID); ok {
			community = value
		}
	}

	var lastErr error
	for _, host := range cfg.Hosts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.walkHost(ctx, cfg, community, host); err != nil {
			c.log.Warn().Err(err).Str("host", host).Msg("snmp walk failed")
			lastErr = err
		}
	}
	return lastErr
}

func (c *SNMPConnector) walkHost(ctx context.Context, cfg SNMPSettings, community, host string) error {
	args := []string{
		"-v2c",
		"-c", community,
		"-t", fmt.Sprintf("%d", cfg.TimeoutSeconds),
		"-r", "1",
		fmt.Sprintf("%s:%d", host, cfg.Port),
		snmpARPTableOID,
	}

	walkCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds+5)*time.Second)
	defer cancel()

	output, err := c.runWalk(walkCtx, cfg.SnmpWalkPath, args)
	if err != nil {
		return fmt.Errorf("snmpwalk %s: %w", host, err)
	}

	now := time.Now().UTC()
	count := 0
	for _, entry := range parseSNMPARPOutput(output) {
		obs := entry
		obs.ObservedAt = now
		if _, err := c.sink.Ingest(ctx, obs); err != nil {
			c.log.Warn().Err(err).Str("ip", obs.IPAddress).Msg("failed to ingest arp entry")
			continue
		}
		count++
	}
	c.log.Debug().Str("host", host).Int("entries", count).Msg("snmp walk complete")
	return nil
}

func execSNMPWalk(ctx context.Context, walkPath string, args []string) (string, error) {
	out, err := exec.CommandContext(ctx, walkPath, args...).Output()
	return string(out), err
}

// parseSNMPARPOutput pulls IP/MAC pairs out of raw snmpwalk output.
// ipNetToMediaPhysAddress rows embed the IP in the OID suffix, so the
// MAC value and its IP come from the same line.
func parseSNMPARPOutput(output string) []domain.Observation {
	var entries []domain.Observation
	seen := make(map[string]struct{})

	for _, line := range strings.Split(output, "\n") {
		mac := snmpMACRe.FindString(line)
		if mac == "" {
			continue
		}
		ip := arpEntryIP(line)
		if ip == "" {
			continue
		}
		mac = normalizeSNMPMAC(mac)
		key := ip + "|" + mac
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		entries = append(entries, domain.Observation{
			Source:     KeySNMP,
			IPAddress:  ip,
			MACAddress: mac,
			TypeHint:   "arp-table",
		})
	}
	return entries
}

// arpEntryIP recovers the IP address from the last four OID components
// on the left side of an snmpwalk output line.
func arpEntryIP(line string) string {
	oid, _, ok := strings.Cut(line, "=")
	if !ok {
		return ""
	}
	parts := strings.Split(strings.TrimSpace(oid), ".")
	if len(parts) < 4 {
		return ""
	}
	ip := strings.Join(parts[len(parts)-4:], ".")
	if net.ParseIP(ip) == nil {
		return ""
	}
	return ip
}

// normalizeSNMPMAC pads single-digit hex octets to two digits.
// snmpwalk prints "0:11:22:33:44:5" style octets for values under 0x10.
func normalizeSNMPMAC(mac string) string {
	parts := strings.Split(mac, ":")
	for i, p := range parts {
		if len(p) == 1 {
			parts[i] = "0" + p
		}
	}
	return strings.Join(parts, ":")
}
