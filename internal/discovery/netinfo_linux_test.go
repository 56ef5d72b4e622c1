//go:build linux

package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestParseARPFile(t *testing.T) {
	content := `IP address       HW type     Flags       HW address            Mask     Device
192.168.1.1      0x1         0x2         a4:2b:b0:11:22:33     *        eth0
192.168.1.50     0x1         0x0         00:00:00:00:00:00     *        eth0
192.168.1.7      0x1         0x2         B8:27:EB:AA:BB:CC     *        eth0
`
	table := parseARPFile(writeTempFile(t, "arp", content))

	if len(table) != 2 {
		t.Fatalf("got %d entries, want 2 (incomplete entry skipped): %v", len(table), table)
	}
	if table["192.168.1.1"] != "a4:2b:b0:11:22:33" {
		t.Fatalf("gateway mac = %q", table["192.168.1.1"])
	}
	if table["192.168.1.7"] != "b8:27:eb:aa:bb:cc" {
		t.Fatalf("mac not lowercased: %q", table["192.168.1.7"])
	}
}

func TestParseRouteFile(t *testing.T) {
	// Gateway 192.168.1.1 is 0101A8C0 in little-endian hex.
	content := "Iface\tDestination\tGateway \tFlags\tRefCnt\tUse\tMetric\tMask\t\tMTU\tWindow\tIRTT\n" +
		"eth0\t00000000\t0101A8C0\t0003\t0\t0\t100\t00000000\t0\t0\t0\n" +
		"eth0\t0000A8C0\t00000000\t0001\t0\t0\t100\t00FFFFFF\t0\t0\t0\n"

	gateways := parseRouteFile(writeTempFile(t, "route", content))

	if len(gateways) != 1 {
		t.Fatalf("got %v, want one default gateway", gateways)
	}
	if gateways[0] != "192.168.1.1" {
		t.Fatalf("gateway = %q, want 192.168.1.1", gateways[0])
	}
}

func TestParseFilesMissing(t *testing.T) {
	if table := parseARPFile("/does/not/exist"); len(table) != 0 {
		t.Fatalf("expected empty table, got %v", table)
	}
	if gateways := parseRouteFile("/does/not/exist"); gateways != nil {
		t.Fatalf("expected no gateways, got %v", gateways)
	}
}
