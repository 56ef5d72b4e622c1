package discovery

import (
	"net"
	"testing"
)

func mustParseCIDR(t *testing.T, cidr string) *net.IPNet {
	t.Helper()
	_, subnet, err := net.ParseCIDR(cidr)
	if err != nil {
		t.Fatalf("bad cidr %q: %v", cidr, err)
	}
	return subnet
}

func TestHostAddressesSmallSubnet(t *testing.T) {
	hosts := HostAddresses(mustParseCIDR(t, "192.168.1.0/29"), 1024)

	want := []string{
		"192.168.1.1", "192.168.1.2", "192.168.1.3",
		"192.168.1.4", "192.168.1.5", "192.168.1.6",
	}
	if len(hosts) != len(want) {
		t.Fatalf("got %d hosts, want %d: %v", len(hosts), len(want), hosts)
	}
	for i := range want {
		if hosts[i] != want[i] {
			t.Fatalf("hosts[%d] = %s, want %s", i, hosts[i], want[i])
		}
	}
}

func TestHostAddressesSlash24(t *testing.T) {
	hosts := HostAddresses(mustParseCIDR(t, "10.0.0.0/24"), 1024)
	if len(hosts) != 254 {
		t.Fatalf("got %d hosts, want 254", len(hosts))
	}
	if hosts[0] != "10.0.0.1" || hosts[253] != "10.0.0.254" {
		t.Fatalf("range = %s..%s", hosts[0], hosts[253])
	}
}

func TestHostAddressesOversizedSkipped(t *testing.T) {
	if hosts := HostAddresses(mustParseCIDR(t, "10.0.0.0/16"), 1024); hosts != nil {
		t.Fatalf("oversized subnet should be skipped, got %d hosts", len(hosts))
	}
}

func TestHostAddressesDegenerateSubnets(t *testing.T) {
	if hosts := HostAddresses(mustParseCIDR(t, "10.0.0.0/31"), 1024); hosts != nil {
		t.Fatalf("/31 should yield no hosts, got %v", hosts)
	}
	if hosts := HostAddresses(mustParseCIDR(t, "10.0.0.1/32"), 1024); hosts != nil {
		t.Fatalf("/32 should yield no hosts, got %v", hosts)
	}
}
