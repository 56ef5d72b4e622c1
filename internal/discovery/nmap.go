package discovery

import (
	"context"
	"fmt"

	nmap "github.com/Ullaakut/nmap/v3"
)

// nmapSweep runs an nmap ping sweep over a CIDR and returns the IPs of
// hosts reported up. Used instead of the built-in pinger when enabled in
// settings and the binary is present.
func nmapSweep(ctx context.Context, cidr string) ([]string, error) {
	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets(cidr),
		nmap.WithPingScan(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create nmap scanner: %w", err)
	}

	result, _, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("nmap sweep failed: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("nmap returned no result")
	}

	var ips []string
	for _, host := range result.Hosts {
		if host.Status.State != "up" {
			continue
		}
		for _, addr := range host.Addresses {
			if addr.AddrType == "ipv4" {
				ips = append(ips, addr.Addr)
				break
			}
		}
	}
	return ips, nil
}

// nmapAvailable reports whether the nmap binary can be executed.
func nmapAvailable(ctx context.Context) bool {
	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets("localhost"),
		nmap.WithListScan(),
	)
	if err != nil {
		return false
	}
	_, _, err = scanner.Run()
	return err == nil
}
