package discovery

import (
	"encoding/binary"
	"net"
)

// LocalSubnets enumerates the IPv4 subnets attached to non-loopback
// interfaces that are up.
func LocalSubnets() ([]*net.IPNet, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var subnets []*net.IPNet
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil || ip4.IsLoopback() || ip4.IsLinkLocalUnicast() {
				continue
			}
			subnets = append(subnets, &net.IPNet{IP: ip4.Mask(ipnet.Mask), Mask: ipnet.Mask})
		}
	}
	return subnets, nil
}

// HostAddresses expands a subnet into its usable host addresses, skipping
// the network and broadcast addresses. Returns nil when the subnet holds
// more than maxHosts usable addresses.
func HostAddresses(subnet *net.IPNet, maxHosts int) []string {
	ip4 := subnet.IP.To4()
	mask := subnet.Mask
	if ip4 == nil || len(mask) != net.IPv4len {
		return nil
	}

	network := binary.BigEndian.Uint32(ip4.Mask(mask))
	broadcast := network | ^binary.BigEndian.Uint32(mask)

	if broadcast <= network+1 {
		// /31 and /32 have no usable range in classic addressing.
		return nil
	}
	count := int(broadcast - network - 1)
	if count > maxHosts {
		return nil
	}

	hosts := make([]string, 0, count)
	for addr := network + 1; addr < broadcast; addr++ {
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], addr)
		hosts = append(hosts, net.IP(buf[:]).String())
	}
	return hosts
}
