//go:build !linux

package discovery

// ARPTable returns an empty table on platforms without a readable
// neighbor cache; observations simply carry no MAC.
func ARPTable() map[string]string {
	return map[string]string{}
}

// DefaultGateways returns no gateways on platforms without a readable
// routing table; the fingerprinter is then a no-op.
func DefaultGateways() []string {
	return nil
}
