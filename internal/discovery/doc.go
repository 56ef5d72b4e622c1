// Package discovery contains the active side of device discovery: subnet
// sweeps (ICMP with TCP fallback, optionally delegated to nmap), TCP port
// probing, SSDP broadcast, passive multicast/broadcast listeners, and the
// presence sweeper. Everything here produces Observations and hands them
// to the device service; nothing here owns device identity.
package discovery
