// Package connector integrates router and controller APIs as device
// observation sources.
//
// Each connector implements the Connector interface and is driven by the
// Scheduler on a fixed cadence. Connectors are individually enabled
// through the SettingsStore and report health into the StatusStore. The
// Fingerprinter probes default gateways to suggest which connector is
// worth configuring for a given network.
package connector
