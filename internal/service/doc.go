// Package service implements business logic for the lanwatch server.
//
// This package provides service layers that coordinate between the
// observation producers (scanners, listeners, connectors, agents), the
// HTTP handlers, and the repository layer.
//
// # Services
//
// DeviceService is the heart of the system: it resolves every incoming
// Observation to a durable device identity (MAC first, IP second),
// maintains the join/leave presence timeline, and applies the classifier
// before each device state is persisted. All writes are serialized, so
// producers can ingest concurrently without racing identities.
//
// AnalyticsService derives presence statistics (network-wide counts and
// per-device uptime) from the event timeline.
//
// # Event System
//
// State changes are published on EventBus for delivery to connected
// clients via Server-Sent Events (SSE). Each subscriber owns an unbounded
// queue, so publishing never blocks and events are never dropped.
package service
