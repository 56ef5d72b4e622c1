// Package domain defines the core types shared across lanwatch: the
// ephemeral Observation produced by discovery sources, the durable Device
// identity it resolves to, the append-only observation and event records,
// and the in-memory operational types (connector status, router
// fingerprints, analytics summaries).
//
// Types here carry no behavior beyond what their fields express; all
// resolution and lifecycle logic lives in the service layer.
package domain
