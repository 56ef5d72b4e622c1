// Package handler implements the HTTP layer of the device inventory
// API.
//
// APIHandler exposes REST endpoints for devices, presence events,
// observations, analytics, discovery and connector settings, gateway
// fingerprints, credentials, and agent tokens. Routes are registered
// with Go 1.22 method-aware mux patterns.
//
// Agent submissions on POST /api/observations carry an HMAC signature
// in X-LanWatch-Timestamp and X-LanWatch-Signature headers, validated
// against the enrolled token set before the body is parsed.
//
// Middleware provides panic recovery, request logging, and CORS.
package handler
