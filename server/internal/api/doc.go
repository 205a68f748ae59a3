// Package api implements the HTTP REST API for pulsebridge-server.
//
// New(store, opts) returns an http.Handler that serves:
//
//	GET /api/v1/health           live reading count and newest key
//	GET /api/v1/readings         all live readings ordered by key
//	GET /api/v1/readings/{key}   single reading; 404 if unknown or stale
//	GET /api/v1/latest           most recently stored reading; 404 if none
//	GET /api/v1/alerts           firing and recently resolved heart-rate alerts
//
// and a Realtime Database shaped surface so the agent's firebase sink can
// write to this server directly:
//
//	PUT /db/{path}/{key}.json    store {"bpm","timestamp"}; echoes the payload
//	GET /db/{path}/{key}.json    stored payload or null
//	GET /db/{path}.json          key → payload map, or null when empty
//
// PUT bodies are validated with types.Record.Validate, the same check the
// gRPC receiver applies. opts.WriteAuth guards PUT only.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
