// Package api implements the local HTTP REST API and WebSocket server for displayd.
//
// # Routes
//
// All routes live under /api/v1:
//
//	GET  /health
//	GET  /metrics
//	GET  /monitors
//	GET  /monitors/{slug}
//	PUT  /monitors/{slug}/brightness   {"value": 0-100}
//	PUT  /monitors/{slug}/contrast     {"value": 0-100}
//	POST /monitors/{slug}/refresh
//	GET  /monitors/{slug}/history      ?limit=&kind=&since=
//	POST /rescan
//	GET  /diagnostics
//	GET  /ws
//
// {slug} accepts either the monitor slug or its full identity.
//
// # Access results
//
// Monitor operations answer with the access result in the body and map its
// status to HTTP: succeeded 200, not_supported 501, no_longer_exists 410,
// every other failure 502.
//
// # WebSocket
//
// Clients subscribe to event channels named after registry event types
// (roster_changed, brightness_changed, contrast_changed,
// controllability_changed) or to "*" for all of them.
//
// The server binds to loopback by default and has no authentication.
package api
