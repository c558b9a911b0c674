// Package handler contains the HTTP handlers of the telemetry service.
//
// Routes:
//   - /health, /ready: liveness and dependency readiness
//   - /api/telemetry/stats: live trace count and persistence outcomes
//   - /api/telemetry/probe: runs one traced request end to end
//
// All handlers are safe for concurrent use.
package handler
