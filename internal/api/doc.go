// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

/*
Package api provides the HTTP layer for Presence: the Hikvision webhook
ingress, the device-status query, attendance listings, health probes and
the WebSocket endpoint.

Routes:

  - POST /webhook/hikvision: terminal event notifications (JSON, multipart
    or urlencoded). Always answers 200 with {success, message, employee?, time?}
    because terminals retry anything else.
  - GET|POST /webhook/hikvision/test: connectivity check
  - GET /webhook/hikvision/status: ingress settings and connected devices
  - GET /api/v1/devices: connected terminal sessions
  - GET /api/v1/attendance?date=YYYY-MM-DD: records for an organization-local date
  - GET /api/v1/people: the person directory
  - GET /api/v1/health, /api/v1/health/live, /api/v1/health/ready
  - GET /api/v1/ws: WebSocket change notifications
  - GET /metrics: Prometheus

Everything under /api/v1 answers with models.APIResponse.

Usage Example:

	handler := api.NewHandler(api.HandlerConfig{...}, processor, st, registry, hub, dedup)
	router := api.NewRouter(handler, api.NewChiMiddleware(mwCfg), websocket.Handler(hub, origins))
	srv := &http.Server{Addr: ":5000", Handler: router.SetupChi()}
*/
package api
