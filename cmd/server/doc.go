// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

/*
Package main is the entry point for the Presence server.

Presence ingests clock-in and clock-out events from Hikvision access-control
terminals and reconciles them into one attendance record per person per
day. Terminals reach it two ways: over a persistent ISUP TCP connection
(XML envelopes, default port 5200) or by posting HTTP event notifications
to /webhook/hikvision.

# Application Architecture

Every long-lived component runs under a suture v4 supervisor tree:

	RootSupervisor ("presence")
	├── DataSupervisor ("data-layer")
	│   └── Store GC (badger value log)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket Hub (attendance:updated, employee:registered)
	│   ├── NATS publisher (optional, -tags nats)
	│   └── Embedded NATS server (optional, -tags nats)
	└── IngressSupervisor ("ingress-layer")
	    ├── ISUP listener
	    └── HTTP Server (webhook, read API, /metrics)

Initialization order:

 1. Configuration: koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog
 3. Store: badger, then the optional directory seed file
 4. Notification sinks: WebSocket hub and, if enabled, NATS
 5. Processor: the reconciliation core shared by both ingress paths
 6. ISUP listener and HTTP router
 7. Supervisor tree, which runs until SIGINT or SIGTERM

# Configuration

	HTTP_PORT=5000                     # webhook and read API
	ISUP_PORT=5200                     # terminal TCP listener
	ISUP_UNKNOWN_PERSON_POLICY=drop    # drop or register
	WEBHOOK_UNKNOWN_PERSON_POLICY=register
	WEBHOOK_RATE_LIMIT_REQUESTS=1200   # per terminal IP per window; limited replies stay 200
	ORG_TIMEZONE=Asia/Tashkent         # dates and HH:MM are in this zone
	BADGER_PATH=/data/presence
	DIRECTORY_SEED_FILE=/etc/presence/people.yaml
	NATS_ENABLED=false
	LOG_LEVEL=info
	LOG_FORMAT=json

# Build Tags

	go build ./cmd/server              # without NATS
	go build -tags nats ./cmd/server   # with NATS publishing

# Signal Handling

On SIGINT or SIGTERM the supervisor cancels every service: the HTTP server
drains in-flight requests, the ISUP listener closes terminal connections,
and the store is closed last.
*/
package main
