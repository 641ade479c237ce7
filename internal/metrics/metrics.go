// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

// Package metrics holds the Prometheus collectors for Presence. Collectors
// are package-level and registered with the default registry; callers use
// the Record* helpers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ISUP listener
	ISUPConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_isup_connections_active",
			Help: "Number of open terminal TCP connections",
		},
	)

	ISUPDevicesRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_isup_devices_registered",
			Help: "Number of device IDs currently in the registry",
		},
	)

	ISUPEnvelopesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_isup_envelopes_total",
			Help: "Decoded ISUP envelopes by command",
		},
		[]string{"command"}, // Register, Heartbeat, EventNotification, Alarm, other
	)

	ISUPDecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_isup_decode_errors_total",
			Help: "Envelopes dropped because they could not be decoded",
		},
	)

	ISUPConnectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_isup_connection_errors_total",
			Help: "Connections closed because of an error",
		},
		[]string{"reason"}, // socket, frame_too_large, write, panic
	)

	// Reconciliation
	AttendanceEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_attendance_events_total",
			Help: "Events appended to attendance records",
		},
		[]string{"source", "direction"},
	)

	AttendanceProcessErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_attendance_process_errors_total",
			Help: "Seen events that did not produce a write",
		},
		[]string{"source", "reason"}, // invalid, unknown_person, duplicate, lookup, store
	)

	AttendanceProcessDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "presence_attendance_process_duration_seconds",
			Help:    "Time to reconcile one seen event",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	PeopleAutoRegistered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_people_auto_registered_total",
			Help: "People created from unknown identifiers",
		},
		[]string{"source"},
	)

	// Webhook ingress
	WebhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_webhook_requests_total",
			Help: "Webhook requests by outcome",
		},
		[]string{"outcome"}, // processed, duplicate, no_identifier, invalid_payload, invalid_time, invalid_event, unknown_person, error, disabled, rate_limited
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_api_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "presence_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	// Change notifications
	NotifyPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_notify_publish_total",
			Help: "Change notifications by sink and outcome",
		},
		[]string{"sink", "outcome"}, // outcome: ok, dropped, error
	)

	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_websocket_connections_active",
			Help: "Number of connected WebSocket observers",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "presence_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Storage
	StoreGCRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_store_gc_runs_total",
			Help: "Badger value-log GC passes by result",
		},
		[]string{"result"}, // rewritten, noop, error
	)
)

// RecordISUPEnvelope counts a decoded envelope. Unknown commands are
// collapsed into "other" to keep label cardinality bounded.
func RecordISUPEnvelope(command string) {
	switch command {
	case "Register", "Heartbeat", "EventNotification", "Alarm":
	default:
		command = "other"
	}
	ISUPEnvelopesTotal.WithLabelValues(command).Inc()
}

// RecordISUPConnectionError counts a connection torn down by reason.
func RecordISUPConnectionError(reason string) {
	ISUPConnectionErrors.WithLabelValues(reason).Inc()
}

// RecordAttendanceEvent records a successful reconciliation.
func RecordAttendanceEvent(source, direction string, duration time.Duration) {
	AttendanceEventsTotal.WithLabelValues(source, direction).Inc()
	AttendanceProcessDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordProcessError records a seen event that produced no write.
func RecordProcessError(source, reason string) {
	AttendanceProcessErrors.WithLabelValues(source, reason).Inc()
}

// RecordWebhook records a webhook outcome.
func RecordWebhook(outcome string) {
	WebhookRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordNotify records a change-notification delivery attempt.
func RecordNotify(sink, outcome string) {
	NotifyPublishTotal.WithLabelValues(sink, outcome).Inc()
}
