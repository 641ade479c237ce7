// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

/*
Package middleware provides chi-compatible HTTP middleware shared by every
route of the Presence HTTP server.

Key Components:

  - RequestID: X-Request-ID propagation and logging context
  - PrometheusMetrics: request counts and latency labeled by route pattern

Usage:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

PrometheusMetrics labels requests with the chi route pattern rather than the
raw path, so "/api/v1/attendance?date=..." and unknown paths do not grow the
label set.
*/
package middleware
