// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRouterHealth(t *testing.T) {
	env := newTestEnv(t)

	var health HealthStatus
	decodeAPI(t, env.do(t, http.MethodGet, "/api/v1/health", "", ""), http.StatusOK, &health)
	if health.Status != "healthy" || !health.StoreConnected || health.Version != "test" {
		t.Errorf("health = %+v", health)
	}

	decodeAPI(t, env.do(t, http.MethodGet, "/api/v1/health/live", "", ""), http.StatusOK, nil)
	decodeAPI(t, env.do(t, http.MethodGet, "/api/v1/health/ready", "", ""), http.StatusOK, nil)
}

func TestRouterHealthStoreDown(t *testing.T) {
	env := newTestEnv(t)
	_ = env.store.Close()

	var health HealthStatus
	decodeAPI(t, env.do(t, http.MethodGet, "/api/v1/health", "", ""), http.StatusOK, &health)
	if health.Status != "degraded" || health.StoreConnected {
		t.Errorf("health = %+v, want degraded", health)
	}

	resp := decodeAPI(t, env.do(t, http.MethodGet, "/api/v1/health/ready", "", ""), http.StatusServiceUnavailable, nil)
	if resp.Error == nil || resp.Error.Code != CodeNotReady {
		t.Errorf("ready error = %+v", resp.Error)
	}

	// Liveness does not depend on the store.
	decodeAPI(t, env.do(t, http.MethodGet, "/api/v1/health/live", "", ""), http.StatusOK, nil)
}

func TestRouterFallbacks(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"unknown route", http.MethodGet, "/api/v1/nothing-here", http.StatusNotFound, "NOT_FOUND"},
		{"unknown top level", http.MethodGet, "/favicon.ico", http.StatusNotFound, "NOT_FOUND"},
		{"wrong method", http.MethodDelete, "/api/v1/devices", http.StatusMethodNotAllowed, CodeMethodNotAllowed},
		{"webhook get", http.MethodGet, "/webhook/hikvision", http.StatusMethodNotAllowed, CodeMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := decodeAPI(t, env.do(t, tt.method, tt.path, "", ""), tt.wantStatus, nil)
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want %s", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestRouterRequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/health/live", "", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.Header.Set("X-Request-ID", "upstream-42")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "upstream-42" {
		t.Errorf("X-Request-ID = %q, want upstream-42", got)
	}
}

func TestRouterSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/devices", "", "")
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		origin    string
		wantAllow string
	}{
		{"http://monitor.local", "http://monitor.local"},
		{"http://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/attendance", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestRouterRateLimit(t *testing.T) {
	env := newTestEnv(t, withRateLimit(2))

	for i := 0; i < 2; i++ {
		decodeAPI(t, env.do(t, http.MethodGet, "/api/v1/people", "", ""), http.StatusOK, nil)
	}

	resp := decodeAPI(t, env.do(t, http.MethodGet, "/api/v1/people", "", ""), http.StatusTooManyRequests, nil)
	if resp.Error == nil || resp.Error.Code != CodeRateLimited {
		t.Errorf("error = %+v, want %s", resp.Error, CodeRateLimited)
	}

	// The webhook has its own, larger budget.
	if got := decodeWebhook(t, env.do(t, http.MethodGet, "/webhook/hikvision/test", "", "")); !got.Success {
		t.Errorf("webhook test after API limit = %+v", got)
	}
}

func TestRouterWebhookRateLimitAnswers200(t *testing.T) {
	env := newTestEnv(t, withWebhookRateLimit(2))

	times := []string{"2026-03-02T08:05:00+05:00", "2026-03-02T12:00:00+05:00", "2026-03-02T16:30:00+05:00"}
	var last WebhookResponse
	for _, ts := range times {
		last = decodeWebhook(t, env.do(t, http.MethodPost, "/webhook/hikvision", jsonCT, aceEvent("1001", "Alice", ts)))
	}
	if last.Success || last.Message != msgRateLimited {
		t.Errorf("limited delivery = %+v, want success=false message=%q", last, msgRateLimited)
	}

	records, err := env.store.ListByDate(context.Background(), "2026-03-02")
	if err != nil {
		t.Fatalf("ListByDate() error = %v", err)
	}
	if len(records) != 1 || len(records[0].Events) != 2 {
		t.Errorf("records = %+v, want one record with the two admitted events", records)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/webhook/hikvision", jsonCT, aceEvent("1001", "Alice", "2026-03-02T08:05:00+05:00"))

	rec := env.do(t, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"presence_webhook_requests_total", "presence_api_requests_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
