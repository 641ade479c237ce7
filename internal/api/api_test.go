// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/presence/internal/attendance"
	"github.com/tomtom215/presence/internal/cache"
	"github.com/tomtom215/presence/internal/device"
	"github.com/tomtom215/presence/internal/logging"
	"github.com/tomtom215/presence/internal/models"
	"github.com/tomtom215/presence/internal/store"
)

func init() {
	logging.SetLogger(logging.NewTestLogger(io.Discard))
}

var orgZone = time.FixedZone("UTC+5", 5*60*60)

type testEnv struct {
	store     *store.Store
	registry  *device.Registry
	processor *attendance.Processor
	handler   *Handler
	router    http.Handler
}

type envOption func(*HandlerConfig, *ChiMiddlewareConfig, *bool)

func withPolicy(p attendance.UnknownPersonPolicy) envOption {
	return func(c *HandlerConfig, _ *ChiMiddlewareConfig, _ *bool) { c.WebhookPolicy = p }
}

func withWebhookDisabled() envOption {
	return func(c *HandlerConfig, _ *ChiMiddlewareConfig, _ *bool) { c.WebhookEnabled = false }
}

func withoutDedup() envOption {
	return func(_ *HandlerConfig, _ *ChiMiddlewareConfig, dedup *bool) { *dedup = false }
}

func withRateLimit(n int) envOption {
	return func(_ *HandlerConfig, m *ChiMiddlewareConfig, _ *bool) {
		m.RateLimitDisabled = false
		m.RateLimitRequests = n
	}
}

func withWebhookRateLimit(n int) envOption {
	return func(_ *HandlerConfig, m *ChiMiddlewareConfig, _ *bool) {
		m.RateLimitDisabled = false
		m.WebhookRateLimitRequests = n
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	st, err := store.Open(store.Config{InMemory: true})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := HandlerConfig{
		WebhookEnabled:        true,
		WebhookPolicy:         attendance.PolicyRegister,
		WebhookMaxBodyBytes:   1 << 20,
		DeviceListenerEnabled: true,
		DevicePort:            5200,
		Version:               "test",
	}
	mwCfg := DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = []string{"http://monitor.local"}
	mwCfg.RateLimitDisabled = true
	useDedup := true
	for _, opt := range opts {
		opt(&cfg, mwCfg, &useDedup)
	}

	var dedup *cache.DedupCache
	if useDedup {
		dedup = cache.NewDedupCache(100, time.Minute)
	}

	registry := device.NewRegistry()
	processor := attendance.NewProcessor(attendance.Config{
		Location:    orgZone,
		Deduplicate: true,
		DefaultRole: "staff",
	}, st, st, nil)

	h := NewHandler(cfg, processor, st, registry, nil, dedup)
	return &testEnv{
		store:     st,
		registry:  registry,
		processor: processor,
		handler:   h,
		router:    NewRouter(h, NewChiMiddleware(mwCfg), nil).SetupChi(),
	}
}

func (e *testEnv) do(t *testing.T, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeWebhook(t *testing.T, rec *httptest.ResponseRecorder) WebhookResponse {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var resp WebhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal webhook response: %v (%s)", err, rec.Body.String())
	}
	return resp
}

// apiEnvelope mirrors models.APIResponse with a raw data field.
type apiEnvelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func decodeAPI(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, data interface{}) apiEnvelope {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, wantStatus, rec.Body.String())
	}
	var env apiEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v (%s)", err, rec.Body.String())
	}
	if data != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("unmarshal data: %v (%s)", err, env.Data)
		}
	}
	return env
}
