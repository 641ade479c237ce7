// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/presence/internal/models"
)

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	StoreConnected   bool    `json:"storeConnected"`
	ConnectedDevices int     `json:"connectedDevices"`
	WebSocketClients int     `json:"websocketClients"`
	WebhookEnabled   bool    `json:"webhookEnabled"`
	DeviceListener   bool    `json:"deviceListenerEnabled"`
	Uptime           float64 `json:"uptime"`
}

// Health reports overall status. It is always 200; degraded state is in
// the body.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	storeConnected := h.store != nil && h.store.Ping() == nil

	status := "healthy"
	if !storeConnected {
		status = "degraded"
	}

	health := HealthStatus{
		Status:         status,
		Version:        h.cfg.Version,
		StoreConnected: storeConnected,
		WebhookEnabled: h.cfg.WebhookEnabled,
		DeviceListener: h.cfg.DeviceListenerEnabled,
		Uptime:         time.Since(h.startTime).Seconds(),
	}
	if h.registry != nil {
		health.ConnectedDevices = len(h.registry.Snapshot(h.now()))
	}
	if h.wsHub != nil {
		health.WebSocketClients = h.wsHub.GetClientCount()
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   health,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthLive handles liveness probe requests (Kubernetes-style)
// Returns 200 OK if the process is alive, regardless of dependencies
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style)
// Returns 200 OK only if the store answers, else 503.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	var storeErr error
	if h.store == nil {
		storeErr = errStoreUnavailable
	} else {
		storeErr = h.store.Ping()
	}

	if storeErr != nil {
		respondJSON(w, http.StatusServiceUnavailable, &models.APIResponse{
			Status: "error",
			Data: map[string]interface{}{
				"ready": false,
				"store": storeErr.Error(),
			},
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error: &models.APIError{
				Code:    CodeNotReady,
				Message: "Store is not available",
			},
		})
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"ready": true,
			"store": "ok",
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
