// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/presence/internal/attendance"
	"github.com/tomtom215/presence/internal/logging"
	"github.com/tomtom215/presence/internal/metrics"
	"github.com/tomtom215/presence/internal/models"
	"github.com/tomtom215/presence/internal/webhook"
)

// WebhookResponse is the flat reply terminals expect from the webhook.
type WebhookResponse struct {
	Success      bool                   `json:"success"`
	Message      string                 `json:"message"`
	Employee     string                 `json:"employee,omitempty"`
	Time         string                 `json:"time,omitempty"`
	Timestamp    *time.Time             `json:"timestamp,omitempty"`
	ReceivedData map[string]interface{} `json:"receivedData,omitempty"`
}

// WebhookStatus is the body of GET /webhook/hikvision/status.
type WebhookStatus struct {
	Webhook             string                      `json:"webhook"`
	Endpoint            string                      `json:"endpoint"`
	TestEndpoint        string                      `json:"testEndpoint"`
	Method              string                      `json:"method"`
	Description         string                      `json:"description"`
	UnknownPersonPolicy string                      `json:"unknownPersonPolicy"`
	Devices             models.DeviceStatusResponse `json:"devices"`
}

// HikvisionWebhook ingests one terminal event notification.
// POST /webhook/hikvision
//
// Terminals treat any non-200 as a delivery failure and retry, so every
// outcome, including rejection, is answered 200 with success set
// accordingly.
func (h *Handler) HikvisionWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.Ctx(r.Context()).With().Str("component", "webhook").Logger()

	if !h.cfg.WebhookEnabled {
		metrics.RecordWebhook("disabled")
		writeJSON(w, http.StatusOK, WebhookResponse{Success: false, Message: msgWebhookDisabled})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.WebhookMaxBodyBytes)
	fields, err := webhook.ParseRequest(r, h.cfg.WebhookMaxBodyBytes)
	if err != nil {
		metrics.RecordWebhook("invalid_payload")
		log.Warn().
			Err(err).
			Str("content_type", sanitizeLogValue(r.Header.Get("Content-Type"))).
			Msg("Unreadable webhook body")
		writeJSON(w, http.StatusOK, WebhookResponse{Success: false, Message: msgInvalidPayload})
		return
	}

	ev, err := webhook.Normalize(fields, h.now(), h.processor.Location())
	switch {
	case errors.Is(err, webhook.ErrNoPersonID):
		metrics.RecordWebhook("no_identifier")
		log.Warn().Int("fields", len(fields)).Msg("No employee number in webhook data")
		writeJSON(w, http.StatusOK, WebhookResponse{Success: false, Message: msgNoEmployee})
		return
	case errors.Is(err, webhook.ErrInvalidTime):
		metrics.RecordWebhook("invalid_time")
		log.Warn().Err(err).Msg("Webhook event time could not be parsed")
		writeJSON(w, http.StatusOK, WebhookResponse{Success: false, Message: msgInvalidTime})
		return
	case err != nil:
		metrics.RecordWebhook("invalid_payload")
		log.Warn().Err(err).Msg("Webhook payload could not be normalized")
		writeJSON(w, http.StatusOK, WebhookResponse{Success: false, Message: msgInvalidPayload})
		return
	}

	log = log.With().Str("person_id", sanitizeLogValue(ev.PersonID)).Logger()

	// Re-deliveries carry the terminal's own timestamp; receive-time events
	// cannot be told apart from new ones and are never suppressed.
	dedupKey := ""
	if ev.TimeFromPayload && h.dedup != nil {
		dedupKey = ev.PersonID + "|" + ev.Timestamp.UTC().Format(time.RFC3339Nano)
		if h.dedup.IsDuplicate(dedupKey) {
			metrics.RecordWebhook("duplicate")
			log.Debug().Time("timestamp", ev.Timestamp).Msg("Webhook re-delivery suppressed")
			writeJSON(w, http.StatusOK, WebhookResponse{Success: true, Message: msgDuplicate})
			return
		}
	}

	result, err := h.processor.Process(r.Context(), ev.SeenEvent(), h.cfg.WebhookPolicy)
	if err != nil {
		if dedupKey != "" && !errors.Is(err, attendance.ErrDuplicateEvent) {
			h.dedup.Forget(dedupKey)
		}
		writeJSON(w, http.StatusOK, h.webhookFailure(r.Context(), result, err))
		return
	}

	metrics.RecordWebhook("processed")
	writeJSON(w, http.StatusOK, WebhookResponse{
		Success:  true,
		Message:  msgEventProcessed,
		Employee: result.Person.Name,
		Time:     result.Event.Time,
	})
}

// webhookFailure maps a processing error to a reply and logs it.
func (h *Handler) webhookFailure(ctx context.Context, result *attendance.Result, err error) WebhookResponse {
	log := logging.Ctx(ctx)
	switch {
	case errors.Is(err, attendance.ErrDuplicateEvent):
		metrics.RecordWebhook("duplicate")
		resp := WebhookResponse{Success: true, Message: msgDuplicate}
		if result != nil && result.Person != nil {
			resp.Employee = result.Person.Name
		}
		return resp
	case errors.Is(err, attendance.ErrUnknownPerson):
		metrics.RecordWebhook("unknown_person")
		log.Info().Msg("Webhook event for unknown person dropped")
		return WebhookResponse{Success: false, Message: msgUnknownEmployee}
	case errors.Is(err, attendance.ErrInvalidEvent):
		metrics.RecordWebhook("invalid_event")
		log.Warn().Err(err).Msg("Webhook event rejected")
		return WebhookResponse{Success: false, Message: msgInvalidEvent}
	default:
		metrics.RecordWebhook("error")
		log.Error().Err(err).Msg("Webhook processing failed")
		return WebhookResponse{Success: false, Message: msgProcessingFailed}
	}
}

// HikvisionWebhookTest is a connectivity check for terminal setup.
// GET|POST /webhook/hikvision/test
//
// A POST echoes the parsed body so installers can see what the terminal sends.
func (h *Handler) HikvisionWebhookTest(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	resp := WebhookResponse{
		Success:   true,
		Message:   msgWebhookWorking,
		Timestamp: &now,
	}

	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.WebhookMaxBodyBytes)
		fields, err := webhook.ParseRequest(r, h.cfg.WebhookMaxBodyBytes)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Test webhook body not parsed")
		}
		resp.ReceivedData = fields
		if resp.ReceivedData == nil {
			resp.ReceivedData = map[string]interface{}{}
		}
	}

	logging.Ctx(r.Context()).Info().Str("method", r.Method).Msg("Test webhook called")
	writeJSON(w, http.StatusOK, resp)
}

// HikvisionWebhookStatus describes the ingress and the connected devices.
// GET /webhook/hikvision/status
func (h *Handler) HikvisionWebhookStatus(w http.ResponseWriter, r *http.Request) {
	state := "active"
	if !h.cfg.WebhookEnabled {
		state = "disabled"
	}
	writeJSON(w, http.StatusOK, WebhookStatus{
		Webhook:             state,
		Endpoint:            "/webhook/hikvision",
		TestEndpoint:        "/webhook/hikvision/test",
		Method:              http.MethodPost,
		Description:         "Receives HTTP notifications from Hikvision terminals",
		UnknownPersonPolicy: string(h.cfg.WebhookPolicy),
		Devices:             h.deviceStatus(),
	})
}
