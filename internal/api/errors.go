// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package api

import "errors"

// Error codes used in models.APIError.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeStoreError       = "STORE_ERROR"
	CodeNotReady         = "NOT_READY"
	CodeRateLimited      = "RATE_LIMITED"
)

// Webhook reply messages. Terminals and integration scripts match on them.
const (
	msgEventProcessed   = "Event processed"
	msgNoEmployee       = "No employee number"
	msgDuplicate        = "Duplicate event ignored"
	msgUnknownEmployee  = "Unknown employee"
	msgInvalidPayload   = "Invalid payload"
	msgInvalidTime      = "Invalid event time"
	msgInvalidEvent     = "Invalid event"
	msgProcessingFailed = "Processing failed"
	msgWebhookDisabled  = "Webhook ingress is disabled"
	msgWebhookWorking   = "Webhook endpoint is working!"
	msgRateLimited      = "Rate limited"
)

var errStoreUnavailable = errors.New("store not configured")
