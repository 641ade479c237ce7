// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package models

import (
	"time"
)

// APIResponse is the envelope returned by the read-only HTTP API.
//
//	{
//	  "status": "success",
//	  "data": {"connectedDevices": 1, "devices": [...]},
//	  "metadata": {"timestamp": "2026-03-02T08:15:00Z"}
//	}
//
// The webhook ingress does not use it: terminals expect the flat
// {success, message} shape.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError carries a machine-readable code and a human-readable message.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
