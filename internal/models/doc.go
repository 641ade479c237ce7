// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

/*
Package models defines the data structures shared across Presence.

Key types:

  - SeenEvent: a normalized "person recognized at a terminal" event produced
    by either ingress path (ISUP listener or HTTP webhook)
  - Person: a directory entry joined to terminals by DeviceIdentifier
  - AttendanceRecord: one person's events for one organization-local date
  - DeviceStatus: a read-only view of a connected terminal session
  - APIResponse: the JSON envelope used by the read-only HTTP API

Attendance records are keyed by (PersonID, Date). Date is always
"YYYY-MM-DD" and event times are "HH:MM", both in the organization's
timezone, so that records for the same working day never split across UTC
midnight.
*/
package models
