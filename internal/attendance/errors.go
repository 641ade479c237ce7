// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package attendance

import "errors"

// ErrPersonNotFound is returned by an IdentityResolver for an unknown identifier.
var ErrPersonNotFound = errors.New("person not found")

// ErrRecordNotFound is returned by an AttendanceStore when no record exists for the key.
var ErrRecordNotFound = errors.New("attendance record not found")

// ErrUnknownPerson is returned by Process when the identifier does not
// resolve and the policy is PolicyDrop.
var ErrUnknownPerson = errors.New("unknown person")

// ErrDuplicateEvent is returned by Process when the record already holds an
// event with the same timestamp. Nothing is written.
var ErrDuplicateEvent = errors.New("duplicate event")

// ErrStoreWrite wraps persistence failures during upsert or auto-registration.
var ErrStoreWrite = errors.New("attendance store write failed")

// ErrInvalidEvent is returned when a seen event fails validation.
var ErrInvalidEvent = errors.New("invalid seen event")
