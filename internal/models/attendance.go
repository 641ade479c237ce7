// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package models

import (
	"strings"
	"time"
)

// Direction tags an attendance event.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"

	// DirectionSeen is a non-directional marker. Alternation treats it like OUT.
	DirectionSeen Direction = "SEEN"
)

// ParseDirection maps vendor direction labels to a Direction.
// It reports false for anything it does not recognize.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "checkin", "check-in", "breakin", "entry", "enter":
		return DirectionIn, true
	case "out", "checkout", "check-out", "breakout", "exit", "leave":
		return DirectionOut, true
	default:
		return "", false
	}
}

// Status is the derived presence status of a record.
type Status string

const (
	// StatusAbsent marks a directory person with no record for the day.
	StatusAbsent Status = "absent"
	// StatusPresent means the latest event is IN.
	StatusPresent Status = "present"
	// StatusPartial means the person checked out after arriving.
	StatusPartial Status = "partial"
)

// Event sources.
const (
	SourceISUP    = "isup"
	SourceWebhook = "webhook"
)

// SeenEvent is the normalized input to the reconciliation core.
type SeenEvent struct {
	PersonID  string    `json:"personId" validate:"required,max=64"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
	Direction Direction `json:"direction,omitempty" validate:"omitempty,oneof=IN OUT SEEN"`
	Name      string    `json:"name,omitempty" validate:"max=200"`
	Source    string    `json:"source" validate:"required,oneof=isup webhook"`
	DeviceID  string    `json:"deviceId,omitempty" validate:"max=64"`
}

// AttendanceEvent is one entry in a record's event list.
type AttendanceEvent struct {
	Time      string    `json:"time"`
	Direction Direction `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
	DeviceID  string    `json:"deviceId,omitempty"`
}

// AttendanceRecord holds one person's events for one organization-local date.
// At most one record exists per (PersonID, Date).
type AttendanceRecord struct {
	PersonID        string            `json:"personId"`
	PersonName      string            `json:"personName"`
	Role            string            `json:"role,omitempty"`
	Department      string            `json:"department,omitempty"`
	Date            string            `json:"date"`
	Events          []AttendanceEvent `json:"events"`
	FirstSeen       string            `json:"firstSeen"`
	LastSeen        string            `json:"lastSeen"`
	Status          Status            `json:"status"`
	DurationMinutes int               `json:"durationMinutes"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// LastEvent returns the most recent event or nil for an empty record.
func (r *AttendanceRecord) LastEvent() *AttendanceEvent {
	if len(r.Events) == 0 {
		return nil
	}
	return &r.Events[len(r.Events)-1]
}

// HasTimestamp reports whether an event with exactly ts is already recorded.
func (r *AttendanceRecord) HasTimestamp(ts time.Time) bool {
	for i := range r.Events {
		if r.Events[i].Timestamp.Equal(ts) {
			return true
		}
	}
	return false
}

// AttendanceUpdate is broadcast to observers after a record changes.
type AttendanceUpdate struct {
	PersonID         string    `json:"employeeId"`
	Name             string    `json:"name"`
	DeviceIdentifier string    `json:"hikvisionEmployeeId"`
	Department       string    `json:"department"`
	Role             string    `json:"role"`
	Date             string    `json:"date"`
	CheckInTime      string    `json:"checkInTime"`
	CheckOutTime     string    `json:"checkOutTime"`
	Status           Status    `json:"status"`
	EventType        Direction `json:"eventType"`
	Source           string    `json:"source"`
	Timestamp        time.Time `json:"timestamp"`
	IsNewEmployee    bool      `json:"isNewEmployee"`
}

// PersonRegistered is broadcast when an unknown identifier is auto-registered.
type PersonRegistered struct {
	PersonID         string `json:"employeeId"`
	Name             string `json:"name"`
	DeviceIdentifier string `json:"hikvisionEmployeeId"`
	Department       string `json:"department"`
	Role             string `json:"role"`
	Avatar           string `json:"avatar"`
}
