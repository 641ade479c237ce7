// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

// Package webhook turns the HTTP event notifications Hikvision terminals
// post into seen events.
//
// Firmware versions disagree on shape. Some post JSON with a nested
// AccessControllerEvent object, some post multipart forms whose event_log
// (or data) part holds that JSON as a string, and some post flat form
// fields. ParseRequest flattens all of them into one field map and
// Normalize extracts a single Event from it.
package webhook

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/presence/internal/attendance"
	"github.com/tomtom215/presence/internal/models"
)

// ErrNoPersonID is returned when no alias yields an employee number.
var ErrNoPersonID = errors.New("no employee number")

// ErrInvalidTime is wrapped when an event time is present but unparseable.
var ErrInvalidTime = errors.New("invalid event time")

// Alias lists, in lookup order.
var (
	personIDAliases  = []string{"employeeNoString", "employeeNo", "EmployeeNoString", "cardNo"}
	timeAliases      = []string{"dateTime", "time", "Time"}
	nameAliases      = []string{"name", "employeeName"}
	directionAliases = []string{"attendanceStatus", "direction"}
	deviceAliases    = []string{"deviceID", "deviceId", "ipAddress"}
)

// Event is a normalized webhook notification.
type Event struct {
	PersonID  string
	Timestamp time.Time
	Name      string
	Direction models.Direction
	DeviceID  string

	// TimeFromPayload is false when the payload carried no time and
	// Timestamp is the receive time.
	TimeFromPayload bool
}

// SeenEvent converts e for the processor.
func (e *Event) SeenEvent() models.SeenEvent {
	return models.SeenEvent{
		PersonID:  e.PersonID,
		Timestamp: e.Timestamp,
		Direction: e.Direction,
		Name:      e.Name,
		Source:    models.SourceWebhook,
		DeviceID:  e.DeviceID,
	}
}

// Normalize extracts one event from flat request fields.
//
// The event body is taken from the data field (a JSON string or object),
// else from event_log (a JSON string), else the flat fields themselves;
// nested content that fails to parse falls back to the next candidate.
// Within the body an AccessControllerEvent object is consulted first.
// Values missing from the body are then looked up on the flat fields.
//
// Times without an offset are read in loc; an absent time yields now.
func Normalize(fields map[string]any, now time.Time, loc *time.Location) (*Event, error) {
	body := fields
	if nested, ok := nestedObject(fields["event_log"]); ok {
		body = nested
	}
	if nested, ok := nestedObject(fields["data"]); ok {
		body = nested
	}
	ace, _ := nestedObject(body["AccessControllerEvent"])

	lookup := func(aceNames, bodyNames, flatNames []string) string {
		if v := firstValue(ace, aceNames); v != "" {
			return v
		}
		if v := firstValue(body, bodyNames); v != "" {
			return v
		}
		return firstValue(fields, flatNames)
	}

	ev := &Event{}

	ev.PersonID = lookup(personIDAliases[:1], personIDAliases, personIDAliases)
	if ev.PersonID == "" {
		return nil, ErrNoPersonID
	}

	ev.Timestamp = now
	if raw := lookup(timeAliases[:1], timeAliases, timeAliases[:2]); raw != "" {
		ts, err := attendance.ParseTimestamp(raw, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTime, err)
		}
		ev.Timestamp = ts
		ev.TimeFromPayload = true
	}

	ev.Name = lookup(nameAliases, nameAliases, nameAliases[1:])
	if ev.Name == "" {
		ev.Name = models.UnknownPersonName
	}

	ev.Direction = models.DirectionSeen
	if raw := lookup(directionAliases[:1], directionAliases, directionAliases[1:]); raw != "" {
		if d, ok := models.ParseDirection(raw); ok {
			ev.Direction = d
		}
	}

	ev.DeviceID = lookup(nil, deviceAliases, deviceAliases)

	return ev, nil
}

// nestedObject returns v as an object when it is one, or when it is a
// string holding a JSON object.
func nestedObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if !strings.HasPrefix(s, "{") {
			return nil, false
		}
		var m map[string]any
		if err := decodeJSON([]byte(s), &m); err != nil {
			return nil, false
		}
		return m, true
	default:
		return nil, false
	}
}

func firstValue(m map[string]any, names []string) string {
	if m == nil {
		return ""
	}
	for _, n := range names {
		if s := stringify(m[n]); s != "" {
			return s
		}
	}
	return ""
}

// stringify renders scalar JSON values. Numbers never use exponent form,
// so an employee number of 1e6 reads "1000000".
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := t.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []string:
		if len(t) > 0 {
			return strings.TrimSpace(t[0])
		}
	case []any:
		if len(t) > 0 {
			return stringify(t[0])
		}
	}
	return ""
}
