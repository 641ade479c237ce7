// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

// Package notify fans attendance change notifications out to every
// configured sink: the WebSocket hub always, and a NATS subject in binaries
// built with the nats tag.
package notify

import (
	"context"
	"errors"

	"github.com/tomtom215/presence/internal/attendance"
	"github.com/tomtom215/presence/internal/models"
)

// Subject and message type names shared by all sinks.
const (
	DefaultSubject                = "presence.attendance"
	MessageTypeAttendanceUpdated  = "attendance:updated"
	MessageTypeEmployeeRegistered = "employee:registered"
)

// ErrNATSUnavailable is returned by the NATS constructors in binaries built
// without the nats tag.
var ErrNATSUnavailable = errors.New("NATS support not compiled in: build with -tags=nats")

// Envelope is the wire shape of a published notification.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Fanout delivers each notification to every sink in order. Sinks must not
// block, so neither does Fanout.
type Fanout struct {
	sinks []attendance.Notifier
}

// NewFanout creates a Fanout. Nil sinks are skipped.
func NewFanout(sinks ...attendance.Notifier) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}

// AttendanceUpdated implements attendance.Notifier.
func (f *Fanout) AttendanceUpdated(ctx context.Context, update models.AttendanceUpdate) {
	for _, s := range f.sinks {
		s.AttendanceUpdated(ctx, update)
	}
}

// PersonRegistered implements attendance.Notifier.
func (f *Fanout) PersonRegistered(ctx context.Context, person models.PersonRegistered) {
	for _, s := range f.sinks {
		s.PersonRegistered(ctx, person)
	}
}
