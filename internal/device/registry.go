// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

// Package device tracks the terminals currently connected to the ISUP
// listener. Entries live only as long as their TCP session.
package device

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/presence/internal/models"
)

// ErrDeviceNotFound is returned by Get for an unknown device ID.
var ErrDeviceNotFound = errors.New("device not found")

// Session is the registry entry for one registered terminal.
type Session struct {
	DeviceID    string
	ConnID      string
	RemoteAddr  string
	ConnectedAt time.Time
	LastSeenAt  time.Time

	// Info holds the fields of the Register body.
	Info map[string]string
}

// Registry is a concurrency-safe map of device ID to Session. A single
// connection may register more than one device ID; disconnect cleanup is
// therefore by connection, not by device.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Register inserts or overwrites the entry for s.DeviceID and reports
// whether an existing entry was replaced.
func (r *Registry) Register(s Session) bool {
	if s.LastSeenAt.IsZero() {
		s.LastSeenAt = s.ConnectedAt
	}
	info := make(map[string]string, len(s.Info))
	for k, v := range s.Info {
		info[k] = v
	}
	s.Info = info

	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.sessions[s.DeviceID]
	r.sessions[s.DeviceID] = &s
	return replaced
}

// Touch refreshes LastSeenAt on every entry owned by connID and returns the
// number of entries updated.
func (r *Registry) Touch(connID string, at time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.sessions {
		if s.ConnID == connID {
			s.LastSeenAt = at
			n++
		}
	}
	return n
}

// RemoveByConn deletes every entry owned by connID and returns the removed
// device IDs in sorted order. An entry that was re-registered from a newer
// connection is left alone.
func (r *Registry) RemoveByConn(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for id, s := range r.sessions {
		if s.ConnID == connID {
			delete(r.sessions, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// Get returns a copy of the entry for deviceID.
func (r *Registry) Get(deviceID string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[deviceID]
	if !ok {
		return Session{}, ErrDeviceNotFound
	}
	return *s, nil
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns the registry contents as device statuses ordered by
// device ID, with uptime computed against now.
func (r *Registry) Snapshot(now time.Time) []models.DeviceStatus {
	r.mu.RLock()
	out := make([]models.DeviceStatus, 0, len(r.sessions))
	for _, s := range r.sessions {
		info := make(map[string]string, len(s.Info))
		for k, v := range s.Info {
			info[k] = v
		}
		uptime := int64(now.Sub(s.ConnectedAt) / time.Second)
		if uptime < 0 {
			uptime = 0
		}
		out = append(out, models.DeviceStatus{
			DeviceID:      s.DeviceID,
			ConnectedAt:   s.ConnectedAt,
			LastSeenAt:    s.LastSeenAt,
			UptimeSeconds: uptime,
			RemoteAddr:    s.RemoteAddr,
			DeviceInfo:    info,
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}
