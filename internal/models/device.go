// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package models

import "time"

// DeviceStatus is a read-only view of a connected terminal session.
type DeviceStatus struct {
	DeviceID      string            `json:"deviceId"`
	ConnectedAt   time.Time         `json:"connectedAt"`
	LastSeenAt    time.Time         `json:"lastSeenAt"`
	UptimeSeconds int64             `json:"uptimeSeconds"`
	RemoteAddr    string            `json:"remoteAddr,omitempty"`
	DeviceInfo    map[string]string `json:"deviceInfo,omitempty"`
}

// DeviceStatusResponse is the device-status query result.
type DeviceStatusResponse struct {
	ConnectedDevices int            `json:"connectedDevices"`
	Port             int            `json:"port,omitempty"`
	Devices          []DeviceStatus `json:"devices"`
}
