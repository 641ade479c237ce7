// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package models

import (
	"strings"
	"time"
)

// UnknownPersonName is used when an auto-registered person arrives without a name.
const UnknownPersonName = "Unknown Employee"

// Person is a directory entry. DeviceIdentifier is the employee number the
// terminal reports and is the join key for incoming events.
type Person struct {
	ID               string    `json:"id" koanf:"id"`
	Name             string    `json:"name" koanf:"name" validate:"required,max=200"`
	Role             string    `json:"role" koanf:"role" validate:"required,max=50"`
	Department       string    `json:"department" koanf:"department" validate:"max=100"`
	DeviceIdentifier string    `json:"deviceIdentifier" koanf:"device_identifier" validate:"required,max=64"`
	AutoRegistered   bool      `json:"autoRegistered" koanf:"-"`
	CreatedAt        time.Time `json:"createdAt" koanf:"-"`
}

// Initials returns up to two upper-case letters from the first word of the
// name, or "?" when there is none.
func (p *Person) Initials() string {
	fields := strings.Fields(p.Name)
	if len(fields) == 0 {
		return "?"
	}
	r := []rune(fields[0])
	if len(r) > 2 {
		r = r[:2]
	}
	return strings.ToUpper(string(r))
}
