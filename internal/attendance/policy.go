// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package attendance

import (
	"fmt"
	"strings"
)

// UnknownPersonPolicy decides what happens to an event whose person
// identifier does not resolve. Each ingress path is configured with its own.
type UnknownPersonPolicy string

const (
	// PolicyDrop logs and discards the event.
	PolicyDrop UnknownPersonPolicy = "drop"

	// PolicyRegister creates a minimal person from the event and continues.
	PolicyRegister UnknownPersonPolicy = "register"
)

// ParsePolicy converts a configuration string to a policy.
func ParsePolicy(s string) (UnknownPersonPolicy, error) {
	switch p := UnknownPersonPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyDrop, PolicyRegister:
		return p, nil
	default:
		return "", fmt.Errorf("unknown person policy %q: want drop or register", s)
	}
}
